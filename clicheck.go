// Package clicheck is a black-box test harness for command-line executables.
//
// The harness itself lives in the pkg/runner and pkg/expect packages; this
// package only carries release metadata.
package clicheck

// Version is the clicheck release version.
const Version = "0.1.0"
