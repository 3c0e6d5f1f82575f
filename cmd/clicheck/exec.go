package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/deixis/clicheck/internal/report"
	"github.com/deixis/clicheck/internal/suite"
)

func execMain(args []string) error {
	fs := flag.NewFlagSet("exec", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: clicheck exec [flags] <binary|path> [args...]")
		fs.PrintDefaults()
	}
	var (
		contains, matches             listFlag
		stderrContains, stderrMatches listFlag
		exitCode                      *int
		overrides                     = envFlag{}
	)
	fs.Var(&contains, "contains", "stdout must contain `text` (repeatable)")
	fs.Var(&matches, "matches", "stdout must match `regexp` (repeatable)")
	fs.Var(&stderrContains, "stderr-contains", "stderr must contain `text` (repeatable)")
	fs.Var(&stderrMatches, "stderr-matches", "stderr must match `regexp` (repeatable)")
	fs.Var(overrides, "env", "environment override `KEY=VALUE` (repeatable)")
	fs.Func("exit", "expected exit `code` (default: require success)", func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		exitCode = &n
		return nil
	})
	timeout := fs.Duration("timeout", 0, "override configured timeout (e.g. 30s)")
	jsonFlag := fs.Bool("json", false, "output the run as JSON")
	verbose := fs.Bool("v", false, "print output of passing commands and debug logs")
	_ = fs.Parse(args)

	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("exec: missing executable")
	}
	target, rest := fs.Arg(0), fs.Args()[1:]

	env, err := loadEnv()
	if err != nil {
		return err
	}

	binary, path := target, ""
	if strings.ContainsRune(target, os.PathSeparator) {
		binary, path = "", target
	}
	s := suite.Single(binary, path, suite.Case{
		Args:    rest,
		Env:     overrides,
		Timeout: suite.Duration(*timeout),
		Expect: suite.Expect{
			ExitCode:       exitCode,
			StdoutContains: contains,
			StdoutMatches:  matches,
			StderrContains: stderrContains,
			StderrMatches:  stderrMatches,
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger := newLogger(*verbose)
	eng := &suite.Engine{
		Config: env.cfg,
		Runner: env.cfg.Runner(logger),
		Logger: logger,
	}
	run, err := eng.Run(ctx, s, "")
	if err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	run.Kind = report.Exec

	if *jsonFlag {
		if err := writeJSON(os.Stdout, run); err != nil {
			return err
		}
	} else {
		fmt.Print(formatExecCLI(run, *verbose))
	}

	if !run.Passed() {
		return errFailed
	}
	return nil
}

func formatExecCLI(run *report.Run, verbose bool) string {
	c := &run.Cases[0]
	var b []byte
	w := func(format string, args ...any) {
		b = fmt.Appendf(b, format, args...)
	}

	switch {
	case c.Error != "":
		w("FAIL %s\n\n%s\n", c.Command, c.Error)
	case c.Passed:
		w("ok   %s (exit %d, %s)\n", c.Command, c.ExitCode, c.Duration.Round(time.Millisecond))
		if verbose {
			w("\n%s", indentStream("stdout", c.Stdout))
			w("%s", indentStream("stderr", c.Stderr))
		}
	default:
		w("FAIL %s\n", c.Command)
		for _, d := range c.Diagnostics {
			w("\n%s\n", d)
		}
	}
	return string(b)
}

func indentStream(label, text string) string {
	if text == "" {
		return label + ": (empty)\n"
	}
	var sb strings.Builder
	sb.WriteString(label + ":\n")
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		sb.WriteString("    " + line + "\n")
	}
	return sb.String()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
