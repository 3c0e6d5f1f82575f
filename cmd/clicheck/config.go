package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/deixis/clicheck/pkg/config"
	"github.com/jedib0t/go-pretty/v6/table"
)

func configMain(args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	jsonFlag := fs.Bool("json", false, "output as JSON")
	_ = fs.Parse(args)

	env, err := loadEnv()
	if err != nil {
		return err
	}

	if *jsonFlag {
		out := make(map[string]string)
		for _, e := range env.cfg.Summary() {
			out[e.Key] = e.Value
		}
		return writeJSON(os.Stdout, out)
	}

	source := env.loaded.Path
	if source == "" {
		source = "(none, using defaults)"
	}
	fmt.Printf("Repository: %s\nConfig file: %s\n", env.loaded.RepoRoot, source)
	if name, found := env.cfg.Profile(); found {
		fmt.Printf("Profile: %s\n", name)
	}
	fmt.Println()
	renderConfig(os.Stdout, env.cfg.Summary())
	return nil
}

func renderConfig(w io.Writer, entries []config.Entry) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Setting", "Value"})
	for _, e := range entries {
		t.AppendRow(table.Row{e.Key, e.Value})
	}
	t.Render()
}
