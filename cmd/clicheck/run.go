package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/deixis/clicheck/internal/report"
	"github.com/deixis/clicheck/internal/suite"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func runMain(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: clicheck run [flags] <suite.yaml>...")
		fs.PrintDefaults()
	}
	filter := fs.String("run", "", "only run cases whose name matches this glob")
	parallel := fs.Int("parallel", 0, "maximum concurrent cases per suite (default: the suite's setting)")
	timeout := fs.Duration("timeout", 0, "override configured timeout (e.g. 5m)")
	jsonFlag := fs.Bool("json", false, "output runs as JSON")
	save := fs.Bool("save", false, "write each run as JSON to the output directory")
	verbose := fs.Bool("v", false, "verbose output")
	_ = fs.Parse(args)

	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("run: no suite files")
	}
	if *parallel < 0 {
		return fmt.Errorf("run: -parallel must not be negative")
	}

	suites := make([]*suite.Suite, 0, fs.NArg())
	for _, path := range fs.Args() {
		s, err := suite.Load(path)
		if err != nil {
			return err
		}
		if *parallel > 0 {
			s.Parallel = *parallel
		}
		suites = append(suites, s)
	}

	env, err := loadEnv()
	if err != nil {
		return err
	}
	logger := newLogger(*verbose)
	r := env.cfg.Runner(logger)
	if *timeout > 0 {
		r.Timeout = *timeout
	}
	eng := &suite.Engine{Config: env.cfg, Runner: r, Logger: logger}

	var store report.Store
	if *save {
		store = report.NewDiskStore(env.cfg.OutputDir("runs"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runs := make([]*report.Run, 0, len(suites))
	failed := false
	for _, s := range suites {
		run, err := eng.Run(ctx, s, *filter)
		if err != nil {
			return fmt.Errorf("%s: %w", s.DisplayName(), err)
		}
		if store != nil {
			if err := store.Save(run); err != nil {
				return err
			}
		}
		if !run.Passed() {
			failed = true
		}
		runs = append(runs, run)
	}

	if *jsonFlag {
		if err := writeJSON(os.Stdout, runs); err != nil {
			return err
		}
	} else {
		for _, run := range runs {
			renderRun(os.Stdout, run, *verbose)
		}
	}

	if failed {
		return errFailed
	}
	return nil
}

// renderRun prints a results table followed by the diagnostics of every
// failing case.
func renderRun(w io.Writer, run *report.Run, verbose bool) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("%s (%s)", run.Name, run.ID))
	t.AppendHeader(table.Row{"Case", "Command", "Exit", "Duration", "Status"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Command", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Exit", Align: text.AlignRight},
		{Name: "Duration", Align: text.AlignRight},
	})

	var total time.Duration
	for i := range run.Cases {
		c := &run.Cases[i]
		total += c.Duration
		exit := "-"
		if !c.Skipped && c.Error == "" {
			exit = fmt.Sprint(c.ExitCode)
		}
		t.AppendRow(table.Row{c.Name, c.Command, exit, formatDuration(c.Duration), statusText(c)})
	}

	passed, failed, skipped := run.Counts()
	t.AppendFooter(table.Row{
		"TOTAL",
		fmt.Sprintf("%d passed, %d failed, %d skipped", passed, failed, skipped),
		"",
		formatDuration(total),
		passFail(run.Passed()),
	})
	if run.Passed() {
		t.SetStyle(table.StyleLight)
	} else {
		t.SetStyle(table.StyleRounded)
	}
	t.Render()

	for _, c := range report.Failures(run) {
		fmt.Fprintf(w, "\n--- FAIL: %s\n", c.Name)
		if c.Error != "" {
			fmt.Fprintf(w, "%s\n", c.Error)
			continue
		}
		for _, d := range c.Diagnostics {
			fmt.Fprintf(w, "%s\n", d)
		}
	}
	if verbose {
		for i := range run.Cases {
			c := &run.Cases[i]
			if !c.Passed {
				continue
			}
			fmt.Fprintf(w, "\n--- PASS: %s\n%s%s", c.Name, indentStream("stdout", c.Stdout), indentStream("stderr", c.Stderr))
		}
	}
	fmt.Fprintln(w)
}

func statusText(c *report.Case) string {
	switch {
	case c.Skipped:
		return "SKIP (" + c.SkipReason + ")"
	case c.Passed:
		return "PASS"
	case c.TimedOut:
		return "TIMEOUT"
	}
	return "FAIL"
}

func passFail(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "-"
	}
	return d.Round(time.Millisecond).String()
}
