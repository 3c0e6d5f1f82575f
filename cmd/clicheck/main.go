// Command clicheck runs command-line programs as black boxes and checks
// their exit codes and output.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/deixis/clicheck"
	"github.com/deixis/clicheck/internal/metrics"
	climcp "github.com/deixis/clicheck/internal/mcp"
	"github.com/deixis/clicheck/internal/report"
	"github.com/deixis/clicheck/pkg/config"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// errFailed signals that checks ran and at least one failed. The details
// have already been printed.
var errFailed = errors.New("checks failed")

func main() {
	log.SetFlags(0)
	log.SetPrefix("clicheck: ")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "exec":
		err = execMain(args)
	case "run":
		err = runMain(args)
	case "config":
		err = configMain(args)
	case "mcp":
		err = mcpMain(args)
	case "version":
		fmt.Println(clicheck.Version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "clicheck: unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}

	switch {
	case errors.Is(err, errFailed):
		os.Exit(1)
	case err != nil:
		log.Print(err)
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: clicheck <command> [flags] [arguments]

Commands:
  exec        Run one command and check its result
  run         Run YAML test suites
  config      Show the resolved configuration
  mcp         Start the MCP server
  version     Print the version
  help        Show this help

Exit status is 0 when all checks pass, 1 when a check fails and 2 on
usage or runtime errors.

Use "clicheck <command> -h" for command-specific flags.`)
}

// --- mcp ---

func mcpMain(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	instructions := fs.Bool("instructions", false, "print model instructions and exit")
	httpAddr := fs.String("http", "", "start HTTP server on address (e.g. :9090); also serves /metrics")
	verbose := fs.Bool("v", false, "debug logging on stderr")
	_ = fs.Parse(args)

	if *instructions {
		fmt.Print(climcp.Instructions)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return serve(ctx, *httpAddr, newLogger(*verbose))
}

func serve(ctx context.Context, httpAddr string, logger *slog.Logger) error {
	env, err := loadEnv()
	if err != nil {
		return err
	}

	store := report.NewLRUStore(16, report.NewDiskStore(""))
	m := metrics.New(true)

	server := climcp.NewServer(env.cfg, env.cfg.Runner(logger), store, env.workspace,
		climcp.WithMetrics(m),
		climcp.WithLogger(logger),
	)

	if httpAddr != "" {
		return serveHTTP(ctx, server, m, httpAddr)
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func serveHTTP(ctx context.Context, server *mcpsdk.Server, m *metrics.Metrics, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.Handle("/", mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	log.Printf("listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// --- shared ---

type environment struct {
	cfg       *config.Resolver
	loaded    *config.LoadResult
	workspace string
}

func loadEnv() (*environment, error) {
	workspace, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determining workspace: %w", err)
	}

	loaded, err := config.Load(workspace)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return &environment{
		cfg:       config.NewResolver(loaded.Config, nil),
		loaded:    loaded,
		workspace: workspace,
	}, nil
}

// newLogger logs warnings and errors to stderr, or everything when verbose.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// listFlag collects a repeatable string flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// envFlag collects repeatable KEY=VALUE pairs.
type envFlag map[string]string

func (e envFlag) String() string {
	pairs := make([]string, 0, len(e))
	for k, v := range e {
		pairs = append(pairs, k+"="+v)
	}
	return strings.Join(pairs, ",")
}

func (e envFlag) Set(v string) error {
	k, val, ok := strings.Cut(v, "=")
	if !ok || k == "" {
		return fmt.Errorf("want KEY=VALUE, got %q", v)
	}
	e[k] = val
	return nil
}
