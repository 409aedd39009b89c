// Command twopc checks the two-phase commit model and lets users browse its state space.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"twopc/browser"
	"twopc/checker"
	"twopc/checking"
	"twopc/metrics"
	"twopc/model"
	"twopc/scheduler"
	"twopc/server"
)

const usage = `Usage: twopc [flags] <command> [flags]

Commands:
  check                  check the model and print a report
  explore [host:port]    check the model in the background and serve the browser (default localhost:3000)
  browse [host:port]     browse the state space served by explore -grpc (default localhost:3001)
  replay <trace-file>    replay a trace written by check -trace

Flags:
`

type config struct {
	nodes     int
	crash     string
	workers   int
	strategy  string
	maxDepth  int
	maxStates int
	seed      int64
	runs      int
	trace     string
	grpcAddr  string
	logLevel  string
	logFormat string
	set       map[string]bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// Run the command line and return the exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg := config{}
	fs := flag.NewFlagSet("twopc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	fs.IntVar(&cfg.nodes, "nodes", 3, "number of nodes, including the coordinator")
	fs.StringVar(&cfg.crash, "crash", "recover", "crash mode: none|amnesia|recover")
	fs.IntVar(&cfg.workers, "workers", runtime.GOMAXPROCS(0), "number of exploring goroutines")
	fs.StringVar(&cfg.strategy, "strategy", "dfs", "search strategy: dfs|bfs|random")
	fs.IntVar(&cfg.maxDepth, "max-depth", 0, "maximum depth of the search, 0 for unbounded")
	fs.IntVar(&cfg.maxStates, "max-states", 0, "maximum number of unique states, 0 for unbounded")
	fs.Int64Var(&cfg.seed, "seed", 0, "seed of the random walks")
	fs.IntVar(&cfg.runs, "runs", 10000, "number of random walks")
	fs.StringVar(&cfg.trace, "trace", "", "write the counterexample of check to this file")
	fs.StringVar(&cfg.grpcAddr, "grpc", "", "also serve the gRPC explorer service on this address")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "log level: debug|info|warn|error")
	fs.StringVar(&cfg.logFormat, "log-format", "text", "log format: text|json")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return 2
	}
	// Flags may also follow the command and its arguments.
	command, args := rest[0], rest[1:]
	rest = []string{}
	for {
		if err := fs.Parse(args); err != nil {
			return 2
		}
		if fs.NArg() == 0 {
			break
		}
		rest = append(rest, fs.Arg(0))
		args = fs.Args()[1:]
	}
	if len(rest) > 1 {
		fs.Usage()
		return 2
	}
	cfg.set = map[string]bool{}
	fs.Visit(func(f *flag.Flag) { cfg.set[f.Name] = true })

	logger, err := newLogger(stderr, cfg.logLevel, cfg.logFormat)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	slog.SetDefault(logger)

	switch command {
	case "check":
		err = check(ctx, cfg, stdout)
	case "explore":
		err = explore(ctx, cfg, argOr(rest, "localhost:3000"))
	case "browse":
		err = browse(ctx, argOr(rest, "localhost:3001"))
	case "replay":
		if len(rest) == 0 {
			fs.Usage()
			return 2
		}
		err = replay(cfg, rest[0], stdout)
	default:
		fs.Usage()
		return 2
	}
	if errors.Is(err, errFailed) {
		return 1
	}
	if err != nil {
		logger.Error("twopc failed", "command", command, "error", err)
		return 1
	}
	return 0
}

// A property does not hold. The details have already been printed.
var errFailed = errors.New("twopc: property failed")

func argOr(args []string, def string) string {
	if len(args) > 0 {
		return args[0]
	}
	return def
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: l}
	switch strings.ToLower(format) {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("invalid log format %q", format)
}

func newModel(cfg config) (*model.Model, error) {
	if cfg.nodes < 1 {
		return nil, fmt.Errorf("at least one node is required, got %v", cfg.nodes)
	}
	mode, err := model.ParseCrashMode(cfg.crash)
	if err != nil {
		return nil, err
	}
	return model.New(cfg.nodes, model.WithCrashMode(mode)), nil
}

// Map the flags onto checker options. Unset flags keep the checker defaults.
func checkerOptions(cfg config) ([]checker.Option, error) {
	strategy, err := scheduler.ParseStrategy(cfg.strategy)
	if err != nil {
		return nil, err
	}
	opts := []checker.Option{
		checker.WithStrategy(strategy),
		checker.Workers(cfg.workers),
	}
	if cfg.set["max-depth"] {
		opts = append(opts, checker.MaxDepth(cfg.maxDepth))
	}
	if cfg.set["max-states"] {
		opts = append(opts, checker.MaxStates(cfg.maxStates))
	}
	if cfg.set["seed"] {
		opts = append(opts, checker.Seed(cfg.seed))
	}
	if cfg.set["runs"] {
		opts = append(opts, checker.MaxRuns(cfg.runs))
	}
	return opts, nil
}

func check(ctx context.Context, cfg config, stdout io.Writer) error {
	m, err := newModel(cfg)
	if err != nil {
		return err
	}
	opts, err := checkerOptions(cfg)
	if err != nil {
		return err
	}
	c := checker.New[model.System, model.Action](m, opts...)
	report, err := c.Run(ctx)
	if err != nil {
		return err
	}
	return respond(stdout, report, cfg.trace)
}

// Print the response and write its counterexample to the trace file, if any.
//
// Returns errFailed if a property does not hold.
func respond(w io.Writer, response checking.CheckerResponse, trace string) error {
	ok, text := response.Response()
	fmt.Fprint(w, text)

	if trace != "" {
		f, err := os.Create(trace)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := checker.WriteTrace(f, response.Export()); err != nil {
			return err
		}
	}
	if !ok {
		return errFailed
	}
	return nil
}

func explore(ctx context.Context, cfg config, addr string) error {
	m, err := newModel(cfg)
	if err != nil {
		return err
	}
	opts, err := checkerOptions(cfg)
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	c := checker.New[model.System, model.Action](m, append(opts, checker.WithMetrics(metrics.NewCheckerMetrics(reg)))...)
	e := server.NewExplorer[model.System, model.Action](m, c,
		server.WithMetrics(metrics.NewServerMetrics(reg, "explorer"), metrics.HandlerFor(reg)),
	)

	go func() {
		report, err := c.Run(ctx)
		if err != nil {
			slog.Warn("check interrupted", "error", err)
			return
		}
		if !report.Passed() {
			slog.Warn("check failed", "run", report.RunID, "trace", strings.Join(report.Export(), " "))
		}
	}()

	if cfg.grpcAddr != "" {
		s := e.GRPCServer()
		go func() {
			slog.Info("serving grpc", "addr", cfg.grpcAddr)
			if err := server.ServeGRPC(ctx, cfg.grpcAddr, s); err != nil {
				slog.Error("grpc server failed", "addr", cfg.grpcAddr, "error", err)
			}
		}()
	}

	slog.Info("serving http", "addr", addr)
	return server.ListenAndServe(ctx, addr, e.Handler())
}

func browse(ctx context.Context, addr string) error {
	client, closeConn, err := server.Dial(addr)
	if err != nil {
		return err
	}
	defer closeConn()
	return browser.Run(ctx, client)
}

func replay(cfg config, file string, stdout io.Writer) error {
	m, err := newModel(cfg)
	if err != nil {
		return err
	}
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	ids, err := checker.ReadTrace(f)
	if err != nil {
		return err
	}

	path, err := checker.Replay[model.System, model.Action](m, ids)
	for i, step := range path {
		if i == 0 {
			fmt.Fprintf(stdout, "init\t%v\n", step.State)
			continue
		}
		fmt.Fprintf(stdout, "%v\t%v\n", step.Action, step.State)
	}
	if err != nil {
		return err
	}
	if len(path) > 0 && !model.ACID(path[len(path)-1].State) {
		fmt.Fprintln(stdout, "ACID: violated")
		return errFailed
	}
	fmt.Fprintln(stdout, "ACID: holds")
	return nil
}
