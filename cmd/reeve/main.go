// Reeve is a local conversational agent.
//
// It plans which capability answers a request, executes capabilities in
// sequence with budgets and retries, audits the run, and serves the
// result over an HTTP API. Recurring tasks fire on a scheduler.
// Configuration is a single YAML file discovered automatically (see
// [config.DefaultSearchPaths]).
//
// Usage:
//
//	reeve serve            Start the API server (default)
//	reeve ask <question>   Run a single request and print the reply
//	reeve -config FILE …   Use an explicit config file
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/wardlow/reeve-agent/internal/api"
	"github.com/wardlow/reeve-agent/internal/config"
	"github.com/wardlow/reeve-agent/internal/docstore"
	"github.com/wardlow/reeve-agent/internal/events"
	"github.com/wardlow/reeve-agent/internal/llm"
	"github.com/wardlow/reeve-agent/internal/memory"
	"github.com/wardlow/reeve-agent/internal/orchestrate"
	"github.com/wardlow/reeve-agent/internal/planner"
	"github.com/wardlow/reeve-agent/internal/scheduler"
	"github.com/wardlow/reeve-agent/internal/search"
	"github.com/wardlow/reeve-agent/internal/tool"
	"github.com/wardlow/reeve-agent/internal/tool/builtin"
)

func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point. OS-level dependencies are injected so the
// startup-to-shutdown lifecycle can be driven from tests; arguments are
// parsed by hand to keep flag package globals out of the way.
func run(ctx context.Context, stdout io.Writer, args []string) error {
	var configPath, command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			cmdArgs = append(cmdArgs, args[i])
		}
	}
	if command == "" {
		command = "serve"
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := setupLogging(cfg.LogLevel, stdout)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	switch command {
	case "serve":
		return serve(ctx, cfg, logger)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: reeve ask <question>")
		}
		return ask(ctx, cfg, logger, stdout, strings.Join(cmdArgs, " "))
	case "help":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command %q (try: reeve help)", command)
	}
}

func printUsage(w io.Writer) error {
	_, err := fmt.Fprint(w, `Reeve - local conversational agent

Usage:
  reeve serve            Start the API server (default)
  reeve ask <question>   Run a single request and print the reply
  reeve help             Show this help

Flags:
  -config FILE           Explicit config file path
`)
	return err
}

// loadConfig locates and parses the config file. When none exists and
// none was demanded explicitly, the defaults apply; a missing explicit
// file is an error.
func loadConfig(explicit string) (*config.Config, error) {
	path, err := config.FindConfig(explicit)
	if err != nil {
		if explicit != "" {
			return nil, err
		}
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

func setupLogging(level string, w io.Writer) (*slog.Logger, error) {
	lvl, err := config.ParseLogLevel(level)
	if err != nil {
		return nil, err
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       lvl,
		ReplaceAttr: config.ReplaceLogLevelNames,
	})
	return slog.New(handler), nil
}

// components holds the assembled runtime, so serve and ask share one
// construction path.
type components struct {
	docs        *docstore.Store
	coordinator *orchestrate.Coordinator
	memory      *memory.Store
	sched       *scheduler.Scheduler
	bus         *events.Bus
}

func buildComponents(cfg *config.Config, logger *slog.Logger) (*components, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	docs, err := docstore.Open(filepath.Join(cfg.DataDir, "reeve.db"))
	if err != nil {
		return nil, fmt.Errorf("open document store: %w", err)
	}

	drafter := llm.NewDrafter(llm.NewOllamaClient(
		cfg.Draft.URL,
		cfg.Draft.Model,
		time.Duration(cfg.Draft.TimeoutSec)*time.Second,
	))

	reg := tool.NewRegistry()
	reg.Register(tool.NameCalculator, builtin.Calculator())
	reg.Register(tool.NameClock, builtin.Clock())
	reg.Register(tool.NameLLM, builtin.LLM(drafter))
	if cfg.Workspace.Path != "" {
		reg.Register(tool.NameFile, builtin.NewFileTool(cfg.Workspace.Path))
	}
	if cfg.Search.URL != "" {
		reg.Register(tool.NameSearch, search.NewTool(search.NewSearXNG(cfg.Search.URL), cfg.Search.MaxHits))
	}
	logger.Info("tool registry assembled", "tools", reg.Names())

	var p planner.Planner
	switch cfg.Planner {
	case "", "rules":
		p = planner.NewRules()
	case "llm":
		p = planner.NewModel(drafter)
	default:
		docs.Close()
		return nil, fmt.Errorf("unknown planner %q (valid: rules, llm)", cfg.Planner)
	}

	mem := memory.NewStore(docs, 0)
	bus := events.New()
	exec := orchestrate.NewExecutor(reg, drafter, logger)
	coordinator := orchestrate.New(p, exec, mem, bus, logger, nil)
	sched := scheduler.New(reg, docs, bus, logger)

	return &components{
		docs:        docs,
		coordinator: coordinator,
		memory:      mem,
		sched:       sched,
		bus:         bus,
	}, nil
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	c, err := buildComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer c.docs.Close()

	c.sched.Start()
	defer c.sched.Stop()

	listen := fmt.Sprintf("%s:%d", cfg.Listen.Address, cfg.Listen.Port)
	server := api.NewServer(listen, c.coordinator, c.memory, c.sched, c.bus, logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// ask runs a single request through the full stack and prints the reply.
func ask(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout io.Writer, question string) error {
	c, err := buildComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer c.docs.Close()

	result := c.coordinator.Run(ctx, question, "cli", nil)
	fmt.Fprintln(stdout, result.Reply)
	if !result.Success {
		return fmt.Errorf("request failed (tool: %s)", result.Tool)
	}
	return nil
}
