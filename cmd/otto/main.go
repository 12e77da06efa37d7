// Command otto runs one sandboxed agent task from the command line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"otto/internal/domain/ports"
	"otto/internal/domain/task"
	"otto/internal/engine"
	"otto/internal/infra/audit"
	"otto/internal/infra/audit/postgres"
	"otto/internal/infra/httpclient"
	"otto/internal/infra/oracle"
	"otto/internal/infra/procexec"
	"otto/internal/infra/sandbox"
	"otto/internal/infra/tools/builtin"
	"otto/internal/infra/tools/builtin/browser"
	"otto/internal/shared/config"
	"otto/internal/shared/logging"
	"otto/internal/supervisor"
	"otto/internal/toolregistry"
)

const requestTimeout = 60 * time.Second

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, red("error: ")+err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "otto",
		Short:         "Bounded agent task-execution loop with sandboxed actions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	root.AddCommand(newRunCmd(&configPath))
	root.AddCommand(newToolsCmd(&configPath))
	return root
}

func loadConfig(path string) (config.Config, error) {
	var opts []config.Option
	if path != "" {
		opts = append(opts, config.WithPath(path))
	}
	return config.Load(opts...)
}

func newRunCmd(configPath *string) *cobra.Command {
	var (
		workDir       string
		maxIterations int
		timeout       time.Duration
		extraRoots    []string
		readOnly      bool
	)

	cmd := &cobra.Command{
		Use:   "run <objective>",
		Short: "Run one task to completion in the given working tree",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if maxIterations > 0 {
				cfg.Run.MaxIterations = maxIterations
			}
			if timeout > 0 {
				cfg.Run.Timeout = timeout
			}

			absWorkDir, err := filepath.Abs(workDir)
			if err != nil {
				return fmt.Errorf("resolve workdir: %w", err)
			}
			cfg.Sandbox.AllowedRoots = append([]string{absWorkDir}, append(cfg.Sandbox.AllowedRoots, extraRoots...)...)

			objective := strings.TrimSpace(strings.Join(args, " "))
			return runTask(cmd.Context(), cfg, objective, absWorkDir, readOnly, cmd)
		},
	}

	cmd.Flags().StringVarP(&workDir, "workdir", "w", ".", "working tree the task operates on")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "iteration cap (overrides config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "run wall-clock deadline (overrides config)")
	cmd.Flags().StringArrayVar(&extraRoots, "allow-root", nil, "additional allowlisted filesystem root (repeatable)")
	cmd.Flags().BoolVar(&readOnly, "read-only", false, "restrict the catalogue to read-only and control actions")
	return cmd
}

func runTask(parent context.Context, cfg config.Config, objective, workDir string, readOnly bool, cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.NewComponentLogger("CLI")
	policy, err := sandbox.NewPolicy(cfg.Sandbox)
	if err != nil {
		return err
	}

	httpClient := httpclient.New(requestTimeout, policy)
	oracleClient, err := oracle.NewClient(cfg.Oracle, httpClient, logging.NewComponentLogger("Oracle"))
	if err != nil {
		return err
	}

	sink, closeSink, err := buildSink(ctx, cfg.Audit)
	if err != nil {
		return err
	}
	defer closeSink()

	browserMgr := browser.NewManager(cfg.Tools.BrowserHeadless, logging.NewComponentLogger("Browser"))
	defer browserMgr.Close()

	registry := toolregistry.NewRegistry()
	if err := builtin.RegisterAll(registry, builtin.Deps{
		Policy:     policy,
		Runner:     procexec.NewRunner(logging.NewComponentLogger("ProcExec")),
		HTTPClient: httpClient,
		Oracle:     oracleClient,
		Browser:    browserMgr,
		Logger:     logging.NewComponentLogger("Tools"),
		Tools:      cfg.Tools,
	}); err != nil {
		return err
	}

	var view ports.ToolRegistry = registry
	if readOnly {
		view = registry.ReadOnlyView()
	}

	metrics, err := toolregistry.NewMetrics("otto", prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	dispatcher := toolregistry.NewDispatcher(view, policy, toolregistry.WithMetrics(metrics))

	eng := engine.New(oracleClient, view, dispatcher, cfg.Run, engine.WithAuditSink(sink))
	sup := supervisor.New(eng, logger)

	t := task.New(objective, workDir)
	if store, ok := sink.(*postgres.Store); ok {
		if err := store.RegisterTask(ctx, t); err != nil {
			logger.Warn("Register task in audit store failed: %v", err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", gray("task"), t.ID)
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", gray("objective"), objective)

	if err := sup.Start(ctx, t); err != nil {
		return err
	}
	summary, err := sup.Wait(context.Background(), t.ID)
	if err != nil {
		return err
	}
	printSummary(cmd, summary)

	if summary.Phase == task.PhaseFailed {
		return fmt.Errorf("run failed: %s", summary.LastError)
	}
	return nil
}

// buildSink selects the audit sink: Postgres when a DSN is configured,
// otherwise the nop sink.
func buildSink(ctx context.Context, cfg config.AuditConfig) (ports.AuditSink, func(), error) {
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return audit.Nop(), func() {}, nil
	}
	store, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.WithLogger(logging.NewComponentLogger("Audit")))
	if err != nil {
		return nil, nil, fmt.Errorf("connect audit store: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("ensure audit schema: %w", err)
	}
	return store, store.Close, nil
}

func printSummary(cmd *cobra.Command, summary *task.Summary) {
	out := cmd.OutOrStdout()

	phase := string(summary.Phase)
	switch summary.Phase {
	case task.PhaseComplete:
		phase = green(phase)
	case task.PhaseWaitingForHelp:
		phase = yellow(phase)
	default:
		phase = red(phase)
	}

	fmt.Fprintf(out, "\n%s %s\n", gray("phase"), phase)
	fmt.Fprintf(out, "%s %d iterations, %d tool calls, %s\n",
		gray("usage"), summary.Iterations, summary.ToolCalls, summary.Duration.Round(time.Millisecond))
	if summary.Output != "" {
		fmt.Fprintf(out, "%s %s\n", gray("output"), summary.Output)
	}
	if summary.LastError != "" {
		fmt.Fprintf(out, "%s %s\n", gray("last error"), summary.LastError)
	}
}

func newToolsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the action catalogue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			cfg.Sandbox.AllowedRoots = append(cfg.Sandbox.AllowedRoots, wd)
			policy, err := sandbox.NewPolicy(cfg.Sandbox)
			if err != nil {
				return err
			}

			registry := toolregistry.NewRegistry()
			if err := builtin.RegisterAll(registry, builtin.Deps{
				Policy:  policy,
				Runner:  procexec.NewRunner(logging.Nop()),
				Browser: browser.NewManager(true, logging.Nop()),
				Tools:   cfg.Tools,
			}); err != nil {
				return err
			}
			for _, def := range registry.List() {
				line := def.Description
				if i := strings.IndexByte(line, '\n'); i >= 0 {
					line = line[:i]
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s %s\n", def.Name, gray(line))
			}
			return nil
		},
	}
}
