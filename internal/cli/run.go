package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aescanero/dagrun/internal/application/engine"
	"github.com/aescanero/dagrun/internal/application/executors"
	"github.com/aescanero/dagrun/internal/application/orchestrator"
	"github.com/aescanero/dagrun/internal/config"
	"github.com/aescanero/dagrun/internal/domain"
	"github.com/aescanero/dagrun/internal/ports"
	"github.com/aescanero/dagrun/internal/workflowfile"
	"github.com/aescanero/dagrun/pkg/adapters/events/memory"
	"github.com/aescanero/dagrun/pkg/adapters/llm"
	"github.com/aescanero/dagrun/pkg/adapters/metrics/noop"
	memorystorage "github.com/aescanero/dagrun/pkg/adapters/storage/memory"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ErrRunFailed is returned by the run command when the workflow run ends in
// the failed status.
var ErrRunFailed = errors.New("run failed")

type runOptions struct {
	file     string
	input    string
	output   string
	timeout  time.Duration
	logLevel string
}

func newRunCommand() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a workflow file once, in-process",
		Example: `  dagrun run -f workflow.yaml --input '{"value":5}'
  dagrun run -f workflow.json -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflow(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.file, "file", "f", "", "workflow definition (YAML or JSON, - for stdin)")
	flags.StringVar(&opts.input, "input", "", "run input as JSON")
	flags.StringVarP(&opts.output, "output", "o", "text", "output format: text or json")
	flags.DurationVar(&opts.timeout, "timeout", 0, "abort node executions after this long (0 disables)")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "service log level (debug, info, warn, error)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runWorkflow(ctx context.Context, out io.Writer, opts *runOptions) error {
	if opts.output != "text" && opts.output != "json" {
		return fmt.Errorf("unsupported output format: %s", opts.output)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := newLogger(opts.logLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	wf, err := workflowfile.LoadFile(opts.file)
	if err != nil {
		return err
	}
	if err := orchestrator.NewValidator().Validate(wf); err != nil {
		return fmt.Errorf("%w: %v", orchestrator.ErrInvalidWorkflow, err)
	}
	input, err := workflowfile.ParseInput(opts.input)
	if err != nil {
		return err
	}

	llmClient, err := llm.NewClient(&llm.Config{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		Timeout:  cfg.LLM.RequestTimeout,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	registry := executors.NewRegistry(executors.Options{
		HTTPTimeout:  cfg.Executors.HTTPTimeout,
		LLM:          llmClient,
		LLMModel:     cfg.LLM.DefaultModel,
		LLMMaxTokens: cfg.LLM.DefaultMaxTokens,
		Logger:       logger,
	})

	bus := memory.NewEventBus(1024)
	defer func() { _ = bus.Close() }()
	eng := engine.New(registry, memorystorage.NewRunStore(), bus, noop.New(), logger)

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	run := domain.NewRun(wf.ID, input, "cli")

	subCtx, stop := context.WithCancel(context.Background())
	events, err := bus.Subscribe(subCtx, ports.LogTopic(run.ID))
	if err != nil {
		stop()
		return err
	}
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for msg := range events {
			entry, ok := msg.Payload.(domain.LogEntry)
			if ok && opts.output == "text" {
				printLogEntry(out, entry)
			}
		}
	}()

	execErr := eng.Execute(ctx, wf, run)
	stop()
	<-printed
	if execErr != nil {
		logger.Error("run could not be recorded", zap.String("run_id", run.ID), zap.Error(execErr))
		return execErr
	}

	if err := printRun(out, run, opts.output); err != nil {
		return err
	}
	if run.Status == domain.RunStatusFailed {
		msg := "unknown error"
		if run.Error != nil {
			msg = run.Error.Message
		}
		return fmt.Errorf("%w: %s", ErrRunFailed, msg)
	}
	return nil
}

func printLogEntry(out io.Writer, entry domain.LogEntry) {
	fmt.Fprintf(out, "%s %-5s %s\n", entry.Timestamp.Format(time.RFC3339), entry.Level, entry.Message)
}

func printRun(out io.Writer, run *domain.Run, format string) error {
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}

	fmt.Fprintf(out, "Run %s finished with status %s in %dms\n", run.ID, run.Status, run.Duration)
	if run.Error != nil {
		fmt.Fprintf(out, "Error: %s\n", run.Error.Message)
		return nil
	}
	data, err := json.MarshalIndent(run.Output, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Fprintf(out, "Output: %s\n", data)
	return nil
}
