package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tgbatch/internal/batch"
	"tgbatch/internal/bus"
	"tgbatch/internal/config"
	"tgbatch/internal/domain"
	"tgbatch/internal/journal"
	"tgbatch/internal/metrics"
	"tgbatch/internal/params"
	"tgbatch/internal/transport"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

type runOptions struct {
	operation      string
	binary         bool
	continueOnFail bool
	output         string
	dryRun         bool
}

func runCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run <batch-file>",
		Short: "Send or edit one message per item of a batch file",
		Long: `Reads a YAML or JSON batch file and issues one Bot API call per item,
in input order. Responses are written as a JSON array of records.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, args[0], opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.operation, "operation", "", "override the batch operation (sendMessage, editMessageText)")
	f.BoolVar(&opts.binary, "binary", false, "override binary mode: attach each item's file as multipart")
	f.BoolVar(&opts.continueOnFail, "continue-on-fail", false, "record failures and keep going instead of stopping")
	f.StringVarP(&opts.output, "output", "o", "-", "where to write the records (- for stdout)")
	f.BoolVar(&opts.dryRun, "dry-run", false, "build every request and print it without calling Telegram")
	return cmd
}

func runBatch(cmd *cobra.Command, path string, opts runOptions) error {
	cfg, closeLog, err := loadConfig()
	if err != nil {
		return err
	}
	defer closeLog()

	file, err := params.Load(path, logger)
	if err != nil {
		return err
	}
	batchCfg, err := resolveBatchConfig(file, cfg, opts, cmd.Flags().Changed)
	if err != nil {
		return err
	}
	items := file.InputItems()

	var dispatcher domain.Dispatcher = transport.Echo{}
	if !opts.dryRun {
		if cfg.Telegram.Token == "" {
			return fmt.Errorf("no bot token: set telegram.token in %s or %s", resolveConfigPath(), config.TokenEnv)
		}
		dispatcher = transport.New(transport.Config{
			Token:       cfg.Telegram.Token,
			APIEndpoint: cfg.Telegram.APIEndpoint,
			Timeout:     time.Duration(cfg.Telegram.TimeoutSeconds) * time.Second,
			MaxRetries:  cfg.Telegram.MaxRetries,
			Logger:      logger,
		})
	}

	events := bus.NewEventBus(logger)
	events.On(bus.EventItemState, func(e bus.Event) {
		logger.Debug("item", "index", e.Index, "state", e.State, "duration", e.Duration)
	})

	reg := prometheus.NewRegistry()
	metrics.MustNew(reg).Attach(events)

	if cfg.Journal.Enabled && !opts.dryRun {
		store, err := journal.Open(cfg.Journal.DBPath, logger)
		if err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		defer store.Close()
		store.Attach(events)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exec := batch.NewExecutor(batch.ExecutorConfig{
		Dispatcher: dispatcher,
		Events:     events,
		Logger:     logger,
	})
	res, runErr := exec.Run(ctx, batchCfg, items, file.Resolver())
	if res == nil {
		return runErr
	}

	if err := writeOutcomes(opts.output, res.Outcomes); err != nil {
		return err
	}
	if cfg.Metrics.Enabled {
		if err := metrics.WriteTextfile(cfg.Metrics.TextfilePath, reg); err != nil {
			logger.Warn("metrics textfile not written", "path", cfg.Metrics.TextfilePath, "err", err)
		}
	}
	printSummary(os.Stderr, res, len(items), opts.dryRun, runErr)
	return runErr
}

// resolveBatchConfig applies precedence: explicit flag, then batch file,
// then config file.
func resolveBatchConfig(file *params.File, cfg *config.Config, opts runOptions, changed func(string) bool) (batch.Config, error) {
	opName := file.Operation
	if changed("operation") {
		opName = opts.operation
	}
	op, err := domain.ParseOperation(opName)
	if err != nil {
		return batch.Config{}, err
	}

	binary := file.BinaryData
	if changed("binary") {
		binary = opts.binary
	}

	continueOnFail := cfg.Batch.ContinueOnFail
	switch {
	case changed("continue-on-fail"):
		continueOnFail = opts.continueOnFail
	case file.ContinueOnFail != nil:
		continueOnFail = *file.ContinueOnFail
	}

	return batch.Config{Operation: op, BinaryData: binary, ContinueOnFail: continueOnFail}, nil
}

func writeOutcomes(path string, outcomes []domain.Outcome) error {
	var w io.Writer = os.Stdout
	if path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	return encodeOutcomes(w, outcomes)
}

func encodeOutcomes(w io.Writer, outcomes []domain.Outcome) error {
	if outcomes == nil {
		outcomes = []domain.Outcome{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(outcomes); err != nil {
		return fmt.Errorf("write outcomes: %w", err)
	}
	return nil
}

func printSummary(w io.Writer, res *batch.Result, items int, dryRun bool, runErr error) {
	label := "run"
	if dryRun {
		label = "dry run"
	}
	fmt.Fprintf(w, "%s %s: %d items, %d records", bold(label), res.RunID, items, len(res.Outcomes))
	switch {
	case res.Failed > 0:
		fmt.Fprintf(w, ", %s\n", yellow(fmt.Sprintf("%d failed", res.Failed)))
	default:
		fmt.Fprintln(w)
	}

	var itemErr *domain.ItemError
	switch {
	case errors.As(runErr, &itemErr):
		fmt.Fprintf(w, "%s at item %d: %v\n", red("stopped"), itemErr.Index, itemErr.Err)
	case runErr != nil:
		fmt.Fprintf(w, "%s: %v\n", red("stopped"), runErr)
	case res.Failed == 0:
		fmt.Fprintln(w, green("all items succeeded"))
	}
}
