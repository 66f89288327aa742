package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"tgbatch/internal/journal"

	"github.com/spf13/cobra"
)

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect journaled batch runs",
	}

	var (
		limit  int
		asJSON bool
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeAll, err := openJournal()
			if err != nil {
				return err
			}
			defer closeAll()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(runs)
			}
			if len(runs) == 0 {
				fmt.Println("no runs recorded")
				return nil
			}
			for _, r := range runs {
				status := green("done")
				switch {
				case r.FinishedAt == nil:
					status = yellow("incomplete")
				case r.Error != "":
					status = red("aborted")
				}
				fmt.Printf("%-36s  %-16s  %s  items=%d records=%d failed=%d  %s\n",
					r.ID, r.Operation, r.StartedAt.Local().Format(time.DateTime), r.Items, r.Records, r.Failed, status)
			}
			return nil
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	list.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	show := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run and its records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeAll, err := openJournal()
			if err != nil {
				return err
			}
			defer closeAll()

			ctx := cmd.Context()
			run, err := store.GetRun(ctx, args[0])
			if errors.Is(err, journal.ErrRunNotFound) {
				return fmt.Errorf("no run with id %s", args[0])
			}
			if err != nil {
				return err
			}
			entries, err := store.Entries(ctx, run.ID)
			if err != nil {
				return err
			}
			return printJSON(struct {
				*journal.Run
				Records []journal.Entry `json:"records"`
			}{run, entries})
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}

// openJournal opens the configured journal for reading. It does not create
// a journal that was never written.
func openJournal() (*journal.Store, func(), error) {
	cfg, closeLog, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if _, err := os.Stat(cfg.Journal.DBPath); err != nil {
		closeLog()
		return nil, nil, fmt.Errorf("no journal at %s (enable journal.enabled and run a batch first)", cfg.Journal.DBPath)
	}
	store, err := journal.Open(cfg.Journal.DBPath, logger)
	if err != nil {
		closeLog()
		return nil, nil, err
	}
	return store, func() {
		store.Close()
		closeLog()
	}, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
