package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tgbatch/internal/config"
	"tgbatch/internal/journal"
	"tgbatch/internal/transport"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
)

func doctorCmd() *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your tgbatch setup",
		Long: `Verifies that the configuration, bot token, journal, and output
paths are usable. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("tgbatch doctor v%s\n\n", version)

			var r report

			// 1. Config file
			if _, err := os.Stat(cfgPath); err != nil {
				r.warn("Config file", fmt.Sprintf("not found at %s, using defaults (run 'tgbatch init')", cfgPath))
			} else {
				r.pass("Config file", cfgPath)
			}

			// 2. Config loads and validates
			cfg, _, err := config.LoadOrDefaults(cfgPath)
			if err != nil {
				r.fail("Config validation", err.Error())
				return r.finish()
			}
			r.pass("Config validation", "valid")

			// 3. Token present and accepted
			token := cfg.Telegram.Token
			switch {
			case token == "":
				r.fail("Bot token", "not set (telegram.token or "+config.TokenEnv+")")
			case offline:
				r.warn("Bot token", "set, not verified (--offline)")
			default:
				name, err := checkToken(cfg)
				if err != nil {
					r.fail("Bot token", strings.ReplaceAll(err.Error(), token, "<token>"))
				} else {
					r.pass("Bot token", "@"+name)
				}
			}

			// 4. Journal writable
			if cfg.Journal.Enabled {
				if err := checkJournal(cmd.Context(), cfg.Journal.DBPath); err != nil {
					r.fail("Journal", err.Error())
				} else {
					r.pass("Journal", cfg.Journal.DBPath)
				}
			}

			// 5. Metrics and log directories
			if cfg.Metrics.Enabled {
				r.dir("Metrics textfile", cfg.Metrics.TextfilePath)
			}
			if cfg.Log.File != "" {
				r.dir("Log file", cfg.Log.File)
			}

			return r.finish()
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "skip the getMe call")
	return cmd
}

// checkToken calls getMe through the configured endpoint.
func checkToken(cfg *config.Config) (string, error) {
	endpoint := cfg.Telegram.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	timeout := time.Duration(cfg.Telegram.TimeoutSeconds) * time.Second
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Telegram.Token, endpoint, transport.NewHTTPClient(timeout))
	if err != nil {
		return "", err
	}
	return bot.Self.UserName, nil
}

func checkJournal(ctx context.Context, dbPath string) error {
	store, err := journal.Open(dbPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	if _, err := store.ListRuns(ctx, 1); err != nil {
		return fmt.Errorf("not readable: %w", err)
	}
	return nil
}

type report struct {
	passed, warned, failed int
}

func (r *report) pass(check, detail string) {
	r.passed++
	fmt.Printf("  %s %-20s %s\n", green("[PASS]"), check, detail)
}

func (r *report) warn(check, detail string) {
	r.warned++
	fmt.Printf("  %s %-20s %s\n", yellow("[WARN]"), check, detail)
}

func (r *report) fail(check, detail string) {
	r.failed++
	fmt.Printf("  %s %-20s %s\n", red("[FAIL]"), check, detail)
}

// dir checks that the parent directory of path exists or can be created.
func (r *report) dir(check, path string) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		r.warn(check, fmt.Sprintf("cannot create directory: %v", err))
		return
	}
	r.pass(check, path)
}

func (r *report) finish() error {
	fmt.Printf("\nResults: %d passed, %d warnings, %d failed\n", r.passed, r.warned, r.failed)
	if r.failed > 0 {
		return fmt.Errorf("%d check(s) failed", r.failed)
	}
	return nil
}
