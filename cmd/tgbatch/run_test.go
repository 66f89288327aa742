package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"tgbatch/internal/batch"
	"tgbatch/internal/config"
	"tgbatch/internal/domain"
	"tgbatch/internal/params"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func changedSet(names ...string) func(string) bool {
	set := map[string]bool{}
	for _, n := range names {
		set[n] = true
	}
	return func(name string) bool { return set[name] }
}

func TestResolveBatchConfig_FileValues(t *testing.T) {
	yes := true
	file := &params.File{Operation: "editMessageText", BinaryData: true, ContinueOnFail: &yes}

	got, err := resolveBatchConfig(file, config.Defaults(), runOptions{}, changedSet())
	require.NoError(t, err)
	assert.Equal(t, batch.Config{Operation: domain.EditMessageText, BinaryData: true, ContinueOnFail: true}, got)
}

func TestResolveBatchConfig_FlagsWin(t *testing.T) {
	yes := true
	file := &params.File{Operation: "editMessageText", BinaryData: true, ContinueOnFail: &yes}
	opts := runOptions{operation: "sendMessage", binary: false, continueOnFail: false}

	got, err := resolveBatchConfig(file, config.Defaults(), opts, changedSet("operation", "binary", "continue-on-fail"))
	require.NoError(t, err)
	assert.Equal(t, batch.Config{Operation: domain.SendMessage}, got)
}

func TestResolveBatchConfig_ConfigFallback(t *testing.T) {
	cfg := config.Defaults()
	cfg.Batch.ContinueOnFail = true
	file := &params.File{Operation: "sendMessage"}

	got, err := resolveBatchConfig(file, cfg, runOptions{}, changedSet())
	require.NoError(t, err)
	assert.True(t, got.ContinueOnFail)
}

func TestResolveBatchConfig_UnknownOperation(t *testing.T) {
	file := &params.File{Operation: "sendPhoto"}
	_, err := resolveBatchConfig(file, config.Defaults(), runOptions{}, changedSet())
	var uerr *domain.UnsupportedOperationError
	assert.True(t, errors.As(err, &uerr))
}

func TestEncodeOutcomes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, encodeOutcomes(&buf, []domain.Outcome{
		{Index: 0, JSON: map[string]any{"ok": true}},
		{Index: 1, JSON: map[string]any{}, Error: "boom"},
	}))
	assert.JSONEq(t, `[
		{"index":0,"json":{"ok":true}},
		{"index":1,"json":{},"error":"boom"}
	]`, buf.String())

	buf.Reset()
	require.NoError(t, encodeOutcomes(&buf, nil))
	assert.JSONEq(t, `[]`, buf.String())
}

func TestWriteOutcomes_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, writeOutcomes(path, []domain.Outcome{{Index: 0, JSON: json.Number("1")}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"index":0,"json":1}]`, string(data))
}

func TestPrintSummary(t *testing.T) {
	color.NoColor = true
	res := &batch.Result{RunID: "r1", Outcomes: make([]domain.Outcome, 2), Failed: 1}

	var buf bytes.Buffer
	printSummary(&buf, res, 2, false, nil)
	assert.Equal(t, "run r1: 2 items, 2 records, 1 failed\n", buf.String())

	buf.Reset()
	runErr := &domain.ItemError{Index: 1, Operation: domain.SendMessage, Err: errors.New("chat not found")}
	printSummary(&buf, &batch.Result{RunID: "r2", Outcomes: make([]domain.Outcome, 1)}, 3, true, runErr)
	assert.Equal(t, "dry run r2: 3 items, 1 records\nstopped at item 1: chat not found\n", buf.String())

	buf.Reset()
	printSummary(&buf, &batch.Result{RunID: "r3", Outcomes: make([]domain.Outcome, 1)}, 1, false, nil)
	assert.Contains(t, buf.String(), "all items succeeded")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
}

func TestNewLogger_RotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tgbatch.log")
	l, closer := newLogger(config.LogConfig{Level: "info", File: path, MaxSizeMB: 1}, false)
	l.Info("hello", "k", "v")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=hello")
	assert.Contains(t, string(data), "k=v")
}

func TestNewLogger_DebugFlag(t *testing.T) {
	l, closer := newLogger(config.LogConfig{Level: "error"}, true)
	defer closer.Close()
	assert.True(t, l.Enabled(t.Context(), slog.LevelDebug))
}
