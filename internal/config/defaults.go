package config

func Defaults() *Config {
	return &Config{
		Telegram: TelegramConfig{
			TimeoutSeconds: 60,
			MaxRetries:     0,
		},
		Batch: BatchConfig{
			ContinueOnFail: false,
		},
		Journal: JournalConfig{
			Enabled: false,
			DBPath:  "~/.tgbatch/journal.db",
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  20,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}
