package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/gitlab-user/internal/app"
	"github.com/dokzlo13/gitlab-user/internal/config"
	"github.com/dokzlo13/gitlab-user/internal/ledger"
)

func main() {
	// Support both -c and --config for config path
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file (.yaml or .toml)")
	flag.StringVar(&configPath, "c", "config.yaml", "Path to configuration file (shorthand)")
	checkMode := flag.Bool("check", false, "Only report whether anything would change")
	state := flag.String("state", "", "Desired state: present or absent (overrides config)")
	script := flag.String("script", "", "Lua script producing desired user fields (overrides config)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	history := flag.Int("history", 0, "Print the last N recorded runs as JSON and exit")
	overrides := map[string]any{}
	flag.Func("user", "Set a desired user field, as key=value (repeatable)", func(s string) error {
		key, value, ok := strings.Cut(s, "=")
		if !ok || key == "" {
			return fmt.Errorf("expected key=value, got %q", s)
		}
		overrides[key] = value
		return nil
	})
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		setupLogging("info", false, false)
		fail(fmt.Errorf("failed to load configuration: %w", err))
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "check":
			cfg.CheckMode = *checkMode
		case "state":
			cfg.State = *state
		case "script":
			cfg.Script = *script
		case "log-level":
			cfg.Log.Level = *logLevel
		}
	})
	for key, value := range overrides {
		cfg.User[key] = value
	}

	// Setup logging
	setupLogging(cfg.Log.Level, cfg.Log.JSON, cfg.Log.Colors)

	if *history > 0 {
		printHistory(cfg, *history)
		return
	}

	log.Info().Str("config", configPath).Msg("Starting gitlab-user")

	application, err := app.New(cfg)
	if err != nil {
		fail(err)
	}
	defer application.Close()

	// Create context that cancels on shutdown signal
	ctx := app.SignalContext()

	res := application.Run(ctx)
	emit(res)
	if res.Failed {
		application.Close()
		os.Exit(1)
	}
}

func emit(res app.Result) {
	out, err := json.Marshal(res)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to encode result")
	}
	fmt.Println(string(out))
}

// printHistory writes ledger entries as a JSON array. Nothing is sent to the API.
func printHistory(cfg *config.Config, limit int) {
	entries, err := app.History(cfg, limit)
	if err != nil {
		fail(err)
	}
	if entries == nil {
		entries = []*ledger.Entry{}
	}
	out, err := json.Marshal(entries)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to encode history")
	}
	fmt.Println(string(out))
}

func fail(err error) {
	log.Error().Err(err).Msg("Run failed")
	emit(app.Failure(err))
	os.Exit(1)
}

func setupLogging(level string, useJSON bool, colors bool) {
	// ISO 8601 format with timezone
	zerolog.TimeFieldFormat = time.RFC3339

	if useJSON {
		// JSON output for production
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		// Text output (with optional colors)
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			NoColor:    !colors,
		})
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
