package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/tripmate-app/tripmate/internal/api"
	"github.com/tripmate-app/tripmate/internal/bot"
	"github.com/tripmate-app/tripmate/internal/flow"
	"github.com/tripmate-app/tripmate/internal/lockfile"
	"github.com/tripmate-app/tripmate/internal/messaging"
	"github.com/tripmate-app/tripmate/internal/pageimport"
	"github.com/tripmate-app/tripmate/internal/store"
	"github.com/tripmate-app/tripmate/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for Tripmate state data
	DefaultStateDir = "/var/lib/tripmate"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "tripmate.db"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

func main() {
	// Load environment configuration (logger level depends on it)
	config := loadEnvironmentConfig()

	// Initialize structured logger
	initializeLogger(config.Debug)

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// Guard the state directory against a second instance
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	slog.Info("Bootstrapping Tripmate", "version", Version)
	if err := run(flags); err != nil {
		slog.Error("Tripmate failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Tripmate exited successfully")
}

// Config holds environment configuration
type Config struct {
	BotToken      string
	WebhookSecret string
	DbDriver      string
	DatabaseURL   string
	StateDir      string
	APIAddr       string
	BaseURL       string
	Debug         bool
}

// Flags holds command line flag values
type Flags struct {
	stateDir      *string
	dbDriver      *string
	dbDSN         *string
	botToken      *string
	webhookSecret *string
	apiAddr       *string
	baseURL       *string
}

// initializeLogger sets up structured logging
func initializeLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		BotToken:      os.Getenv("TELEGRAM_BOT_TOKEN"),
		WebhookSecret: os.Getenv("TELEGRAM_WEBHOOK_SECRET"),
		DbDriver:      os.Getenv("TRIPMATE_DB_DRIVER"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		StateDir:      os.Getenv("TRIPMATE_STATE_DIR"),
		APIAddr:       os.Getenv("API_ADDR"),
		BaseURL:       os.Getenv("TRIPMATE_BASE_URL"),
		Debug:         util.ParseBoolEnv("TRIPMATE_DEBUG", false),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No TRIPMATE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	} else {
		slog.Debug("TRIPMATE_STATE_DIR found in environment", "state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"TELEGRAM_BOT_TOKEN_SET", config.BotToken != "",
		"TELEGRAM_WEBHOOK_SECRET_SET", config.WebhookSecret != "",
		"TRIPMATE_DB_DRIVER", config.DbDriver,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"TRIPMATE_STATE_DIR", config.StateDir,
		"API_ADDR", config.APIAddr,
		"TRIPMATE_BASE_URL", config.BaseURL)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:      flag.String("state-dir", config.StateDir, "state directory for Tripmate data (overrides $TRIPMATE_STATE_DIR)"),
		dbDriver:      flag.String("db-driver", config.DbDriver, "database driver, sqlite or postgres (overrides $TRIPMATE_DB_DRIVER)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseURL, "database DSN or SQLite file path (overrides $DATABASE_URL)"),
		botToken:      flag.String("bot-token", config.BotToken, "Telegram bot token (overrides $TELEGRAM_BOT_TOKEN)"),
		webhookSecret: flag.String("webhook-secret", config.WebhookSecret, "Telegram webhook secret token (overrides $TELEGRAM_WEBHOOK_SECRET)"),
		apiAddr:       flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		baseURL:       flag.String("base-url", config.BaseURL, "base URL for deep links in bot replies (overrides $TRIPMATE_BASE_URL)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDriver", *flags.dbDriver,
		"dbDSN_set", *flags.dbDSN != "",
		"botTokenSet", *flags.botToken != "",
		"webhookSecretSet", *flags.webhookSecret != "",
		"apiAddr", *flags.apiAddr,
		"baseURL", *flags.baseURL)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) == "sqlite" {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
	}
	return nil
}

// buildStore selects and opens the storage backend from the driver flag,
// falling back to DSN detection when no driver is named.
func buildStore(flags Flags) (store.Store, string, error) {
	driver := *flags.dbDriver
	if driver == "" {
		driver = store.DetectDSNType(*flags.dbDSN)
	}
	switch driver {
	case "postgres":
		slog.Debug("Configuring PostgreSQL store", "dsn_set", *flags.dbDSN != "")
		st, err := store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
		return st, driver, err
	default:
		slog.Debug("Configuring SQLite store", "db_path", *flags.dbDSN)
		st, err := store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
		return st, "sqlite", err
	}
}

// run wires the modules together and serves until interrupted.
func run(flags Flags) error {
	st, driver, err := buildStore(flags)
	if err != nil {
		return err
	}
	defer st.Close()

	msgService, err := messaging.NewTelegramService(*flags.botToken)
	if err != nil {
		return err
	}

	sm := flow.NewStoreBasedStateManager(st)
	pages := pageimport.NewClient()
	baseURL := *flags.baseURL

	itineraries := flow.NewItineraryFlow(sm, st, msgService, baseURL)
	events := flow.NewEventFlow(sm, st, msgService, pages, baseURL)
	contacts := flow.NewContactFlow(sm, st, msgService, baseURL)
	forwards := flow.NewForwardFlow(sm, st, msgService, contacts)

	dispatcher := bot.NewDispatcher(sm, st, msgService, itineraries, events, contacts, forwards)

	server, err := api.NewServer(dispatcher, api.Opts{
		Addr:          *flags.apiAddr,
		WebhookSecret: *flags.webhookSecret,
		Version:       Version,
		StoreDriver:   driver,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Run(ctx)
}
