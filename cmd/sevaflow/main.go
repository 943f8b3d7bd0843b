package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/digicsc/sevaflow/internal/api"
	"github.com/digicsc/sevaflow/internal/flow"
	"github.com/digicsc/sevaflow/internal/genai"
	"github.com/digicsc/sevaflow/internal/session"
	"github.com/digicsc/sevaflow/internal/store"
	"github.com/digicsc/sevaflow/internal/submit"
	"github.com/digicsc/sevaflow/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for SevaFlow state data
	DefaultStateDir = "/var/lib/sevaflow"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "sevaflow.db"
	// DefaultShutdownTimeout bounds graceful shutdown of the API server
	DefaultShutdownTimeout = 15 * time.Second
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	if err := run(flags, config); err != nil {
		slog.Error("SevaFlow failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("SevaFlow exited successfully")
}

// Config holds environment configuration
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DatabaseURL   string
	StateDir      string
	GeminiKey     string
	GeminiBaseURL string
	GeminiModel   string
	APIAddr       string
	SessionTTL    time.Duration
	PollInterval  time.Duration
}

// Flags holds command line flag values
type Flags struct {
	redisAddr *string
	dbDSN     *string
	stateDir  *string
	geminiKey *string
	apiAddr   *string
}

// initializeLogger sets up structured logging. LOG_LEVEL selects the
// minimum level (debug, info, warn, error); the default is info.
func initializeLogger() {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
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
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       util.ParseIntEnv("REDIS_DB", 0),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		StateDir:      os.Getenv("SEVAFLOW_STATE_DIR"),
		GeminiKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL: os.Getenv("GEMINI_BASE_URL"),
		GeminiModel:   os.Getenv("GEMINI_MODEL"),
		APIAddr:       os.Getenv("API_ADDR"),
		SessionTTL:    util.ParseDurationEnv("SESSION_TTL", 0),
		PollInterval:  util.ParseDurationEnv("SUBMIT_POLL_INTERVAL", 10*time.Second),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No SEVAFLOW_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"REDIS_ADDR_SET", config.RedisAddr != "",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"SEVAFLOW_STATE_DIR", config.StateDir,
		"GEMINI_API_KEY_SET", config.GeminiKey != "",
		"API_ADDR", config.APIAddr)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		redisAddr: flag.String("redis-addr", config.RedisAddr, "Redis address for session state (overrides $REDIS_ADDR)"),
		dbDSN:     flag.String("db-dsn", config.DatabaseURL, "database DSN for the submission store (overrides $DATABASE_URL)"),
		stateDir:  flag.String("state-dir", config.StateDir, "state directory for SevaFlow data (overrides $SEVAFLOW_STATE_DIR)"),
		geminiKey: flag.String("gemini-api-key", config.GeminiKey, "Gemini API key (overrides $GEMINI_API_KEY)"),
		apiAddr:   flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"redisAddr_set", *flags.redisAddr != "",
		"dbDSN_set", *flags.dbDSN != "",
		"stateDir", *flags.stateDir,
		"geminiKeySet", *flags.geminiKey != "",
		"apiAddr", *flags.apiAddr)

	// Follow a moved state directory when the DSN was derived from it.
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
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

// buildSessionStore selects Redis when configured, falling back to the
// process-local store for single-instance deployments.
func buildSessionStore(flags Flags, config Config) (session.Store, error) {
	if *flags.redisAddr == "" {
		slog.Warn("No Redis address configured, using in-memory session store")
		return session.NewMemoryStore(), nil
	}
	return session.NewRedisStore(
		session.WithAddr(*flags.redisAddr),
		session.WithPassword(config.RedisPassword),
		session.WithDB(config.RedisDB),
	)
}

// buildSubmissionRepo selects the submission store backend by DSN.
func buildSubmissionRepo(flags Flags) (store.SubmissionRepo, error) {
	if *flags.dbDSN == "" {
		slog.Warn("No database DSN configured, using in-memory submission store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
}

// buildGenAIClient constructs the model client, or nil when no key is
// configured. The engine degrades to canned replies without it.
func buildGenAIClient(flags Flags, config Config) genai.ClientInterface {
	if *flags.geminiKey == "" {
		slog.Warn("No Gemini API key configured, model-backed replies disabled")
		return nil
	}
	var genaiOpts []genai.Option
	genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.geminiKey))
	if config.GeminiBaseURL != "" {
		genaiOpts = append(genaiOpts, genai.WithBaseURL(config.GeminiBaseURL))
	}
	if config.GeminiModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(config.GeminiModel))
	}
	client, err := genai.NewClient(genaiOpts...)
	if err != nil {
		slog.Error("Failed to initialize GenAI client, model-backed replies disabled", "error", err)
		return nil
	}
	return client
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	return apiOpts
}

func run(flags Flags, config Config) error {
	sessions, err := buildSessionStore(flags, config)
	if err != nil {
		return err
	}
	repo, err := buildSubmissionRepo(flags)
	if err != nil {
		return err
	}
	defer repo.Close()

	gaClient := buildGenAIClient(flags, config)

	formatter := flow.NewFormatter()
	extractor := flow.NewExtractor(gaClient)
	classifier := flow.NewClassifier(gaClient)
	dispatcher := submit.NewDispatcher(repo)
	controller := flow.NewController(sessions, extractor, formatter, dispatcher, config.SessionTTL)
	engine := flow.NewEngine(sessions, classifier, controller, formatter, gaClient)

	runner := submit.NewRunner(repo, config.PollInterval)
	if err := runner.RecoverStale(); err != nil {
		slog.Error("Failed to recover stale submissions", "error", err)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go runner.Run(runCtx)

	server := api.NewServer(engine, repo, buildAPIOptions(flags)...)
	errCh := make(chan error, 1)
	go func() { errCh <- server.Run() }()

	slog.Info("SevaFlow started", "api_addr", *flags.apiAddr, "redis", *flags.redisAddr != "", "genai", gaClient != nil)

	select {
	case <-runCtx.Done():
		slog.Info("Shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("API server shutdown failed", "error", err)
	}
	return nil
}
