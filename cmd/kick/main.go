package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kickbot/kick/internal/auth"
	"github.com/kickbot/kick/internal/bot"
	"github.com/kickbot/kick/internal/flow"
	"github.com/kickbot/kick/internal/genai"
	"github.com/kickbot/kick/internal/lockfile"
	"github.com/kickbot/kick/internal/messaging"
	"github.com/kickbot/kick/internal/scheduler"
	"github.com/kickbot/kick/internal/store"
	"github.com/kickbot/kick/internal/util"
	"github.com/kickbot/kick/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for Kick state data
	DefaultStateDir = "/var/lib/kick"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "kick.db"
	// DefaultWhatsAppDBFileName is the default whatsmeow session database filename
	DefaultWhatsAppDBFileName = "whatsmeow.db"
	// DefaultWebhookAddr is the default listen address for the Twilio webhook server
	DefaultWebhookAddr = ":8080"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	if err := run(flags); err != nil {
		slog.Error("Kick failed to run", "error", err)
		lock.Release()
		os.Exit(1)
	}
	slog.Info("Kick exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL  string
	WhatsAppDSN  string
	StateDir     string
	OpenAIKey    string
	BotPassword  string
	Transport    string
	WebhookAddr  string
	NumericLogin bool
}

// Flags holds command line flag values
type Flags struct {
	stateDir    *string
	dbDSN       *string
	waDSN       *string
	openaiKey   *string
	password    *string
	transport   *string
	webhookAddr *string
	qrOutput    *string
	numeric     *bool
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
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
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		WhatsAppDSN:  os.Getenv("WHATSAPP_DB_DSN"),
		StateDir:     os.Getenv("KICK_STATE_DIR"),
		OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
		BotPassword:  os.Getenv("BOT_PASSWORD"),
		Transport:    os.Getenv("KICK_TRANSPORT"),
		WebhookAddr:  os.Getenv("WEBHOOK_ADDR"),
		NumericLogin: util.ParseBoolEnv("KICK_NUMERIC_CODE", false),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
	}
	if config.Transport == "" {
		config.Transport = "whatsapp"
	}
	if config.WebhookAddr == "" {
		config.WebhookAddr = DefaultWebhookAddr
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No DATABASE_URL provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	// The whatsmeow session store shares the Postgres DSN when one is
	// configured, otherwise it gets its own SQLite file.
	if config.WhatsAppDSN == "" {
		if store.DetectDSNType(config.DatabaseURL) == "postgres" {
			config.WhatsAppDSN = config.DatabaseURL
		} else {
			config.WhatsAppDSN = filepath.Join(config.StateDir, DefaultWhatsAppDBFileName)
		}
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"WHATSAPP_DB_DSN_SET", config.WhatsAppDSN != "",
		"KICK_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"BOT_PASSWORD_SET", config.BotPassword != "",
		"KICK_TRANSPORT", config.Transport,
		"WEBHOOK_ADDR", config.WebhookAddr)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:    flag.String("state-dir", config.StateDir, "state directory for Kick data (overrides $KICK_STATE_DIR)"),
		dbDSN:       flag.String("db-dsn", config.DatabaseURL, "database DSN for the bot store (overrides $DATABASE_URL)"),
		waDSN:       flag.String("wa-db-dsn", config.WhatsAppDSN, "database DSN for the WhatsApp session store (overrides $WHATSAPP_DB_DSN)"),
		openaiKey:   flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		password:    flag.String("password", config.BotPassword, "shared bot password (overrides $BOT_PASSWORD)"),
		transport:   flag.String("transport", config.Transport, "messaging transport: whatsapp or twilio (overrides $KICK_TRANSPORT)"),
		webhookAddr: flag.String("webhook-addr", config.WebhookAddr, "listen address for the Twilio webhook server (overrides $WEBHOOK_ADDR)"),
		qrOutput:    flag.String("qr-output", "", "path to write login QR code"),
		numeric:     flag.Bool("numeric-code", config.NumericLogin, "use numeric login code instead of QR code"),
	}
	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"waDSN_set", *flags.waDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"passwordSet", *flags.password != "",
		"transport", *flags.transport,
		"webhookAddr", *flags.webhookAddr,
		"qrOutput", *flags.qrOutput,
		"numeric", *flags.numeric)

	return flags
}

// run wires every component together and blocks until shutdown.
func run(flags Flags) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(*flags.dbDSN)
	if err != nil {
		return err
	}
	defer st.Close()

	ai, err := genai.NewClient(genai.WithAPIKey(*flags.openaiKey))
	if err != nil {
		return err
	}

	msgService, webhookSrv, err := buildMessagingService(flags)
	if err != nil {
		return err
	}

	presenter := bot.NewPresenter(msgService)
	committer := flow.NewCommitter(st)
	wizard := flow.NewWizard(flow.PracticeFields(), presenter, committer)

	authn, err := auth.NewAuthenticator(st, *flags.password)
	if err != nil {
		return err
	}

	sched := scheduler.NewScheduler()
	router := bot.NewRouter(msgService, wizard, authn, st, sched, ai)

	if err := router.RestoreSchedules(ctx); err != nil {
		slog.Error("Failed to restore reminder schedules", "error", err)
	}
	sched.Start()
	defer sched.Stop()

	if err := msgService.Start(ctx); err != nil {
		return err
	}
	defer msgService.Stop()

	if webhookSrv != nil {
		go func() {
			slog.Info("Webhook server listening", "addr", webhookSrv.Addr)
			if err := webhookSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Webhook server failed", "error", err)
				stop()
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			webhookSrv.Shutdown(shutdownCtx)
		}()
	}

	slog.Info("Kick is running", "transport", *flags.transport)
	router.Run(ctx)
	return nil
}

// openStore picks the storage backend by DSN type.
func openStore(dsn string) (store.Store, error) {
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithDSN(dsn))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", dsn)
	return store.NewSQLiteStore(store.WithDSN(dsn))
}

// buildMessagingService creates the configured transport. The Twilio
// transport also returns an HTTP server exposing the inbound webhook.
func buildMessagingService(flags Flags) (messaging.Service, *http.Server, error) {
	switch *flags.transport {
	case "twilio":
		svc, err := messaging.NewTwilioService()
		if err != nil {
			return nil, nil, err
		}
		mux := http.NewServeMux()
		mux.HandleFunc("POST /twilio/webhook", svc.WebhookHandler())
		srv := &http.Server{Addr: *flags.webhookAddr, Handler: mux}
		return svc, srv, nil

	default:
		var waOpts []whatsapp.Option
		if *flags.waDSN != "" {
			waOpts = append(waOpts, whatsapp.WithDBDSN(*flags.waDSN))
		}
		if *flags.qrOutput != "" {
			waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
		}
		if *flags.numeric {
			waOpts = append(waOpts, whatsapp.WithNumericCode())
		}
		client, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return nil, nil, err
		}
		return messaging.NewWhatsAppService(client), nil, nil
	}
}
