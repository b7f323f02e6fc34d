package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/exiscale/urlhealth/internal/alert"
	"github.com/exiscale/urlhealth/internal/config"
	"github.com/exiscale/urlhealth/internal/handlers"
	"github.com/exiscale/urlhealth/internal/middleware"
	"github.com/exiscale/urlhealth/internal/notify"
	"github.com/exiscale/urlhealth/internal/orchestrator"
	"github.com/exiscale/urlhealth/internal/store"
	"github.com/exiscale/urlhealth/internal/vt"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storeClient := store.NewClient(cfg.StoreBaseURL, cfg.StoreBaseID, cfg.StoreAPIKey)

	// System config overrides live in the store; loaded once, merged over
	// env, never re-read while running.
	if cfg.StoreBaseID != "" && cfg.StoreAPIKey != "" {
		sysCfg, err := store.NewSystemConfigRepo(storeClient).Load(ctx)
		if err != nil {
			slog.Warn("loading system config", "err", err)
		} else {
			cfg = cfg.ApplyOverrides(sysCfg)
		}
	}

	// Missing credentials disable the loop but not the API: liveness must
	// keep answering so the deploy can see what is wrong.
	orchestratorEnabled := true
	if err := cfg.ValidateOrchestrator(); err != nil {
		slog.Error("orchestrator disabled", "err", err)
		orchestratorEnabled = false
	}

	weights, err := vt.LoadWeightTable(cfg.VendorWeightsFile)
	if err != nil {
		log.Fatalf("vendor weights: %v", err)
	}

	scanner := vt.NewClient(vt.Options{
		BaseURL:         cfg.VTBaseURL,
		APIKey:          cfg.VTAPIKey,
		PollInterval:    cfg.VTPollInterval,
		MaxPollAttempts: cfg.VTMaxPollAttempts,
		CacheMaxAge:     cfg.VTCacheMaxAge,
		Weights:         weights,
	})

	emailSender := buildEmailSender(cfg)
	chatSender := buildChatSender(cfg)
	dispatcher := notify.NewDispatcher(emailSender, chatSender)

	scheduleRepo := store.NewScheduleRepo(storeClient)
	urlRepo := store.NewURLRepo(storeClient)
	scanLogRepo := store.NewScanLogRepo(storeClient)
	alertRepo := store.NewAlertRepo(storeClient)
	accountRepo := store.NewAccountRepo(storeClient)

	orch := orchestrator.New(
		scheduleRepo, urlRepo, scanLogRepo, alertRepo, accountRepo,
		scanner, alert.New(alertRepo), dispatcher,
		cfg.ScanInterval,
		time.Duration(cfg.DefaultCooldownHours)*time.Hour,
	)

	var c *cron.Cron
	if orchestratorEnabled {
		// One tick per minute. SkipIfStillRunning keeps a slow tick from
		// overlapping the next nominal firing.
		c = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
		if _, err := c.AddFunc("* * * * *", func() { orch.Tick(ctx) }); err != nil {
			log.Fatalf("cron: %v", err)
		}
		c.Start()
		go orch.Tick(ctx) // initial check on startup
		slog.Info("scheduler running", "tick", "1m", "scan_interval", cfg.ScanInterval.String())
	}

	router := buildRouter(cfg, scanner, scanLogRepo, emailSender, chatSender, orchestratorEnabled)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		slog.Info("api listening", "port", cfg.Port, "tls", cfg.TLSCertFile != "")
		var err error
		if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
			err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	if c != nil {
		// Stop firing new ticks, then wait for the running one: record
		// writes must finish so no entity is left half-constructed.
		<-c.Stop().Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown", "err", err)
	}
}

func buildRouter(cfg config.Config, scanner handlers.Scanner, scanLogs handlers.ScanLogStore, email notify.EmailSender, chat notify.ChatSender, orchestratorRunning bool) http.Handler {
	scanH := &handlers.ScanHandler{Scanner: scanner, ScanLogs: scanLogs}
	notifyH := &handlers.NotifyTestHandler{Email: email, Chat: chat}
	healthH := &handlers.HealthHandler{StartedAt: time.Now(), OrchestratorRunning: orchestratorRunning}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SecurityHeaders(cfg.TLSCertFile != ""))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(middleware.Prometheus)

	r.Get("/api/health", healthH.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.JWTMiddleware([]byte(cfg.JWTSecret)))
		r.Use(middleware.MaxBytes(middleware.DefaultMaxBodyBytes))
		r.Use(middleware.ScanRateLimiter().Middleware)
		r.Post("/api/scan", scanH.StartScan)
		r.Post("/api/scan-batch", scanH.StartBatchScan)
		r.Post("/api/test-email", notifyH.TestEmail)
		r.Post("/api/test-telegram", notifyH.TestTelegram)
	})

	return r
}

func buildEmailSender(cfg config.Config) notify.EmailSender {
	if cfg.SMTPUser == "" || cfg.SMTPPass == "" {
		slog.Info("email transport not configured")
		return nil
	}
	s, err := notify.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
	if err != nil {
		slog.Warn("email transport disabled", "err", err)
		return nil
	}
	return s
}

func buildChatSender(cfg config.Config) notify.ChatSender {
	if cfg.TelegramBotToken == "" {
		slog.Info("telegram transport not configured")
		return nil
	}
	s, err := notify.NewTelegramSender(cfg.TelegramBotToken)
	if err != nil {
		slog.Warn("telegram transport disabled", "err", err)
		return nil
	}
	return s
}

func setupLogging(format string) {
	if format == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	}
}
