package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/hperssn/focusflow/internal/config"
	"github.com/hperssn/focusflow/internal/events"
	"github.com/hperssn/focusflow/internal/feedback"
	httpapi "github.com/hperssn/focusflow/internal/http"
	"github.com/hperssn/focusflow/internal/logging"
	"github.com/hperssn/focusflow/internal/metrics"
	"github.com/hperssn/focusflow/internal/notify"
	"github.com/hperssn/focusflow/internal/scoring"
	"github.com/hperssn/focusflow/internal/session"
	"github.com/hperssn/focusflow/internal/storage"
	"github.com/hperssn/focusflow/internal/tracking"
	"github.com/hperssn/focusflow/internal/users"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "focusflow: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("FOCUSFLOW_CONFIG_FILE"))
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Driver, err)
	}
	defer repo.Close()
	logger.Info("storage ready", zap.String("driver", cfg.Storage.Driver))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	loc, err := cfg.Analytics.Location()
	if err != nil {
		return err
	}

	hub := events.NewHub()
	defer hub.Close()
	publisher := events.Multi{hub}
	if cfg.Events.NATSURL != "" {
		nc, err := events.Connect(cfg.Events.NATSURL)
		if err != nil {
			return err
		}
		defer nc.Close()
		publisher = append(publisher, events.NewNATSPublisher(nc, cfg.Events.SubjectPrefix))
		logger.Info("publishing events to NATS", zap.String("url", cfg.Events.NATSURL))
	}

	sessions := session.NewService(repo, cfg.Tracking, logger.Named("session"), m)
	defer sessions.Close()

	pipeline := tracking.New(tracking.Deps{
		Repo:      repo,
		Scorer:    scoring.NewGateway(cfg.Scoring, nil, logger.Named("scoring"), m),
		Enricher:  newEnricher(cfg, logger, m),
		Sessions:  sessions,
		Publisher: publisher,
		Alerter:   newAlerter(cfg.Notify, logger, m),
		Logger:    logger.Named("tracking"),
		Metrics:   m,
	})
	defer pipeline.Wait()

	router := httpapi.NewRouter(httpapi.Deps{
		Users:          users.NewService(repo, logger.Named("users")),
		Sessions:       sessions,
		Tracker:        pipeline,
		Repo:           repo,
		Hub:            hub,
		Publisher:      publisher,
		Gatherer:       reg,
		Location:       loc,
		Logger:         logger.Named("http"),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		StaticDir:      cfg.Server.StaticDir,
	})

	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newEnricher wires the optional LLM and TTS clients. Missing credentials
// leave the canned messages and no audio.
func newEnricher(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) *feedback.Enricher {
	var (
		messages feedback.MessageGenerator
		voice    feedback.VoiceSynthesizer
	)

	if gen, err := feedback.NewLLMMessages(cfg.LLM); err == nil {
		messages = gen
	} else {
		logger.Warn("text generation disabled", zap.Error(err))
	}

	if tts, err := feedback.NewElevenLabs(cfg.Voice); err == nil {
		voice = tts
	} else {
		logger.Warn("voice synthesis disabled", zap.Error(err))
	}

	return feedback.NewEnricher(messages, voice, logger.Named("feedback"), m)
}

func newAlerter(cfg config.NotifyConfig, logger *zap.Logger, m *metrics.Metrics) *notify.Alerter {
	var mailer notify.Mailer
	if smtp, err := notify.NewSMTPMailer(cfg); err == nil {
		mailer = smtp
	} else {
		logger.Warn("focus drop emails disabled", zap.Error(err))
	}
	return notify.NewAlerter(mailer, cfg, logger.Named("notify"), m)
}
