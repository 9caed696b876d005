package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tadasupo/backend/internal/audit"
	"github.com/tadasupo/backend/internal/config"
	httpapi "github.com/tadasupo/backend/internal/http"
	"github.com/tadasupo/backend/internal/identity"
	"github.com/tadasupo/backend/internal/repository"
	"github.com/tadasupo/backend/internal/schema"
	"github.com/tadasupo/backend/internal/service"
	"github.com/tadasupo/backend/internal/settings"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "tadasupo-backend").Logger()

	ctx := context.Background()
	loc := cfg.Location()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open row store")
	}
	defer store.Close()

	if err := schema.Ensure(ctx, store.Store); err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure schema")
	}
	st := settings.New(store.Store)
	if err := st.Reload(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to load settings")
	}

	repo := repository.New(store.Store, loc)
	resolver := identity.New(repo, st)

	guard, closeGuard, err := newGuard(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up mutation lock")
	}
	defer closeGuard()

	dispatcher := newMailer(cfg, st, logger)
	meetings := newMeetings(cfg, st, loc, logger)

	files, filesDir, err := newFileStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StorageDriver).Msg("failed to set up attachment storage")
	}

	svc := &service.CaseService{
		Repo:        repo,
		Settings:    st,
		Identity:    resolver,
		Audit:       audit.New(repo, logger),
		Guard:       guard,
		Mail:        dispatcher,
		Meetings:    meetings,
		Files:       files,
		Location:    loc,
		Logger:      logger,
		MailFrom:    cfg.MailFrom,
		ZoomEnabled: meetings.Zoom.Enabled,
	}
	if dispatcher.CanReadThreads() {
		svc.Threads = dispatcher
	}

	scheduler := cron.New(cron.WithLocation(loc))
	if _, err := scheduler.AddFunc(cfg.SettingsRefresh, func() {
		if err := st.Reload(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("settings refresh failed")
		}
	}); err != nil {
		logger.Fatal().Err(err).Str("schedule", cfg.SettingsRefresh).Msg("invalid SETTINGS_REFRESH")
	}
	scheduler.Start()

	router := httpapi.Router(cfg, httpapi.Deps{
		Service:  svc,
		Identity: resolver,
		Ping:     store.Ping,
		FilesDir: filesDir,
		Logger:   logger,
	})

	var handler http.Handler = router
	if cfg.RequestTimeout > 0 {
		handler = http.TimeoutHandler(router, cfg.RequestTimeout, `{"error":{"code":"INTERNAL","message":"request timed out"}}`)
	}
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	<-scheduler.Stop().Done()
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
