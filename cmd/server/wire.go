package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tadasupo/backend/internal/config"
	"github.com/tadasupo/backend/internal/db"
	"github.com/tadasupo/backend/internal/lock"
	"github.com/tadasupo/backend/internal/mail"
	"github.com/tadasupo/backend/internal/meeting"
	"github.com/tadasupo/backend/internal/rowstore"
	"github.com/tadasupo/backend/internal/settings"
	"github.com/tadasupo/backend/internal/storage"
)

type rowBackend struct {
	Store rowstore.Store
	Ping  func(ctx context.Context) error
	close func()
}

func (b rowBackend) Close() {
	if b.close != nil {
		b.close()
	}
}

func openStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (rowBackend, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pg, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return rowBackend{}, err
		}
		return rowBackend{Store: pg, Ping: pg.Ping, close: pg.Close}, nil
	case config.StoreXLSX:
		if err := os.MkdirAll(filepath.Dir(cfg.WorkbookPath), 0o755); err != nil {
			return rowBackend{}, fmt.Errorf("create workbook dir: %w", err)
		}
		wb, err := rowstore.OpenWorkbook(cfg.WorkbookPath)
		if err != nil {
			return rowBackend{}, err
		}
		return rowBackend{Store: wb, close: func() {
			if err := wb.Close(); err != nil {
				logger.Error().Err(err).Msg("workbook close failed")
			}
		}}, nil
	default:
		logger.Warn().Msg("using in-memory row store, data is lost on restart")
		return rowBackend{Store: rowstore.NewMemory()}, nil
	}
}

func newGuard(ctx context.Context, cfg config.Config, logger zerolog.Logger) (lock.Guard, func(), error) {
	if cfg.RedisURL == "" {
		return lock.NewLocal(cfg.LockTimeout), func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return lock.NewRedis(rdb, cfg.LockTimeout, logger), func() { _ = rdb.Close() }, nil
}

func newMailer(cfg config.Config, st *settings.Store, logger zerolog.Logger) *mail.Dispatcher {
	var sender mail.Sender
	if cfg.MailConfigured() {
		sender = mail.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom)
	} else {
		from := cfg.MailFrom
		if from == "" {
			from = "support@localhost"
		}
		logger.Warn().Msg("SMTP not configured, mail is kept in memory")
		sender = mail.NewMemory(from)
	}
	options := func() mail.Options {
		return mail.Options{
			DryRun:  st.Bool(settings.KeyMailDryRun),
			ForceCC: st.List(settings.KeyMailForceCC),
		}
	}
	dispatcher := mail.NewDispatcher(sender, options, logger)
	if cfg.IMAPAddr != "" {
		user, password := cfg.IMAPCredentials()
		dispatcher.Reader = mail.NewIMAP(cfg.IMAPAddr, user, password, cfg.Mailboxes())
	} else if cfg.MailConfigured() {
		logger.Warn().Msg("IMAP not configured, threads are read from email history")
	}
	return dispatcher
}

func newMeetings(cfg config.Config, st *settings.Store, loc *time.Location, logger zerolog.Logger) *meeting.Router {
	router := &meeting.Router{
		Zoom: meeting.NewZoom(func() meeting.ZoomCredentials {
			return meeting.ZoomCredentials{
				AccountID:    st.Get(settings.KeyZoomAccountID, ""),
				ClientID:     st.Get(settings.KeyZoomClientID, ""),
				ClientSecret: st.Get(settings.KeyZoomClientSecret, ""),
			}
		}, loc),
		Logger: logger,
	}
	if cfg.GoogleConfigured() {
		router.Calendar = meeting.NewCalendar(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRefreshToken,
			func() string { return st.Get(settings.KeySharedCalendarID, "primary") }, loc)
	} else {
		logger.Warn().Msg("Google credentials not configured, Meet links are unavailable")
	}
	return router
}

// newFileStore returns the attachment store and, for local storage, the
// directory to serve under /api/files.
func newFileStore(ctx context.Context, cfg config.Config) (storage.FileStore, string, error) {
	if cfg.StorageDriver == config.StorageS3 {
		s3, err := storage.NewS3(ctx, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Region, cfg.S3Bucket, cfg.StoragePublicBaseURL)
		if err != nil {
			return nil, "", err
		}
		return s3, "", nil
	}
	base := cfg.StoragePublicBaseURL
	if base == "" {
		base = "http://localhost:" + cfg.Port + "/api/files"
	}
	local, err := storage.NewLocal(cfg.StorageLocalDir, base)
	if err != nil {
		return nil, "", err
	}
	return local, cfg.StorageLocalDir, nil
}
