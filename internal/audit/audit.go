// Package audit appends before/after snapshots of every mutation to the
// audit table. Writes never fail the caller.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/tadasupo/backend/internal/metrics"
	"github.com/tadasupo/backend/internal/models"
	"github.com/tadasupo/backend/internal/repository"
)

const (
	TargetCase     = "case"
	TargetStaff    = "staff"
	TargetSettings = "settings"
)

type Log struct {
	Repo   *repository.Repo
	Logger zerolog.Logger
	Now    func() time.Time
}

func New(repo *repository.Repo, logger zerolog.Logger) *Log {
	return &Log{Repo: repo, Logger: logger, Now: time.Now}
}

// Append records one entry. before/after are serialized as-is, nil becomes "".
func (l *Log) Append(ctx context.Context, actor models.Actor, action, targetType, targetID string, before, after any) {
	entry := models.AuditLogEntry{
		Timestamp:  l.now(),
		ActorEmail: actor.Email,
		ActorName:  actor.Name,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Before:     snapshot(before),
		After:      snapshot(after),
	}
	if err := l.Repo.AppendAudit(ctx, entry); err != nil {
		metrics.AuditFailures.Inc()
		l.Logger.Error().Err(err).
			Str("action", action).
			Str("target_id", targetID).
			Msg("audit write failed")
	}
}

func (l *Log) Recent(ctx context.Context, limit int) ([]models.AuditLogEntry, error) {
	return l.Repo.RecentAudit(ctx, limit)
}

func (l *Log) now() time.Time {
	if l.Now == nil {
		return time.Now()
	}
	return l.Now()
}

func snapshot(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
