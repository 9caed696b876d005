// Package repository maps the case tables of the row store to typed models.
// Every lookup re-reads the table, so a single call sees the rows as of its
// own read.
package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tadasupo/backend/internal/models"
	"github.com/tadasupo/backend/internal/rowstore"
	"github.com/tadasupo/backend/internal/schema"
)

type Repo struct {
	Store    rowstore.Store
	Location *time.Location
}

func New(store rowstore.Store, loc *time.Location) *Repo {
	if loc == nil {
		loc = time.UTC
	}
	return &Repo{Store: store, Location: loc}
}

func (r *Repo) ListCases(ctx context.Context) ([]models.Case, error) {
	rows, err := r.Store.Rows(ctx, schema.TableCases)
	if err != nil {
		return nil, fmt.Errorf("read cases: %w", err)
	}
	out := make([]models.Case, 0, len(rows))
	for _, row := range rows {
		c := DecodeCase(row)
		if c.ID == "" {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// FindCase returns the case and its data index, or -1 when absent.
func (r *Repo) FindCase(ctx context.Context, caseID string) (int, models.Case, error) {
	idx, row, err := rowstore.FindRow(ctx, r.Store, schema.TableCases, schema.CaseID, caseID)
	if err != nil {
		return -1, models.Case{}, fmt.Errorf("read cases: %w", err)
	}
	if idx == -1 {
		return -1, models.Case{}, nil
	}
	return idx, DecodeCase(row), nil
}

func (r *Repo) AppendCase(ctx context.Context, c models.Case) error {
	return r.Store.AppendRow(ctx, schema.TableCases, EncodeCase(c))
}

func (r *Repo) WriteCase(ctx context.Context, idx int, cells map[int]string) error {
	return r.Store.WriteCells(ctx, schema.TableCases, idx, cells)
}

// ListRecords returns every support record keyed by case id.
func (r *Repo) ListRecords(ctx context.Context) (map[string]models.SupportRecord, error) {
	rows, err := r.Store.Rows(ctx, schema.TableRecords)
	if err != nil {
		return nil, fmt.Errorf("read support records: %w", err)
	}
	out := make(map[string]models.SupportRecord, len(rows))
	for _, row := range rows {
		rec := DecodeRecord(row, r.Location)
		if rec.CaseID == "" {
			continue
		}
		if _, dup := out[rec.CaseID]; dup {
			continue
		}
		out[rec.CaseID] = rec
	}
	return out, nil
}

// FindRecord returns the support record for caseID and its data index, or -1.
func (r *Repo) FindRecord(ctx context.Context, caseID string) (int, models.SupportRecord, error) {
	idx, row, err := rowstore.FindRow(ctx, r.Store, schema.TableRecords, schema.RecCaseID, caseID)
	if err != nil {
		return -1, models.SupportRecord{}, fmt.Errorf("read support records: %w", err)
	}
	if idx == -1 {
		return -1, models.SupportRecord{}, nil
	}
	return idx, DecodeRecord(row, r.Location), nil
}

func (r *Repo) AppendRecord(ctx context.Context, rec models.SupportRecord) error {
	return r.Store.AppendRow(ctx, schema.TableRecords, EncodeRecord(rec))
}

func (r *Repo) WriteRecord(ctx context.Context, idx int, cells map[int]string) error {
	return r.Store.WriteCells(ctx, schema.TableRecords, idx, cells)
}

func (r *Repo) ListEmails(ctx context.Context) ([]models.EmailHistoryEntry, error) {
	rows, err := r.Store.Rows(ctx, schema.TableEmailHistory)
	if err != nil {
		return nil, fmt.Errorf("read email history: %w", err)
	}
	out := make([]models.EmailHistoryEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, DecodeEmail(row, r.Location))
	}
	return out, nil
}

func (r *Repo) AppendEmail(ctx context.Context, e models.EmailHistoryEntry) error {
	return r.Store.AppendRow(ctx, schema.TableEmailHistory, EncodeEmail(e))
}

func (r *Repo) ListStaff(ctx context.Context) ([]models.Staff, error) {
	rows, err := r.Store.Rows(ctx, schema.TableStaff)
	if err != nil {
		return nil, fmt.Errorf("read staff: %w", err)
	}
	out := make([]models.Staff, 0, len(rows))
	for _, row := range rows {
		s := DecodeStaff(row)
		if s.Email == "" {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// FindStaff matches email case-insensitively and returns the data index or -1.
func (r *Repo) FindStaff(ctx context.Context, email string) (int, models.Staff, error) {
	rows, err := r.Store.Rows(ctx, schema.TableStaff)
	if err != nil {
		return -1, models.Staff{}, fmt.Errorf("read staff: %w", err)
	}
	if strings.TrimSpace(email) == "" {
		return -1, models.Staff{}, nil
	}
	idx, row := rowstore.FindFold(rows, schema.StaffEmail, email)
	if idx == -1 {
		return -1, models.Staff{}, nil
	}
	return idx, DecodeStaff(row), nil
}

func (r *Repo) AppendStaff(ctx context.Context, s models.Staff) error {
	rows, err := r.Store.Rows(ctx, schema.TableStaff)
	if err != nil {
		return fmt.Errorf("read staff: %w", err)
	}
	return r.Store.AppendRow(ctx, schema.TableStaff, EncodeStaff(len(rows)+1, s))
}

func (r *Repo) WriteStaff(ctx context.Context, idx int, cells map[int]string) error {
	return r.Store.WriteCells(ctx, schema.TableStaff, idx, cells)
}

func (r *Repo) AppendAudit(ctx context.Context, e models.AuditLogEntry) error {
	return r.Store.AppendRow(ctx, schema.TableAuditLog, EncodeAudit(e))
}

// RecentAudit returns up to limit entries, newest first.
func (r *Repo) RecentAudit(ctx context.Context, limit int) ([]models.AuditLogEntry, error) {
	rows, err := r.Store.Rows(ctx, schema.TableAuditLog)
	if err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	out := make([]models.AuditLogEntry, 0, limit)
	for i := len(rows) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, DecodeAudit(rows[i], r.Location))
	}
	return out, nil
}
