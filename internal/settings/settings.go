// Package settings reads the key/value settings table and caches it until
// the next Reload.
package settings

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/tadasupo/backend/internal/apperr"
	"github.com/tadasupo/backend/internal/rowstore"
	"github.com/tadasupo/backend/internal/schema"
)

const (
	KeyAdminEmails         = "ADMIN_EMAILS"
	KeyCaseUsageLimit      = "CASE_USAGE_LIMIT"
	KeyAnnualUsageLimit    = "ANNUAL_USAGE_LIMIT"
	KeyMailDryRun          = "MAIL_DRY_RUN"
	KeyMailForceCC         = "MAIL_FORCE_CC"
	KeyMailInitialSubject  = "MAIL_INITIAL_SUBJECT"
	KeyMailInitialBody     = "MAIL_INITIAL_BODY"
	KeyMailDeclinedSubject = "MAIL_DECLINED_SUBJECT"
	KeyMailDeclinedBody    = "MAIL_DECLINED_BODY"
	KeyZoomAccountID       = "ZOOM_ACCOUNT_ID"
	KeyZoomClientID        = "ZOOM_CLIENT_ID"
	KeyZoomClientSecret    = "ZOOM_CLIENT_SECRET"
	KeySharedCalendarID    = "SHARED_CALENDAR_ID"

	DefaultCaseUsageLimit   = 3
	DefaultAnnualUsageLimit = 10

	categoryMarker = "#"
)

// EditableKeys may be changed through the admin panel.
var EditableKeys = map[string]bool{
	KeyAdminEmails:         true,
	KeyCaseUsageLimit:      true,
	KeyAnnualUsageLimit:    true,
	KeyMailDryRun:          true,
	KeyMailForceCC:         true,
	KeyMailInitialSubject:  true,
	KeyMailInitialBody:     true,
	KeyMailDeclinedSubject: true,
	KeyMailDeclinedBody:    true,
	KeySharedCalendarID:    true,
}

var secretKeys = map[string]bool{
	KeyZoomClientSecret: true,
}

type Store struct {
	rows rowstore.Store

	mu     sync.RWMutex
	values map[string]string
}

func New(rows rowstore.Store) *Store {
	return &Store{rows: rows, values: map[string]string{}}
}

// Reload re-reads the settings table, skipping blank keys and category rows.
func (s *Store) Reload(ctx context.Context) error {
	rows, err := s.rows.Rows(ctx, schema.TableSettings)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	values := make(map[string]string, len(rows))
	for _, r := range rows {
		key := strings.TrimSpace(r.Cell(schema.SettingKey))
		if key == "" || strings.HasPrefix(key, categoryMarker) {
			continue
		}
		values[key] = strings.TrimSpace(r.Cell(schema.SettingValue))
	}
	s.mu.Lock()
	s.values = values
	s.mu.Unlock()
	return nil
}

// Get returns the value for key, or def when the key is missing or blank.
func (s *Store) Get(key, def string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[key]; ok && v != "" {
		return v
	}
	return def
}

// Int returns a positive integer setting, or def when unset or invalid.
func (s *Store) Int(key string, def int) int {
	n, err := strconv.Atoi(s.Get(key, ""))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func (s *Store) Bool(key string) bool {
	b, _ := strconv.ParseBool(strings.ToLower(s.Get(key, "false")))
	return b
}

// List splits a comma separated setting into trimmed, non-empty items.
func (s *Store) List(key string) []string {
	raw := s.Get(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (s *Store) CaseUsageLimit() int {
	return s.Int(KeyCaseUsageLimit, DefaultCaseUsageLimit)
}

func (s *Store) AnnualUsageLimit() int {
	return s.Int(KeyAnnualUsageLimit, DefaultAnnualUsageLimit)
}

// Visible returns every setting except secrets, for display to admins.
func (s *Store) Visible() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		if secretKeys[k] {
			continue
		}
		out[k] = v
	}
	return out
}

// Patch validates and writes the given keys, then reloads. The caller must
// hold the mutation lock.
func (s *Store) Patch(ctx context.Context, patch map[string]string) error {
	keys := make([]string, 0, len(patch))
	for k, v := range patch {
		if !EditableKeys[k] {
			return apperr.New(apperr.InvalidArgument, "setting %q is not editable", k)
		}
		if err := validate(k, strings.TrimSpace(v)); err != nil {
			return err
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows, err := s.rows.Rows(ctx, schema.TableSettings)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	for _, k := range keys {
		v := strings.TrimSpace(patch[k])
		idx, _ := rowstore.Find(rows, schema.SettingKey, k)
		if idx == -1 {
			err = s.rows.AppendRow(ctx, schema.TableSettings, rowstore.Row{k, k, v, "", ""})
		} else {
			err = s.rows.WriteCells(ctx, schema.TableSettings, idx, map[int]string{schema.SettingValue: v})
		}
		if err != nil {
			return fmt.Errorf("write setting %s: %w", k, err)
		}
	}
	return s.Reload(ctx)
}

func validate(key, value string) error {
	switch key {
	case KeyCaseUsageLimit, KeyAnnualUsageLimit:
		if value == "" {
			return nil
		}
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return apperr.New(apperr.InvalidArgument, "%s must be a positive integer", key)
		}
	case KeyMailDryRun:
		if value == "" {
			return nil
		}
		if _, err := strconv.ParseBool(strings.ToLower(value)); err != nil {
			return apperr.New(apperr.InvalidArgument, "%s must be true or false", key)
		}
	}
	return nil
}
