// Package store persists the guardian's small amount of durable state: the
// latest history-scan report (a single slot, last writer wins) and the
// boolean settings flags.
//
// Values live in a byte key-value Backend. Four backends are provided:
//   - bbolt    embedded key-value file, the default
//   - sqlite   single-table database, for installs that already inspect state with SQL tools
//   - jsonfile one human-editable JSON document guarded by a file lock
//   - memory   process-local, used in tests and when no path is configured
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"privacy-guardian/internal/logger"
	"privacy-guardian/internal/pii"
)

// Persisted keys.
const (
	KeyLastHistoryScan      = "lastHistoryScan"
	KeyMonitoringEnabled    = "isMonitoringEnabled"
	KeyAutoScan             = "autoScan"
	KeyNotificationsEnabled = "notificationsEnabled"
)

// Backend names accepted by Open.
const (
	BackendBbolt    = "bbolt"
	BackendSQLite   = "sqlite"
	BackendJSONFile = "jsonfile"
	BackendMemory   = "memory"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown store backend")

// Backend is a byte key-value store. Implementations must be safe for
// concurrent use.
type Backend interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}

// Preferences is the user-facing view of the settings flags.
type Preferences struct {
	MonitoringEnabled    bool `json:"isMonitoringEnabled"`
	AutoScan             bool `json:"autoScan"`
	NotificationsEnabled bool `json:"notificationsEnabled"`
}

// Store provides typed access to the persisted state.
type Store struct {
	b   Backend
	log *logger.Logger
}

// New wraps a Backend.
func New(b Backend, log *logger.Logger) *Store {
	if log == nil {
		log = logger.Discard()
	}
	return &Store{b: b, log: log}
}

// Open creates the named backend at path and wraps it. An empty path always
// selects the memory backend.
func Open(backend, path string, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Discard()
	}
	if path == "" {
		backend = BackendMemory
	}
	var (
		b   Backend
		err error
	)
	switch backend {
	case BackendBbolt:
		b, err = OpenBbolt(path)
	case BackendSQLite:
		b, err = OpenSQLite(path)
	case BackendJSONFile:
		b, err = OpenJSONFile(path)
	case BackendMemory:
		b = NewMemory()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
	if err != nil {
		return nil, err
	}
	log.Infof("open", "%s store ready (%s)", backend, orNone(path))
	return New(b, log), nil
}

// SaveReport overwrites the persisted report.
func (s *Store) SaveReport(ctx context.Context, r pii.ScanReport) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := s.b.Put(ctx, KeyLastHistoryScan, data); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// LastReport returns the persisted report, if one exists.
func (s *Store) LastReport(ctx context.Context) (pii.ScanReport, bool, error) {
	data, ok, err := s.b.Get(ctx, KeyLastHistoryScan)
	if err != nil || !ok {
		return pii.ScanReport{}, false, err
	}
	var r pii.ScanReport
	if err := json.Unmarshal(data, &r); err != nil {
		return pii.ScanReport{}, false, fmt.Errorf("decode report: %w", err)
	}
	return r, true, nil
}

// Flag reads a boolean setting, returning def when it was never written.
// A malformed value also yields def and is logged.
func (s *Store) Flag(ctx context.Context, key string, def bool) (bool, error) {
	data, ok, err := s.b.Get(ctx, key)
	if err != nil {
		return def, fmt.Errorf("read %s: %w", key, err)
	}
	if !ok {
		return def, nil
	}
	v, err := strconv.ParseBool(string(data))
	if err != nil {
		s.log.Warnf("flag", "ignoring malformed %s=%q", key, data)
		return def, nil
	}
	return v, nil
}

// SetFlag writes a boolean setting.
func (s *Store) SetFlag(ctx context.Context, key string, v bool) error {
	if err := s.b.Put(ctx, key, []byte(strconv.FormatBool(v))); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Preferences reads every settings flag. All default to true.
func (s *Store) Preferences(ctx context.Context) (Preferences, error) {
	var (
		p   Preferences
		err error
	)
	if p.MonitoringEnabled, err = s.Flag(ctx, KeyMonitoringEnabled, true); err != nil {
		return p, err
	}
	if p.AutoScan, err = s.Flag(ctx, KeyAutoScan, true); err != nil {
		return p, err
	}
	if p.NotificationsEnabled, err = s.Flag(ctx, KeyNotificationsEnabled, true); err != nil {
		return p, err
	}
	return p, nil
}

// Close releases the backend.
func (s *Store) Close() error { return s.b.Close() }

func orNone(path string) string {
	if path == "" {
		return "in-memory"
	}
	return path
}
