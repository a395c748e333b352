package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/atlas-foundry/psml-go-sdk/internal/logger"
	"github.com/atlas-foundry/psml-go-sdk/psml"
)

// DefaultKey is the storage key of the editing session. The suffix is bumped whenever the
// record layout changes, so stale records are ignored instead of misread.
const DefaultKey = "psml-editor-document/v1"

// Session is one editing session: the document plus its metadata.
type Session struct {
	ID           uuid.UUID
	Title        string
	LastModified time.Time
	// HasStarted is set once the document holds anything beyond the root.
	HasStarted bool
	Doc        *psml.Document
}

// record is the persisted form of a Session.
type record struct {
	ID           uuid.UUID     `json:"id"`
	Title        string        `json:"title,omitempty"`
	LastModified time.Time     `json:"lastModified"`
	HasStarted   bool          `json:"hasStarted"`
	Document     psml.Snapshot `json:"document"`
}

// Manager saves and restores a Session under a single key.
type Manager struct {
	store Store
	key   string
	log   *logger.Logger
	now   func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithKey stores the session under key instead of DefaultKey. An empty key is ignored.
func WithKey(key string) Option {
	return func(m *Manager) {
		if key != "" {
			m.key = key
		}
	}
}

// WithLogger sets the logger; nil keeps the no-op logger.
func WithLogger(log *logger.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithClock overrides time.Now for LastModified stamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager returns a Manager persisting sessions through store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{store: store, key: DefaultKey, log: logger.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With("service", "session", "key", m.key)
	return m
}

// Key returns the storage key in use.
func (m *Manager) Key() string { return m.key }

// Fresh returns a new session holding an empty document.
func (m *Manager) Fresh() *Session {
	return &Session{ID: uuid.New(), LastModified: m.now().UTC(), Doc: psml.NewDocument()}
}

// Load restores the stored session, or returns a fresh one when nothing is stored.
// A record that cannot be decoded or restored is reported as an error wrapping
// psml.ErrCorruptSnapshot.
func (m *Manager) Load(ctx context.Context) (*Session, error) {
	data, err := m.store.Get(ctx, m.key)
	if errors.Is(err, ErrNotFound) {
		m.log.Debug("no stored session")
		return m.Fresh(), nil
	}
	if err != nil {
		m.log.Warn("load session failed", "error", err)
		return nil, err
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		m.log.Warn("stored session unreadable", "error", err)
		return nil, fmt.Errorf("decode session: %w: %w", psml.ErrCorruptSnapshot, err)
	}
	doc, err := psml.Restore(rec.Document)
	if err != nil {
		m.log.Warn("stored session corrupt", "error", err)
		return nil, fmt.Errorf("restore session: %w", err)
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	m.log.Debug("session loaded", "session_id", rec.ID.String(), "nodes", doc.Len())
	return &Session{
		ID:           rec.ID,
		Title:        rec.Title,
		LastModified: rec.LastModified,
		HasStarted:   rec.HasStarted,
		Doc:          doc,
	}, nil
}

// Save persists s, stamping LastModified.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	if s == nil || s.Doc == nil {
		return errors.New("save session: nil session or document")
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.LastModified = m.now().UTC()
	if s.Doc.Len() > 1 {
		s.HasStarted = true
	}
	data, err := json.Marshal(record{
		ID:           s.ID,
		Title:        s.Title,
		LastModified: s.LastModified,
		HasStarted:   s.HasStarted,
		Document:     s.Doc.Snapshot(),
	})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := m.store.Set(ctx, m.key, data); err != nil {
		m.log.Error("save session failed", "error", err)
		return err
	}
	m.log.Debug("session saved", "session_id", s.ID.String(), "nodes", s.Doc.Len(), "bytes", len(data))
	return nil
}

// Clear removes the stored session.
func (m *Manager) Clear(ctx context.Context) error {
	if err := m.store.Delete(ctx, m.key); err != nil && !errors.Is(err, ErrNotFound) {
		m.log.Error("clear session failed", "error", err)
		return err
	}
	m.log.Info("session cleared")
	return nil
}

// Available reports whether the backing store can be written.
func (m *Manager) Available(ctx context.Context) bool {
	if err := m.store.Ping(ctx); err != nil {
		m.log.Warn("session store unavailable", "error", err)
		return false
	}
	return true
}
