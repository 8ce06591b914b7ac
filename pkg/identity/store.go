// Package identity manages the persisted identity and session state
// for railrush.
//
// A visitor gets a stable guest identifier on first contact; it is the
// key under which the backend queues them and it must survive
// restarts. After authentication the store also holds the session
// credential and its display fields, which are cleared on logout or
// expiry while the guest identifier lives on until a full Clear.
//
// All reads and writes of this state go through the store. Call sites
// must never read-modify-write it themselves: a single owner is what
// prevents two code paths from generating duplicate guest identifiers.
package identity

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/railrush/railrush/pkg/model"

	_ "modernc.org/sqlite"
)

// Store persists identity and session state in SQLite. WAL mode keeps
// concurrent CLI invocations from tripping over each other.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the identity database and initializes the
// schema.
func Open(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(60000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS guest (
		id         INTEGER PRIMARY KEY CHECK (id = 1),
		guest_id   TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS session (
		id         INTEGER PRIMARY KEY CHECK (id = 1),
		session_id TEXT NOT NULL,
		user_id    TEXT NOT NULL,
		user_name  TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// GetOrCreateGuestID returns the persisted guest identifier, creating
// and persisting one on first call. Idempotent: every later call
// returns the same value. The singleton row plus ON CONFLICT DO
// NOTHING makes concurrent first calls converge on one identifier.
func (s *Store) GetOrCreateGuestID() (string, error) {
	if id, err := s.guestID(); err == nil {
		return id, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	candidate := newGuestID()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	err := retryOnContention(func() error {
		_, err := s.db.Exec(
			`INSERT INTO guest (id, guest_id, created_at) VALUES (1, ?, ?)
			 ON CONFLICT(id) DO NOTHING`,
			candidate, now,
		)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("create guest id: %w", err)
	}
	// Re-read: another process may have won the insert.
	return s.guestID()
}

func (s *Store) guestID() (string, error) {
	var id string
	err := s.db.QueryRow(`SELECT guest_id FROM guest WHERE id = 1`).Scan(&id)
	return id, err
}

// newGuestID builds a guest identifier unique with overwhelming
// probability across concurrent visitors: millisecond timestamp plus
// a random suffix.
func newGuestID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("guest_%d_%s", time.Now().UnixMilli(), suffix)
}

// SetSession persists the authenticated session credential and its
// display fields, replacing any previous session.
func (s *Store) SetSession(c model.Credentials) error {
	if c.SessionID == "" {
		return fmt.Errorf("set session: empty session id")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return retryOnContention(func() error {
		_, err := s.db.Exec(
			`INSERT INTO session (id, session_id, user_id, user_name, created_at)
			 VALUES (1, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   session_id = excluded.session_id,
			   user_id    = excluded.user_id,
			   user_name  = excluded.user_name,
			   created_at = excluded.created_at`,
			c.SessionID, c.UserID, c.Name, now,
		)
		return err
	})
}

// Session returns the persisted credentials, or model.ErrNoSession if
// none are stored.
func (s *Store) Session() (*model.Credentials, error) {
	var c model.Credentials
	err := s.db.QueryRow(
		`SELECT session_id, user_id, user_name FROM session WHERE id = 1`,
	).Scan(&c.SessionID, &c.UserID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SessionID returns the persisted session identifier, or "" when there
// is none. This satisfies the gateway's credential source: the gateway
// reads it before every request so a cleared session stops being sent
// immediately.
func (s *Store) SessionID() string {
	c, err := s.Session()
	if err != nil {
		return ""
	}
	return c.SessionID
}

// ClearSession removes the persisted session, keeping the guest
// identifier. Used on logout and expiry. Idempotent.
func (s *Store) ClearSession() error {
	return retryOnContention(func() error {
		_, err := s.db.Exec(`DELETE FROM session WHERE id = 1`)
		return err
	})
}

// Clear removes all persisted identity and session data. Idempotent.
func (s *Store) Clear() error {
	return retryOnContention(func() error {
		_, err := s.db.Exec(`DELETE FROM session; DELETE FROM guest;`)
		return err
	})
}
