package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/railrush/railrush/pkg/gateway"
	"github.com/railrush/railrush/pkg/identity"
)

const (
	defaultDir = ".railrush"
	defaultDB  = ".railrush/railrush.db"
	defaultAPI = "http://localhost:8080/api"
)

// Exit codes shared by the commands.
const (
	exitOK      = 0
	exitErr     = 1
	exitExpired = 2
)

// app holds shared state for all CLI subcommands.
type app struct {
	store *identity.Store
	gw    *gateway.Client
	log   *logrus.Logger
}

// newApp opens the identity database and builds the gateway client.
// Creates the .railrush/ directory if using the default DB path.
func newApp() (*app, error) {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if lvl, err := logrus.ParseLevel(envOr("RAILRUSH_LOG", "warn")); err == nil {
		log.SetLevel(lvl)
	}

	dbPath := envOr("RAILRUSH_DB", defaultDB)
	if dbPath == defaultDB {
		if err := os.MkdirAll(defaultDir, 0755); err != nil {
			return nil, fmt.Errorf("cannot create %s: %w", defaultDir, err)
		}
	}
	store, err := identity.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("cannot open identity database %q: %w", dbPath, err)
	}

	gw := gateway.New(envOr("RAILRUSH_API", defaultAPI), store, gateway.WithLogger(log))

	return &app{store: store, gw: gw, log: log}, nil
}

// Close releases the identity database.
func (a *app) Close() { a.store.Close() }

// endSession runs the common teardown: best-effort backend logout,
// then clear the persisted session. The logout may fail (the session
// is often already dead server-side) — that is logged and otherwise
// ignored; local cleanup always happens.
func (a *app) endSession(ctx context.Context) {
	logoutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.gw.Logout(logoutCtx); err != nil {
		a.log.WithError(err).Warn("backend logout failed; clearing local session anyway")
	}
	if err := a.store.ClearSession(); err != nil {
		a.log.WithError(err).Error("clearing local session failed")
	}
}

// checkOpenAt enforces an optional booking-open gate. Returns an error
// when the open time lies in the future.
func checkOpenAt(openAt string) error {
	if openAt == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, openAt)
	if err != nil {
		return fmt.Errorf("invalid --open-at %q (want RFC 3339): %w", openAt, err)
	}
	if until := time.Until(t); until > 0 {
		return fmt.Errorf("booking opens at %s (in %s)", t.Format(time.RFC3339), until.Round(time.Second))
	}
	return nil
}

// formatClock renders seconds as m:ss for the countdown display.
func formatClock(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
