// Package gateway is the RPC façade over the booking backend.
//
// It owns the wire details the controllers should never see: URL
// layout, the Session-Id credential header, and the split between
// transport failures and application-level rejections. Controllers
// call typed methods and get typed errors back.
//
// Every authenticated request reads the session identifier from a
// CredentialSource at send time, so clearing the persisted session
// immediately stops it from being attached.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/railrush/railrush/pkg/model"
)

// defaultTimeout bounds individual RPC round trips. The booking
// session deadline is the only user-visible timeout; this one just
// turns a hung connection into a prompt transport error.
const defaultTimeout = 10 * time.Second

// CredentialSource supplies the session identifier attached to
// requests. An empty string means "no session yet".
// *identity.Store satisfies this.
type CredentialSource interface {
	SessionID() string
}

// Client talks to the booking backend. Stateless apart from its
// configuration; safe for concurrent use.
type Client struct {
	base   string
	http   *http.Client
	stream *http.Client // no response timeout: used for the SSE stream
	creds  CredentialSource
	log    *logrus.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger for request diagnostics.
func WithLogger(log *logrus.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// New creates a gateway client for the backend at base
// (e.g. "http://localhost:8080/api"). creds may be nil for a client
// that never authenticates.
func New(base string, creds CredentialSource, opts ...Option) *Client {
	c := &Client{
		base:   base,
		http:   &http.Client{Timeout: defaultTimeout},
		stream: &http.Client{},
		creds:  creds,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logrus.New()
		c.log.SetOutput(io.Discard)
	}
	return c
}

// EnterQueue requests admission to the virtual queue for guestID.
func (c *Client) EnterQueue(ctx context.Context, guestID string) (*model.QueueTicket, error) {
	q := url.Values{"userId": {guestID}}
	var ticket model.QueueTicket
	if err := c.do(ctx, http.MethodPost, "/queue/enter", q, nil, &ticket, "enter queue"); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// Login authenticates and returns the session credentials. The caller
// persists them; the gateway itself stores nothing.
func (c *Client) Login(ctx context.Context, username, password string) (*model.Credentials, error) {
	body := map[string]string{"username": username, "password": password}
	var creds model.Credentials
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, body, &creds, "login"); err != nil {
		return nil, err
	}
	return &creds, nil
}

// Logout tells the backend to drop the current session.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil, "logout")
}

// ValidateSession asks the backend whether the current session is
// still valid and how many seconds remain. A well-formed
// {valid: false} answer is not an error; callers decide how to react.
func (c *Client) ValidateSession(ctx context.Context) (*model.SessionState, error) {
	var state model.SessionState
	if err := c.do(ctx, http.MethodGet, "/auth/validate", nil, nil, &state, "validate session"); err != nil {
		return nil, err
	}
	return &state, nil
}

// ListTrains fetches the current train availability snapshot.
func (c *Client) ListTrains(ctx context.Context) ([]model.Train, error) {
	var trains []model.Train
	if err := c.do(ctx, http.MethodGet, "/booking/trains", nil, nil, &trains, "list trains"); err != nil {
		return nil, err
	}
	return trains, nil
}

// Book submits a booking for trainID and returns the confirmed seat.
func (c *Client) Book(ctx context.Context, trainID int64) (*model.Booking, error) {
	body := map[string]int64{"trainId": trainID}
	var booking model.Booking
	if err := c.do(ctx, http.MethodPost, "/booking/book", nil, body, &booking, "book"); err != nil {
		return nil, err
	}
	return &booking, nil
}

// MyBookings fetches the bookings recorded server-side for the current
// session.
func (c *Client) MyBookings(ctx context.Context) ([]model.Booking, error) {
	var bookings []model.Booking
	if err := c.do(ctx, http.MethodGet, "/booking/my-bookings", nil, nil, &bookings, "my bookings"); err != nil {
		return nil, err
	}
	return bookings, nil
}

// do runs one JSON round trip. Connection-level failures become
// *model.TransportError; non-2xx responses become
// *model.RejectionError carrying the backend's message when it sent
// one.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any, op string) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.attachSession(req)

	c.log.WithFields(logrus.Fields{"method": method, "url": u}).Debug("gateway request")

	resp, err := c.http.Do(req)
	if err != nil {
		return &model.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return rejectionFrom(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &model.TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// attachSession sets the Session-Id header if a session exists.
func (c *Client) attachSession(req *http.Request) {
	if c.creds == nil {
		return
	}
	if id := c.creds.SessionID(); id != "" {
		req.Header.Set("Session-Id", id)
	}
}

// rejectionFrom builds a RejectionError from a non-2xx response,
// pulling the backend's human-readable message when present.
func rejectionFrom(resp *http.Response) *model.RejectionError {
	re := &model.RejectionError{Status: resp.StatusCode}
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload); err == nil {
		re.Message = payload.Message
	}
	return re
}
