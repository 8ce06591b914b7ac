// sse.go consumes the queue status push channel.
//
// The backend exposes queue progress as a server-sent event stream:
// named events ("position", "ready") with JSON data lines. The stream
// is lazy and non-restartable; once it errors or the subscriber closes
// it, admission must start over from a fresh queue entry.
package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/railrush/railrush/pkg/model"
)

// Subscription is an open push-channel stream for one queue ticket.
// Events arrive on Events in delivery order; the channel closes when
// the stream ends for any reason, after which Err reports the cause
// (nil for a clean close). Close is idempotent and guarantees no
// event is delivered afterwards.
type Subscription struct {
	events chan model.QueueEvent

	cancel context.CancelFunc
	once   sync.Once

	mu  sync.Mutex
	err error
}

// Subscribe opens the push channel for the given queue token. The
// returned subscription keeps reading until the stream ends, ctx is
// cancelled, or Close is called.
func (c *Client) Subscribe(ctx context.Context, token string) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)

	u := c.base + "/queue/status?" + url.Values{"queueToken": {token}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		cancel()
		return nil, &model.TransportError{Op: "queue status", Err: err}
	}
	req.Header.Set("Accept", "text/event-stream")
	c.attachSession(req)

	resp, err := c.stream.Do(req)
	if err != nil {
		cancel()
		return nil, &model.TransportError{Op: "queue status", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		re := rejectionFrom(resp)
		resp.Body.Close()
		cancel()
		return nil, re
	}

	sub := &Subscription{
		events: make(chan model.QueueEvent, 16),
		cancel: cancel,
	}
	go sub.read(ctx, resp)
	return sub, nil
}

// Events returns the event stream. Closed when the subscription ends.
func (s *Subscription) Events() <-chan model.QueueEvent { return s.events }

// Err reports why the stream ended. Valid after Events is closed; nil
// means a clean close (server finished or subscriber closed).
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close cancels the subscription. Safe to call multiple times and
// concurrently with event delivery; no event is delivered after it
// returns the stream to the closed state.
func (s *Subscription) Close() {
	s.once.Do(s.cancel)
}

func (s *Subscription) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// read parses the SSE wire format: "event:" names the next event,
// "data:" carries its JSON payload, a blank line dispatches.
func (s *Subscription) read(ctx context.Context, resp *http.Response) {
	defer close(s.events)
	defer resp.Body.Close()
	defer s.Close()

	var eventName, data string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if ev, ok := parseEvent(eventName, data); ok {
				select {
				case s.events <- ev:
				case <-ctx.Done():
					return
				}
			}
			eventName, data = "", ""
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		default:
			// Comment or unknown field; ignored per the SSE grammar.
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		s.setErr(&model.TransportError{Op: "queue status", Err: err})
	}
}

// parseEvent maps a named SSE event onto a QueueEvent. Unknown event
// names are dropped so the backend can add events without breaking
// old clients.
func parseEvent(name, data string) (model.QueueEvent, bool) {
	switch model.QueueEventType(name) {
	case model.EventPosition:
		var payload struct {
			Position int `json:"position"`
		}
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			return model.QueueEvent{}, false
		}
		return model.QueueEvent{Type: model.EventPosition, Position: payload.Position}, true
	case model.EventReady:
		return model.QueueEvent{Type: model.EventReady}, true
	default:
		return model.QueueEvent{}, false
	}
}
