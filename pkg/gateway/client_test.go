package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/railrush/railrush/pkg/model"
)

// staticCreds is a fixed CredentialSource for tests.
type staticCreds string

func (s staticCreds) SessionID() string { return string(s) }

func TestEnterQueue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/queue/enter" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("userId"); got != "guest_1_abc" {
			t.Errorf("userId = %q, want guest_1_abc", got)
		}
		json.NewEncoder(w).Encode(model.QueueTicket{
			Token: "tok-1", Position: 512, Status: model.QueueWaiting,
		})
	}))
	defer srv.Close()

	c := New(srv.URL+"/api", nil)
	ticket, err := c.EnterQueue(context.Background(), "guest_1_abc")
	if err != nil {
		t.Fatalf("EnterQueue: %v", err)
	}
	if ticket.Token != "tok-1" || ticket.Position != 512 || ticket.Status != model.QueueWaiting {
		t.Fatalf("got %+v", ticket)
	}
}

func TestSessionHeaderAttached(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("Session-Id")
		json.NewEncoder(w).Encode(model.SessionState{Valid: true, RemainingSeconds: 90})
	}))
	defer srv.Close()

	c := New(srv.URL+"/api", staticCreds("sess-42"))
	state, err := c.ValidateSession(context.Background())
	if err != nil {
		t.Fatalf("ValidateSession: %v", err)
	}
	if gotHeader != "sess-42" {
		t.Fatalf("Session-Id header = %q, want sess-42", gotHeader)
	}
	if !state.Valid || state.RemainingSeconds != 90 {
		t.Fatalf("got %+v", state)
	}
}

func TestNoSessionHeaderWhenEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header["Session-Id"]; ok {
			t.Error("Session-Id header should be absent before login")
		}
		json.NewEncoder(w).Encode([]model.Train{})
	}))
	defer srv.Close()

	c := New(srv.URL+"/api", staticCreds(""))
	if _, err := c.ListTrains(context.Background()); err != nil {
		t.Fatalf("ListTrains: %v", err)
	}
}

func TestRejectionCarriesBackendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, `{"message":"seat no longer available"}`)
	}))
	defer srv.Close()

	c := New(srv.URL+"/api", nil)
	_, err := c.Book(context.Background(), 7)
	re, ok := model.AsRejection(err)
	if !ok {
		t.Fatalf("got %T (%v), want RejectionError", err, err)
	}
	if re.Status != http.StatusConflict || re.Message != "seat no longer available" {
		t.Fatalf("got %+v", re)
	}
}

func TestRejectionWithoutMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL+"/api", nil)
	_, err := c.ListTrains(context.Background())
	re, ok := model.AsRejection(err)
	if !ok {
		t.Fatalf("got %T (%v), want RejectionError", err, err)
	}
	if re.Message != "" {
		t.Fatalf("Message = %q, want empty for non-JSON body", re.Message)
	}
}

func TestTransportErrorOnDeadBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := New(srv.URL+"/api", nil, WithTimeout(time.Second))
	_, err := c.EnterQueue(context.Background(), "guest")
	if !model.IsTransport(err) {
		t.Fatalf("got %T (%v), want TransportError", err, err)
	}
}

func TestLoginAndBook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			var body struct{ Username, Password string }
			json.NewDecoder(r.Body).Decode(&body)
			if body.Username != "user1" || body.Password != "1234" {
				t.Errorf("login body = %+v", body)
			}
			json.NewEncoder(w).Encode(model.Credentials{SessionID: "s1", UserID: "user1", Name: "Kim"})
		case "/api/booking/book":
			var body struct {
				TrainID int64 `json:"trainId"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			json.NewEncoder(w).Encode(model.Booking{TrainID: body.TrainID, SeatNumber: "12A"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(srv.URL+"/api", nil)
	creds, err := c.Login(context.Background(), "user1", "1234")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if creds.SessionID != "s1" {
		t.Fatalf("got %+v", creds)
	}

	booking, err := c.Book(context.Background(), 7)
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if booking.TrainID != 7 || booking.SeatNumber != "12A" {
		t.Fatalf("got %+v", booking)
	}
}

// sseHandler streams the given pre-rendered SSE frames, flushing after
// each, then blocks until the client goes away.
func sseHandler(t *testing.T, frames []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t.Helper()
		if got := r.URL.Query().Get("queueToken"); got != "tok-1" {
			t.Errorf("queueToken = %q, want tok-1", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fl, ok := w.(http.Flusher)
		if !ok {
			t.Error("response writer must support flushing")
			return
		}
		for _, f := range frames {
			fmt.Fprint(w, f)
			fl.Flush()
		}
		<-r.Context().Done()
	}
}

func TestSubscribe_PositionThenReady(t *testing.T) {
	frames := []string{
		"event: position\ndata: {\"position\":500}\n\n",
		"event: position\ndata: {\"position\":200}\n\n",
		"event: position\ndata: {\"position\":1}\n\n",
		"event: ready\ndata: {}\n\n",
	}
	srv := httptest.NewServer(sseHandler(t, frames))
	defer srv.Close()

	c := New(srv.URL+"/api", nil)
	sub, err := c.Subscribe(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	want := []model.QueueEvent{
		{Type: model.EventPosition, Position: 500},
		{Type: model.EventPosition, Position: 200},
		{Type: model.EventPosition, Position: 1},
		{Type: model.EventReady},
	}
	for i, w := range want {
		select {
		case got := <-sub.Events():
			if got != w {
				t.Fatalf("event %d: got %+v, want %+v", i, got, w)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestSubscribe_CloseStopsDelivery(t *testing.T) {
	srv := httptest.NewServer(sseHandler(t, []string{
		"event: position\ndata: {\"position\":9}\n\n",
	}))
	defer srv.Close()

	c := New(srv.URL+"/api", nil)
	sub, err := c.Subscribe(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	sub.Close()
	sub.Close() // idempotent

	// The channel must close; a cancelled subscription reports no error.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-sub.Events():
			if !ok {
				if err := sub.Err(); err != nil {
					t.Fatalf("Err after Close: %v, want nil", err)
				}
				return
			}
		case <-deadline:
			t.Fatal("events channel never closed after Close")
		}
	}
}

func TestSubscribe_RejectedToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"unknown queue token"}`)
	}))
	defer srv.Close()

	c := New(srv.URL+"/api", nil)
	_, err := c.Subscribe(context.Background(), "tok-1")
	re, ok := model.AsRejection(err)
	if !ok || re.Message != "unknown queue token" {
		t.Fatalf("got %v, want rejection with backend message", err)
	}
}

func TestSubscribe_ServerDropIsClean(t *testing.T) {
	// Server ends the stream immediately: the channel closes and a
	// clean EOF is not reported as an error.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
	}))
	defer srv.Close()

	c := New(srv.URL+"/api", nil)
	sub, err := c.Subscribe(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Fatal("unexpected event from empty stream")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("events channel never closed")
	}
	if err := sub.Err(); err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("Err = %v, want nil for clean end", err)
	}
}
