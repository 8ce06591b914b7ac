package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/railrush/railrush/pkg/model"
)

// sseEvent is one frame for a waiter's status stream.
type sseEvent struct {
	name string
	data string
}

// waiter is one queued guest. Events flow to the SSE handler through
// ch; the admitter closes it after sending ready.
type waiter struct {
	token    string
	guestID  string
	position int
	ch       chan sseEvent
}

// session is an authenticated booking window.
type session struct {
	id        string
	userID    string
	name      string
	expiresAt time.Time
	bookings  []model.Booking
}

// remainingSeconds reports the seconds left in the booking window,
// never negative. expiresAt is immutable after creation, so no lock.
func (s *session) remainingSeconds() int {
	left := int(time.Until(s.expiresAt).Seconds())
	if left < 0 {
		return 0
	}
	return left
}

// account is a login fixture.
type account struct {
	password string
	userID   string
	name     string
}

type serverConfig struct {
	admitEvery time.Duration // one admission per interval
	sessionTTL time.Duration // booking window per session
}

// server holds the whole backend state behind one mutex. Good enough
// for a dev tool; the real backend owns scheduling and seat locking.
type server struct {
	cfg serverConfig
	log *logrus.Logger

	mu       sync.Mutex
	queue    []*waiter          // FIFO, head admitted next
	waiters  map[string]*waiter // by queue token
	sessions map[string]*session
	accounts map[string]account
	trains   []model.Train
	seatSeq  int
}

func newServer(cfg serverConfig, log *logrus.Logger) *server {
	return &server{
		cfg:      cfg,
		log:      log,
		waiters:  make(map[string]*waiter),
		sessions: make(map[string]*session),
		accounts: make(map[string]account),
	}
}

// seedDefaults loads the development fixtures: two test accounts and a
// holiday-morning train table.
func (s *server) seedDefaults() {
	s.accounts["user1"] = account{password: "1234", userID: "user1", name: "김철수"}
	s.accounts["user2"] = account{password: "1234", userID: "user2", name: "이영희"}

	day := time.Now().Add(24 * time.Hour).Truncate(time.Hour)
	dep := func(h int) time.Time { return day.Add(time.Duration(h) * time.Hour) }
	s.trains = []model.Train{
		{ID: 1, TrainNumber: "KTX-101", Departure: "서울", Arrival: "부산", DepartureTime: dep(9), ArrivalTime: dep(12), AvailableSeats: 6},
		{ID: 2, TrainNumber: "KTX-205", Departure: "서울", Arrival: "동대구", DepartureTime: dep(10), ArrivalTime: dep(12), AvailableSeats: 4},
		{ID: 3, TrainNumber: "KTX-317", Departure: "서울", Arrival: "광주송정", DepartureTime: dep(11), ArrivalTime: dep(13), AvailableSeats: 2},
		{ID: 4, TrainNumber: "KTX-411", Departure: "서울", Arrival: "부산", DepartureTime: dep(14), ArrivalTime: dep(17), AvailableSeats: 0},
	}
}

// enqueue registers a guest. With nobody ahead the guest is admitted
// immediately and no waiter is created (the "ready" fast path).
func (s *server) enqueue(guestID string) *model.QueueTicket {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return &model.QueueTicket{Token: uuid.NewString(), Position: 0, Status: model.QueueReady}
	}

	w := &waiter{
		token:    uuid.NewString(),
		guestID:  guestID,
		position: len(s.queue) + 1,
		ch:       make(chan sseEvent, 32),
	}
	s.queue = append(s.queue, w)
	s.waiters[w.token] = w
	return &model.QueueTicket{Token: w.token, Position: w.position, Status: model.QueueWaiting}
}

// lookupWaiter returns the waiter for a queue token along with a
// consistent snapshot of its position (the admitter rewrites positions
// under the same lock).
func (s *server) lookupWaiter(token string) (*waiter, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.waiters[token]
	if !ok {
		return nil, 0, false
	}
	return w, w.position, true
}

// runAdmitter admits the head of the queue once per interval and
// pushes fresh positions to everyone still waiting.
func (s *server) runAdmitter(ctx context.Context) {
	t := time.NewTicker(s.cfg.admitEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.admitOne()
		}
	}
}

func (s *server) admitOne() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return
	}

	head := s.queue[0]
	s.queue = s.queue[1:]
	delete(s.waiters, head.token)
	push(head.ch, sseEvent{name: "ready", data: "{}"})
	close(head.ch)
	s.log.WithField("guest", head.guestID).Info("admitted")

	for i, w := range s.queue {
		w.position = i + 1
		push(w.ch, sseEvent{name: "position", data: fmt.Sprintf(`{"position":%d}`, w.position)})
	}
}

// push delivers an event without ever blocking the admitter; a waiter
// that stopped draining just misses updates.
func push(ch chan sseEvent, ev sseEvent) {
	select {
	case ch <- ev:
	default:
	}
}

// newSession opens a booking window for an account.
func (s *server) newSession(ac account) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := &session{
		id:        uuid.NewString(),
		userID:    ac.userID,
		name:      ac.name,
		expiresAt: time.Now().Add(s.cfg.sessionTTL),
	}
	s.sessions[sess.id] = sess
	return sess
}

// sessionFor resolves a session id to a live session. Expired
// sessions are reaped on sight.
func (s *server) sessionFor(id string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if time.Now().After(sess.expiresAt) {
		delete(s.sessions, id)
		return nil, false
	}
	return sess, true
}

func (s *server) dropSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// listTrains returns a snapshot of the train table.
func (s *server) listTrains() []model.Train {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Train, len(s.trains))
	copy(out, s.trains)
	return out
}

// book takes one seat on a train for a session.
func (s *server) book(sess *session, trainID int64) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.trains {
		t := &s.trains[i]
		if t.ID != trainID {
			continue
		}
		if t.AvailableSeats <= 0 {
			return nil, fmt.Errorf("seat no longer available")
		}
		t.AvailableSeats--
		s.seatSeq++
		b := model.Booking{
			TrainID:       t.ID,
			TrainNumber:   t.TrainNumber,
			Departure:     t.Departure,
			Arrival:       t.Arrival,
			DepartureTime: t.DepartureTime,
			SeatNumber:    fmt.Sprintf("%d%c", 1+s.seatSeq/4, 'A'+s.seatSeq%4),
		}
		sess.bookings = append(sess.bookings, b)
		return &b, nil
	}
	return nil, fmt.Errorf("unknown train %d", trainID)
}

// bookingsFor returns a session's bookings, oldest first.
func (s *server) bookingsFor(sess *session) []model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Booking, len(sess.bookings))
	copy(out, sess.bookings)
	return out
}
