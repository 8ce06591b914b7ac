// Package model defines the core domain types for railrush.
//
// Railrush is the client side of a queue-gated train booking system:
// a burst of visitors competes for a small number of seats, so the
// backend admits clients through a virtual waiting room and then gives
// each authenticated client a hard deadline to finish booking.
//
// The types here mirror the backend's wire shapes. Trains and bookings
// are read-only snapshots of server state; the client never mutates
// them locally. The only client-owned state is the queue ticket (while
// waiting) and the session (while booking).
package model

import "time"

// QueueStatus is the server-reported admission state of a queue ticket.
type QueueStatus string

const (
	// QueueWaiting means the client must hold its position until the
	// push channel reports readiness.
	QueueWaiting QueueStatus = "waiting"
	// QueueReady means the client may proceed to authentication.
	QueueReady QueueStatus = "ready"
)

// QueueTicket is the backend's answer to an admission request.
// Position only ever moves via push-channel events; Status transitions
// waiting -> ready exactly once and never back.
type QueueTicket struct {
	Token    string      `json:"queueToken"`
	Position int         `json:"position"`
	Status   QueueStatus `json:"status"`
}

// QueueEventType names the events delivered on the queue push channel.
type QueueEventType string

const (
	EventPosition QueueEventType = "position"
	EventReady    QueueEventType = "ready"
)

// QueueEvent is a single push-channel event. Position is meaningful
// only for EventPosition events.
type QueueEvent struct {
	Type     QueueEventType `json:"type"`
	Position int            `json:"position,omitempty"`
}

// Credentials is the identity returned by a successful login.
// SessionID is the out-of-band credential attached to every
// authenticated request; UserID and Name are display fields.
type Credentials struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	Name      string `json:"name"`
}

// SessionState is the backend's answer to a validation call. The
// server's RemainingSeconds is authoritative; the client's local
// countdown exists only to animate the time between validations.
type SessionState struct {
	Valid            bool `json:"valid"`
	RemainingSeconds int  `json:"remainingSeconds"`
}

// Train is a bookable departure. Snapshots are refreshed after every
// successful booking so AvailableSeats tracks the server.
type Train struct {
	ID             int64     `json:"id"`
	TrainNumber    string    `json:"trainNumber"`
	Departure      string    `json:"departure"`
	Arrival        string    `json:"arrival"`
	DepartureTime  time.Time `json:"departureTime"`
	ArrivalTime    time.Time `json:"arrivalTime"`
	AvailableSeats int       `json:"availableSeats"`
}

// SoldOut reports whether the train has no seats left. Sold-out trains
// can never become the current selection.
func (t Train) SoldOut() bool { return t.AvailableSeats <= 0 }

// Booking is a confirmed seat. Bookings exist only as return values of
// successful booking calls; the client keeps them in an append-only,
// session-scoped list and never fabricates speculative entries.
type Booking struct {
	TrainID       int64     `json:"trainId"`
	TrainNumber   string    `json:"trainNumber"`
	Departure     string    `json:"departure"`
	Arrival       string    `json:"arrival"`
	DepartureTime time.Time `json:"departureTime"`
	SeatNumber    string    `json:"seatNumber"`
}
