// Package booking drives train selection and seat booking inside an
// authenticated, time-boxed session.
//
// The controller fails closed on activation: the session must validate
// before any train data is shown, and an invalid answer surfaces as
// model.ErrSessionInvalid so the owner can run the expiry path. After
// that the flow is repeatable — a user may book seat after seat until
// the deadline — with three guarantees:
//
//   - a sold-out train can never become the selection;
//   - at most one booking call is in flight per controller, so
//     repeated clicks cannot double-submit;
//   - the bookings list only ever grows with confirmed backend
//     answers, never speculative entries.
//
// A successful booking clears the selection and refreshes the train
// list in the background so availability catches up without delaying
// the confirmation.
package booking

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/railrush/railrush/pkg/model"
)

// Gateway is the slice of the backend the controller needs.
// *gateway.Client satisfies it.
type Gateway interface {
	ValidateSession(ctx context.Context) (*model.SessionState, error)
	ListTrains(ctx context.Context) ([]model.Train, error)
	Book(ctx context.Context, trainID int64) (*model.Booking, error)
}

// Controller manages one session's booking flow. Safe for concurrent
// use.
type Controller struct {
	gw  Gateway
	log *logrus.Logger

	mu       sync.Mutex
	trains   []model.Train
	selected *model.Train
	bookings []model.Booking
	inFlight bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger for flow diagnostics.
func WithLogger(log *logrus.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// New creates a controller. Call Activate before anything else.
func New(gw Gateway, opts ...Option) *Controller {
	c := &Controller{gw: gw}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logrus.New()
		c.log.SetOutput(io.Discard)
	}
	return c
}

// Activate validates the session and loads the train list. It returns
// the server-reported remaining seconds for the caller to seed its
// countdown. An invalid session returns model.ErrSessionInvalid; the
// caller must treat that as expiry regardless of any local clock
// value.
func (c *Controller) Activate(ctx context.Context) (int, error) {
	state, err := c.gw.ValidateSession(ctx)
	if err != nil {
		return 0, fmt.Errorf("validate session: %w", err)
	}
	if !state.Valid {
		return 0, model.ErrSessionInvalid
	}

	trains, err := c.gw.ListTrains(ctx)
	if err != nil {
		return 0, fmt.Errorf("list trains: %w", err)
	}

	c.mu.Lock()
	c.trains = trains
	c.mu.Unlock()
	return state.RemainingSeconds, nil
}

// Select sets the current selection. Unknown and sold-out trains are
// rejected and leave the selection unchanged.
func (c *Controller) Select(trainID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.trains {
		if c.trains[i].ID != trainID {
			continue
		}
		if c.trains[i].SoldOut() {
			return model.ErrSoldOut
		}
		t := c.trains[i]
		c.selected = &t
		return nil
	}
	return model.ErrUnknownTrain
}

// Selected returns a copy of the current selection, or nil.
func (c *Controller) Selected() *model.Train {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == nil {
		return nil
	}
	t := *c.selected
	return &t
}

// Trains returns the current availability snapshot.
func (c *Controller) Trains() []model.Train {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Train, len(c.trains))
	copy(out, c.trains)
	return out
}

// Bookings returns the confirmed bookings of this session, in call
// order.
func (c *Controller) Bookings() []model.Booking {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Booking, len(c.bookings))
	copy(out, c.bookings)
	return out
}

// Book submits a booking for the selected train. While one call is
// outstanding, further calls return model.ErrBookingInFlight. On
// success the confirmed booking is recorded, the selection cleared,
// and the train list refreshed in the background. On failure the
// selection and train list stay as they were so the user may retry;
// the backend's message travels up verbatim inside the error.
func (c *Controller) Book(ctx context.Context) (*model.Booking, error) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return nil, model.ErrBookingInFlight
	}
	if c.selected == nil {
		c.mu.Unlock()
		return nil, model.ErrNoSelection
	}
	trainID := c.selected.ID
	c.inFlight = true
	c.mu.Unlock()

	booking, err := c.gw.Book(ctx, trainID)

	c.mu.Lock()
	c.inFlight = false
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.bookings = append(c.bookings, *booking)
	c.selected = nil
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{
		"train": booking.TrainNumber, "seat": booking.SeatNumber,
	}).Debug("booking confirmed")

	// Refresh availability without delaying the confirmation.
	go func() {
		if err := c.Refresh(ctx); err != nil {
			c.log.WithError(err).Debug("post-booking refresh failed")
		}
	}()

	return booking, nil
}

// Refresh reloads the train list from the backend. On failure the
// previous snapshot is kept.
func (c *Controller) Refresh(ctx context.Context) error {
	trains, err := c.gw.ListTrains(ctx)
	if err != nil {
		return fmt.Errorf("list trains: %w", err)
	}
	c.mu.Lock()
	c.trains = trains
	c.mu.Unlock()
	return nil
}
