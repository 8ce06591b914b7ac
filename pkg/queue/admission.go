// Package queue implements the client side of the virtual waiting
// room.
//
// A controller runs one admission attempt through a small state
// machine:
//
//	Idle -> Entering -> Waiting -> Ready
//	                 \__________/->  Closed (fatal failure)
//
// Entering has two exits: the backend's initial answer may
// already say "ready" (skipping Waiting entirely), or it says
// "waiting" and readiness arrives later on the push channel. Both
// paths pause for the same short grace delay before signalling Ready,
// so the caller sees one consistent transition either way.
//
// Status is monotonic: once Ready, a stray position event can never
// regress it. Any transport or stream failure moves the controller to
// Closed and reports a fatal admission failure; retry policy, if any,
// belongs to the caller.
package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/railrush/railrush/pkg/gateway"
	"github.com/railrush/railrush/pkg/model"
)

// DefaultGrace is the pause between reaching readiness and signalling
// the caller, so a UI can show the transition instead of an instant
// redirect.
const DefaultGrace = time.Second

// Status is the controller's admission state.
type Status int

const (
	Idle Status = iota
	Entering
	Waiting
	Ready
	Closed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Entering:
		return "entering"
	case Waiting:
		return "waiting"
	case Ready:
		return "ready"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Stream is an open push-channel subscription.
// *gateway.Subscription satisfies it.
type Stream interface {
	Events() <-chan model.QueueEvent
	Err() error
	Close()
}

// Gateway is the slice of the backend the controller needs.
type Gateway interface {
	EnterQueue(ctx context.Context, guestID string) (*model.QueueTicket, error)
	Subscribe(ctx context.Context, token string) (Stream, error)
}

// WrapClient adapts a *gateway.Client to the Gateway interface
// (narrowing Subscribe's concrete return type).
func WrapClient(c *gateway.Client) Gateway { return clientGateway{c} }

type clientGateway struct{ c *gateway.Client }

func (g clientGateway) EnterQueue(ctx context.Context, guestID string) (*model.QueueTicket, error) {
	return g.c.EnterQueue(ctx, guestID)
}

func (g clientGateway) Subscribe(ctx context.Context, token string) (Stream, error) {
	return g.c.Subscribe(ctx, token)
}

// Update is one observable state change. Err is non-nil only with
// Status Closed and marks a fatal admission failure.
type Update struct {
	Status   Status
	Position int
	Err      error
}

// Controller drives one admission attempt. Create with New, call
// Enter once, consume Updates until it closes, Close when done.
type Controller struct {
	gw    Gateway
	grace time.Duration
	log   *logrus.Logger

	mu       sync.Mutex
	status   Status
	position int

	updates chan Update
	cancel  context.CancelFunc
	closeX  sync.Once
}

// Option configures a Controller.
type Option func(*Controller)

// WithGrace overrides the readiness grace delay.
func WithGrace(d time.Duration) Option {
	return func(c *Controller) { c.grace = d }
}

// WithLogger sets the logger for state-transition diagnostics.
func WithLogger(log *logrus.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// New creates an idle controller.
func New(gw Gateway, opts ...Option) *Controller {
	c := &Controller{
		gw:      gw,
		grace:   DefaultGrace,
		status:  Idle,
		updates: make(chan Update, 16),
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

// Enter issues the admission request for guestID and runs the state
// machine in the background. It returns immediately; progress arrives
// on Updates. A controller admits once: calling Enter again is an
// error.
func (c *Controller) Enter(ctx context.Context, guestID string) error {
	c.mu.Lock()
	if c.status != Idle {
		c.mu.Unlock()
		return fmt.Errorf("admission already started (status %s)", c.status)
	}
	c.status = Entering
	ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	go c.run(ctx, guestID)
	return nil
}

// Updates delivers state changes in order. The channel closes when the
// controller reaches Ready, fails, or is cancelled.
func (c *Controller) Updates() <-chan Update { return c.updates }

// Status returns the current admission state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Position returns the last observed queue position.
func (c *Controller) Position() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

// Close cancels the admission attempt: the push subscription is torn
// down and no further updates are delivered. Idempotent.
func (c *Controller) Close() {
	c.closeX.Do(func() {
		c.mu.Lock()
		if c.status != Ready {
			c.status = Closed
		}
		cancel := c.cancel
		c.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	})
}

// run executes the state machine until Ready, failure, or cancel.
func (c *Controller) run(ctx context.Context, guestID string) {
	defer close(c.updates)

	ticket, err := c.gw.EnterQueue(ctx, guestID)
	if err != nil {
		c.fail(ctx, fmt.Errorf("enter queue: %w", err))
		return
	}
	c.log.WithFields(logrus.Fields{
		"token": ticket.Token, "position": ticket.Position, "status": ticket.Status,
	}).Debug("queue entered")

	c.setPosition(ticket.Position)

	// Immediate admission: Entering -> Ready without Waiting.
	if ticket.Status == model.QueueReady {
		c.becomeReady(ctx)
		return
	}

	c.setStatus(Waiting)
	c.emit(ctx, Update{Status: Waiting, Position: ticket.Position})

	sub, err := c.gw.Subscribe(ctx, ticket.Token)
	if err != nil {
		c.fail(ctx, fmt.Errorf("subscribe: %w", err))
		return
	}
	defer sub.Close()

	for ev := range sub.Events() {
		switch ev.Type {
		case model.EventPosition:
			c.setPosition(ev.Position)
			c.emit(ctx, Update{Status: Waiting, Position: ev.Position})
		case model.EventReady:
			sub.Close()
			c.becomeReady(ctx)
			return
		}
	}

	// Stream ended without readiness.
	if ctx.Err() != nil {
		return // cancelled by the caller; stay silent
	}
	if err := sub.Err(); err != nil {
		c.fail(ctx, fmt.Errorf("queue stream: %w", err))
		return
	}
	c.fail(ctx, errors.New("queue stream ended before admission"))
}

// becomeReady marks the controller Ready and, after the grace delay,
// signals the caller to proceed to authentication.
func (c *Controller) becomeReady(ctx context.Context) {
	c.setStatus(Ready)
	select {
	case <-time.After(c.grace):
	case <-ctx.Done():
		return
	}
	c.emit(ctx, Update{Status: Ready, Position: c.Position()})
}

// fail moves the controller to Closed and reports the fatal failure.
func (c *Controller) fail(ctx context.Context, err error) {
	c.setStatus(Closed)
	c.log.WithError(err).Debug("admission failed")
	c.emit(ctx, Update{Status: Closed, Position: c.Position(), Err: err})
}

func (c *Controller) setStatus(s Status) {
	c.mu.Lock()
	// Never regress out of Ready.
	if c.status != Ready || s == Ready {
		c.status = s
	}
	c.mu.Unlock()
}

func (c *Controller) setPosition(p int) {
	c.mu.Lock()
	c.position = p
	c.mu.Unlock()
}

// emit delivers an update unless the controller has been cancelled.
func (c *Controller) emit(ctx context.Context, u Update) {
	if ctx.Err() != nil {
		return
	}
	select {
	case c.updates <- u:
	case <-ctx.Done():
	}
}
