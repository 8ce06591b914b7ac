package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/railrush/railrush/pkg/model"
)

// fakeGateway scripts validation, train lists, and booking answers.
type fakeGateway struct {
	mu sync.Mutex

	state    model.SessionState
	valErr   error
	trains   [][]model.Train // successive ListTrains answers; last repeats
	listErr  error
	listCnt  int
	bookFn   func(trainID int64) (*model.Booking, error)
	bookCnt  int
	bookGate chan struct{} // when set, Book blocks until it closes
}

func (f *fakeGateway) ValidateSession(ctx context.Context) (*model.SessionState, error) {
	if f.valErr != nil {
		return nil, f.valErr
	}
	s := f.state
	return &s, nil
}

func (f *fakeGateway) ListTrains(ctx context.Context) ([]model.Train, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	i := f.listCnt
	f.listCnt++
	if i >= len(f.trains) {
		i = len(f.trains) - 1
	}
	out := make([]model.Train, len(f.trains[i]))
	copy(out, f.trains[i])
	return out, nil
}

func (f *fakeGateway) Book(ctx context.Context, trainID int64) (*model.Booking, error) {
	f.mu.Lock()
	f.bookCnt++
	gate := f.bookGate
	fn := f.bookFn
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return fn(trainID)
}

func (f *fakeGateway) bookCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bookCnt
}

func twoTrains(seats1, seats2 int) []model.Train {
	return []model.Train{
		{ID: 1, TrainNumber: "KTX-101", Departure: "서울", Arrival: "부산", AvailableSeats: seats1},
		{ID: 2, TrainNumber: "KTX-205", Departure: "서울", Arrival: "동대구", AvailableSeats: seats2},
	}
}

func TestActivateLoadsTrains(t *testing.T) {
	gw := &fakeGateway{
		state:  model.SessionState{Valid: true, RemainingSeconds: 180},
		trains: [][]model.Train{twoTrains(5, 3)},
	}
	c := New(gw)
	remaining, err := c.Activate(context.Background())
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if remaining != 180 {
		t.Fatalf("remaining = %d, want 180", remaining)
	}
	if got := c.Trains(); len(got) != 2 || got[0].TrainNumber != "KTX-101" {
		t.Fatalf("trains = %+v", got)
	}
}

func TestActivateFailsClosedOnInvalidSession(t *testing.T) {
	gw := &fakeGateway{state: model.SessionState{Valid: false}}
	c := New(gw)
	_, err := c.Activate(context.Background())
	if !errors.Is(err, model.ErrSessionInvalid) {
		t.Fatalf("got %v, want ErrSessionInvalid", err)
	}
	if gw.listCnt != 0 {
		t.Fatal("train list must not be fetched for an invalid session")
	}
}

func TestActivateSurfacesValidationTransportError(t *testing.T) {
	gw := &fakeGateway{
		valErr: &model.TransportError{Op: "validate session", Err: errors.New("refused")},
	}
	c := New(gw)
	if _, err := c.Activate(context.Background()); !model.IsTransport(err) {
		t.Fatalf("got %v, want transport error through", err)
	}
}

func TestSelectSoldOutIsNoOp(t *testing.T) {
	gw := &fakeGateway{
		state:  model.SessionState{Valid: true, RemainingSeconds: 60},
		trains: [][]model.Train{twoTrains(4, 0)},
	}
	c := New(gw)
	if _, err := c.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := c.Select(1); err != nil {
		t.Fatalf("Select(1): %v", err)
	}
	if err := c.Select(2); !errors.Is(err, model.ErrSoldOut) {
		t.Fatalf("Select(sold out) = %v, want ErrSoldOut", err)
	}
	// Selection unchanged by the rejected call.
	if sel := c.Selected(); sel == nil || sel.ID != 1 {
		t.Fatalf("selection = %+v, want train 1 kept", sel)
	}
}

func TestSelectUnknownTrain(t *testing.T) {
	gw := &fakeGateway{
		state:  model.SessionState{Valid: true},
		trains: [][]model.Train{twoTrains(4, 4)},
	}
	c := New(gw)
	c.Activate(context.Background())
	if err := c.Select(99); !errors.Is(err, model.ErrUnknownTrain) {
		t.Fatalf("got %v, want ErrUnknownTrain", err)
	}
	if c.Selected() != nil {
		t.Fatal("rejected select must not set a selection")
	}
}

func TestBookWithoutSelection(t *testing.T) {
	gw := &fakeGateway{
		state:  model.SessionState{Valid: true},
		trains: [][]model.Train{twoTrains(4, 4)},
	}
	c := New(gw)
	c.Activate(context.Background())
	if _, err := c.Book(context.Background()); !errors.Is(err, model.ErrNoSelection) {
		t.Fatalf("got %v, want ErrNoSelection", err)
	}
}

func TestBookSingleFlight(t *testing.T) {
	gate := make(chan struct{})
	gw := &fakeGateway{
		state:    model.SessionState{Valid: true},
		trains:   [][]model.Train{twoTrains(4, 4)},
		bookGate: gate,
		bookFn: func(trainID int64) (*model.Booking, error) {
			return &model.Booking{TrainID: trainID, SeatNumber: "1A"}, nil
		},
	}
	c := New(gw)
	c.Activate(context.Background())
	c.Select(1)

	done := make(chan error, 1)
	go func() {
		_, err := c.Book(context.Background())
		done <- err
	}()

	// Wait until the first call is inside the gateway.
	for i := 0; gw.bookCalls() == 0; i++ {
		if i > 1000 {
			t.Fatal("first Book never reached the gateway")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := c.Book(context.Background()); !errors.Is(err, model.ErrBookingInFlight) {
		t.Fatalf("concurrent Book = %v, want ErrBookingInFlight", err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first Book: %v", err)
	}
	if got := gw.bookCalls(); got != 1 {
		t.Fatalf("backend saw %d booking calls, want exactly 1", got)
	}
}

func TestBookFailureLeavesStateForRetry(t *testing.T) {
	gw := &fakeGateway{
		state:  model.SessionState{Valid: true},
		trains: [][]model.Train{twoTrains(4, 4)},
		bookFn: func(trainID int64) (*model.Booking, error) {
			return nil, &model.RejectionError{Status: 409, Message: "seat no longer available"}
		},
	}
	c := New(gw)
	c.Activate(context.Background())
	c.Select(1)

	_, err := c.Book(context.Background())
	re, ok := model.AsRejection(err)
	if !ok || re.Message != "seat no longer available" {
		t.Fatalf("got %v, want the backend message verbatim", err)
	}
	if sel := c.Selected(); sel == nil || sel.ID != 1 {
		t.Fatal("failure must keep the selection for retry")
	}
	if len(c.Bookings()) != 0 {
		t.Fatal("failed booking must not be recorded")
	}
	// Retry goes through once the backend recovers.
	gw.mu.Lock()
	gw.bookFn = func(trainID int64) (*model.Booking, error) {
		return &model.Booking{TrainID: trainID, SeatNumber: "2B"}, nil
	}
	gw.mu.Unlock()
	if _, err := c.Book(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestRepeatableBookingAccumulatesInOrder(t *testing.T) {
	seat := 0
	gw := &fakeGateway{
		state: model.SessionState{Valid: true},
		trains: [][]model.Train{
			twoTrains(4, 4), // activation
			twoTrains(3, 4), // after first booking
			twoTrains(3, 3), // after second booking
		},
		bookFn: func(trainID int64) (*model.Booking, error) {
			seat++
			return &model.Booking{TrainID: trainID, SeatNumber: []string{"", "11A", "12C"}[seat]}, nil
		},
	}
	c := New(gw)
	c.Activate(context.Background())

	c.Select(1)
	if _, err := c.Book(context.Background()); err != nil {
		t.Fatal(err)
	}
	if c.Selected() != nil {
		t.Fatal("success must clear the selection")
	}
	waitForSeats(t, c, 0, 3)

	c.Select(2)
	if _, err := c.Book(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitForSeats(t, c, 1, 3)

	got := c.Bookings()
	if len(got) != 2 {
		t.Fatalf("bookings = %+v, want 2 entries", got)
	}
	if got[0].TrainID != 1 || got[0].SeatNumber != "11A" ||
		got[1].TrainID != 2 || got[1].SeatNumber != "12C" {
		t.Fatalf("bookings out of call order: %+v", got)
	}
	if seats := c.Trains()[1].AvailableSeats; seats != 3 {
		t.Fatalf("train 2 seats after second refresh = %d, want 3", seats)
	}
}

// waitForSeats polls until the train at index idx shows the expected
// availability (the post-booking refresh runs in the background).
func waitForSeats(t *testing.T, c *Controller, idx, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		trains := c.Trains()
		if idx < len(trains) && trains[idx].AvailableSeats == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("train %d never showed %d seats; trains: %+v", idx, want, trains)
		}
		time.Sleep(time.Millisecond)
	}
}
