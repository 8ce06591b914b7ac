package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/railrush/railrush/pkg/booking"
	"github.com/railrush/railrush/pkg/countdown"
	"github.com/railrush/railrush/pkg/model"
)

// revalidateEvery is how often the booking loop asks the server for
// the authoritative session state and reconciles the local countdown.
const revalidateEvery = 15 * time.Second

func (a *app) cmdRun(args []string) int {
	flags := flag.NewFlagSet("run", flag.ContinueOnError)
	openAt := flags.String("open-at", "", "RFC 3339 booking open time; refuse to queue before it")
	if err := flags.Parse(args); err != nil {
		return exitErr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := checkOpenAt(*openAt); err != nil {
		fmt.Fprintf(os.Stderr, "rr: %v\n", err)
		return exitErr
	}

	// A persisted session skips the queue; a stale one fails closed at
	// activation and lands back at the entry point.
	if a.store.SessionID() == "" {
		admitted, err := a.admit(ctx, false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "rr: queue: %v\n", err)
			return exitErr
		}
		if !admitted {
			fmt.Fprintln(os.Stderr, "\ncancelled")
			return exitErr
		}
		if !a.promptLogin(ctx) {
			return exitErr
		}
	}

	return a.bookingSession(ctx)
}

// promptLogin asks for credentials on stdin, a few attempts.
func (a *app) promptLogin(ctx context.Context) bool {
	reader := bufio.NewReader(os.Stdin)
	for attempt := 0; attempt < 3; attempt++ {
		fmt.Print("username: ")
		user, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		fmt.Print("password: ")
		pass, err := reader.ReadString('\n')
		if err != nil {
			return false
		}

		creds, err := a.login(ctx, strings.TrimSpace(user), strings.TrimSpace(pass))
		if err != nil {
			fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
			continue
		}
		fmt.Printf("welcome, %s\n", creds.Name)
		return true
	}
	fmt.Fprintln(os.Stderr, "rr: too many failed login attempts")
	return false
}

// bookingSession runs the time-boxed booking loop: a live countdown, a
// periodic server reconciliation, and line commands from the user. It
// ends on expiry, invalidation, quit, or interrupt — never leaving the
// clock ticking.
func (a *app) bookingSession(ctx context.Context) int {
	flow := booking.New(a.gw, booking.WithLogger(a.log))

	remaining, err := flow.Activate(ctx)
	if err != nil {
		if errors.Is(err, model.ErrSessionInvalid) {
			return a.expire(ctx)
		}
		fmt.Fprintf(os.Stderr, "rr: %v\n", err)
		return exitErr
	}

	clock := countdown.New()
	clock.Start(remaining)
	defer clock.Stop()

	revalidate := time.NewTicker(revalidateEvery)
	defer revalidate.Stop()

	lines := make(chan string)
	go readLines(lines)

	fmt.Printf("booking open — %s on the clock\n", formatClock(remaining))
	printTrains(flow.Trains())
	fmt.Println("commands: list, select <trainId>, book, bookings, time, quit")

	for {
		fmt.Print("> ")
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "\ninterrupted — logging out")
			a.endSession(context.Background())
			return exitErr

		case <-clock.Expired():
			return a.expire(ctx)

		case <-revalidate.C:
			state, err := a.gw.ValidateSession(ctx)
			if err != nil {
				if model.IsTransport(err) {
					fmt.Fprintf(os.Stderr, "\nrr: lost contact with the backend: %v\n", err)
					a.endSession(context.Background())
					return exitErr
				}
				return a.expire(ctx)
			}
			if !state.Valid {
				return a.expire(ctx)
			}
			clock.Reconcile(state.RemainingSeconds)

		case line, ok := <-lines:
			if !ok {
				line = "quit"
			}
			if done, code := a.handleCommand(ctx, flow, clock, line); done {
				return code
			}
		}
	}
}

// handleCommand runs one line command. Returns (true, code) when the
// session should end.
func (a *app) handleCommand(ctx context.Context, flow *booking.Controller, clock *countdown.Clock, line string) (bool, int) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, 0
	}

	switch fields[0] {
	case "list", "ls":
		if err := flow.Refresh(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "refresh failed: %v\n", err)
		}
		printTrains(flow.Trains())

	case "select":
		if len(fields) != 2 {
			fmt.Println("usage: select <trainId>")
			return false, 0
		}
		id, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			fmt.Printf("invalid train id %q\n", fields[1])
			return false, 0
		}
		if err := flow.Select(id); err != nil {
			fmt.Printf("cannot select: %v\n", err)
			return false, 0
		}
		sel := flow.Selected()
		fmt.Printf("selected %s (%s -> %s)\n", sel.TrainNumber, sel.Departure, sel.Arrival)

	case "book":
		b, err := flow.Book(ctx)
		if err != nil {
			fmt.Printf("booking failed: %v\n", err)
			return false, 0
		}
		printBooking(*b)
		fmt.Printf("%s left — book another or quit\n", formatClock(clock.Remaining()))

	case "bookings":
		bs := flow.Bookings()
		if len(bs) == 0 {
			fmt.Println("no bookings yet")
		}
		for _, b := range bs {
			printBooking(b)
		}

	case "time":
		fmt.Printf("%s remaining\n", formatClock(clock.Remaining()))

	case "quit", "q", "exit":
		clock.Stop()
		a.endSession(context.Background())
		fmt.Printf("logged out with %d booking(s)\n", len(flow.Bookings()))
		return true, exitOK

	default:
		fmt.Println("commands: list, select <trainId>, book, bookings, time, quit")
	}
	return false, 0
}

// expire runs the expiry path: notice, best-effort logout, clear.
func (a *app) expire(ctx context.Context) int {
	fmt.Fprintln(os.Stderr, "\nrr: session expired — returning to the start; queue again to book")
	a.endSession(context.Background())
	return exitExpired
}

// readLines forwards stdin lines, closing the channel on EOF.
func readLines(out chan<- string) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		out <- sc.Text()
	}
	close(out)
}
