package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/railrush/railrush/pkg/queue"
)

func (a *app) cmdQueue(args []string) int {
	flags := flag.NewFlagSet("queue", flag.ContinueOnError)
	openAt := flags.String("open-at", "", "RFC 3339 booking open time; refuse to queue before it")
	jsonOut := flags.Bool("json", false, "JSON output (one object per update)")
	if err := flags.Parse(args); err != nil {
		return exitErr
	}

	if err := checkOpenAt(*openAt); err != nil {
		fmt.Fprintf(os.Stderr, "rr: %v\n", err)
		return exitErr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	status, err := a.admit(ctx, *jsonOut)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rr: queue: %v\n", err)
		return exitErr
	}
	if !status {
		fmt.Fprintln(os.Stderr, "\ncancelled")
		return exitErr
	}
	if !*jsonOut {
		fmt.Println("admitted — proceed with 'rr login'")
	}
	return exitOK
}

// admit runs one admission attempt to completion, printing progress.
// Returns (true, nil) on admission, (false, nil) on cancellation, and
// an error on fatal admission failure.
func (a *app) admit(ctx context.Context, jsonOut bool) (bool, error) {
	guestID, err := a.store.GetOrCreateGuestID()
	if err != nil {
		return false, fmt.Errorf("guest identity: %w", err)
	}

	ctrl := queue.New(queue.WrapClient(a.gw), queue.WithLogger(a.log))
	defer ctrl.Close()

	if err := ctrl.Enter(ctx, guestID); err != nil {
		return false, err
	}

	if !jsonOut {
		fmt.Fprintf(os.Stderr, "entering queue as %s (ctrl-c to leave)\n", guestID)
	}

	for u := range ctrl.Updates() {
		if jsonOut {
			printJSON(map[string]interface{}{
				"status":   u.Status.String(),
				"position": u.Position,
			})
		}
		switch u.Status {
		case queue.Waiting:
			if !jsonOut {
				fmt.Printf("\rposition: %d        ", u.Position)
			}
		case queue.Ready:
			if !jsonOut {
				fmt.Println()
			}
			return true, nil
		case queue.Closed:
			if !jsonOut {
				fmt.Println()
			}
			return false, u.Err
		}
	}

	// Updates ended without Ready or a failure: the context was
	// cancelled.
	return false, nil
}
