package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/railrush/railrush/pkg/booking"
	"github.com/railrush/railrush/pkg/model"
)

func (a *app) cmdBook(args []string) int {
	flags := flag.NewFlagSet("book", flag.ContinueOnError)
	jsonOut := flags.Bool("json", false, "JSON output")
	if err := flags.Parse(args); err != nil {
		return exitErr
	}
	if flags.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "rr: usage: rr book <trainId>")
		return exitErr
	}
	trainID, err := strconv.ParseInt(flags.Arg(0), 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rr: invalid train id %q\n", flags.Arg(0))
		return exitErr
	}

	ctx := context.Background()
	flow := booking.New(a.gw, booking.WithLogger(a.log))

	if _, err := flow.Activate(ctx); err != nil {
		if errors.Is(err, model.ErrSessionInvalid) {
			fmt.Fprintln(os.Stderr, "rr: session expired — log in again after re-queueing")
			a.endSession(ctx)
			return exitExpired
		}
		fmt.Fprintf(os.Stderr, "rr: book: %v\n", err)
		return exitErr
	}

	if err := flow.Select(trainID); err != nil {
		fmt.Fprintf(os.Stderr, "rr: book: %v\n", err)
		return exitErr
	}

	b, err := flow.Book(ctx)
	if err != nil {
		// Application rejections carry the backend's message verbatim.
		fmt.Fprintf(os.Stderr, "rr: booking failed: %v\n", err)
		return exitErr
	}

	if *jsonOut {
		printJSON(b)
	} else {
		printBooking(*b)
	}
	return exitOK
}

func printBooking(b model.Booking) {
	fmt.Printf("booked %s  %s -> %s  departs %s  seat %s\n",
		b.TrainNumber, b.Departure, b.Arrival,
		b.DepartureTime.Format("Jan 2 15:04"), b.SeatNumber)
}
