package main

import (
	"context"
	"flag"
	"fmt"
	"os"
)

func (a *app) cmdBookings(args []string) int {
	flags := flag.NewFlagSet("bookings", flag.ContinueOnError)
	jsonOut := flags.Bool("json", false, "JSON output")
	if err := flags.Parse(args); err != nil {
		return exitErr
	}

	bookings, err := a.gw.MyBookings(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "rr: bookings: %v\n", err)
		return exitErr
	}

	if *jsonOut {
		printJSON(bookings)
		return exitOK
	}
	if len(bookings) == 0 {
		fmt.Println("no bookings in this session")
		return exitOK
	}
	for _, b := range bookings {
		printBooking(b)
	}
	return exitOK
}
