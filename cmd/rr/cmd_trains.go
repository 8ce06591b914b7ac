package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/railrush/railrush/pkg/model"
)

func (a *app) cmdTrains(args []string) int {
	flags := flag.NewFlagSet("trains", flag.ContinueOnError)
	jsonOut := flags.Bool("json", false, "JSON output")
	if err := flags.Parse(args); err != nil {
		return exitErr
	}

	trains, err := a.gw.ListTrains(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "rr: trains: %v\n", err)
		return exitErr
	}

	if *jsonOut {
		printJSON(trains)
		return exitOK
	}
	printTrains(trains)
	return exitOK
}

func printTrains(trains []model.Train) {
	if len(trains) == 0 {
		fmt.Println("no trains available")
		return
	}
	for _, t := range trains {
		seats := fmt.Sprintf("%d seats", t.AvailableSeats)
		if t.SoldOut() {
			seats = "sold out"
		}
		fmt.Printf("  [%d] %-8s %s -> %s  %s -> %s  %s\n",
			t.ID, t.TrainNumber, t.Departure, t.Arrival,
			t.DepartureTime.Format("15:04"), t.ArrivalTime.Format("15:04"),
			seats)
	}
}
