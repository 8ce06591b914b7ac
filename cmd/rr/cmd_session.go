package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/railrush/railrush/pkg/model"
)

func (a *app) cmdSession(args []string) int {
	flags := flag.NewFlagSet("session", flag.ContinueOnError)
	jsonOut := flags.Bool("json", false, "JSON output")
	if err := flags.Parse(args); err != nil {
		return exitErr
	}

	ctx := context.Background()

	creds, err := a.store.Session()
	if errors.Is(err, model.ErrNoSession) {
		fmt.Fprintln(os.Stderr, "rr: no session — run 'rr queue' then 'rr login'")
		return exitExpired
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "rr: session: %v\n", err)
		return exitErr
	}

	state, err := a.gw.ValidateSession(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rr: session: %v\n", err)
		return exitErr
	}
	if !state.Valid {
		fmt.Fprintln(os.Stderr, "rr: session expired")
		a.endSession(ctx)
		return exitExpired
	}

	if *jsonOut {
		printJSON(map[string]interface{}{
			"user":             creds.UserID,
			"name":             creds.Name,
			"remainingSeconds": state.RemainingSeconds,
		})
	} else {
		fmt.Printf("session for %s (%s): %s remaining\n",
			creds.Name, creds.UserID, formatClock(state.RemainingSeconds))
	}
	return exitOK
}
