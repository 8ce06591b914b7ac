package main

import (
	"context"
	"flag"
	"fmt"
)

func (a *app) cmdLogout(args []string) int {
	flags := flag.NewFlagSet("logout", flag.ContinueOnError)
	if err := flags.Parse(args); err != nil {
		return exitErr
	}

	// Best-effort server side, unconditional locally.
	a.endSession(context.Background())
	fmt.Println("logged out")
	return exitOK
}
