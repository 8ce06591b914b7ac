package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/railrush/railrush/pkg/model"
)

func (a *app) cmdLogin(args []string) int {
	flags := flag.NewFlagSet("login", flag.ContinueOnError)
	user := flags.String("u", "", "username")
	pass := flags.String("p", "", "password")
	jsonOut := flags.Bool("json", false, "JSON output")
	if err := flags.Parse(args); err != nil {
		return exitErr
	}
	if *user == "" || *pass == "" {
		fmt.Fprintln(os.Stderr, "rr: login requires -u and -p")
		return exitErr
	}

	creds, err := a.login(context.Background(), *user, *pass)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rr: login: %v\n", err)
		return exitErr
	}

	if *jsonOut {
		printJSON(creds)
	} else {
		fmt.Printf("logged in as %s — book within the session deadline ('rr session' shows it)\n", creds.Name)
	}
	return exitOK
}

// login authenticates and persists the resulting session.
func (a *app) login(ctx context.Context, user, pass string) (*model.Credentials, error) {
	creds, err := a.gw.Login(ctx, user, pass)
	if err != nil {
		return nil, err
	}
	if err := a.store.SetSession(*creds); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	return creds, nil
}
