// Command rr is the railrush booking client — waits through the
// virtual queue, logs in, and books seats before the session deadline.
package main

import (
	"fmt"
	"os"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "--help", "-h", "help":
		printUsage()
		return
	case "--version", "-v", "version":
		fmt.Println("rr", version)
		return
	}

	a, err := newApp()
	if err != nil {
		fatal("%v", err)
	}
	defer a.Close()

	switch os.Args[1] {
	// Flow steps
	case "queue":
		os.Exit(a.cmdQueue(os.Args[2:]))
	case "login":
		os.Exit(a.cmdLogin(os.Args[2:]))
	case "trains":
		os.Exit(a.cmdTrains(os.Args[2:]))
	case "book":
		os.Exit(a.cmdBook(os.Args[2:]))
	case "bookings":
		os.Exit(a.cmdBookings(os.Args[2:]))

	// Session management
	case "session":
		os.Exit(a.cmdSession(os.Args[2:]))
	case "logout":
		os.Exit(a.cmdLogout(os.Args[2:]))

	// Everything in one go
	case "run":
		os.Exit(a.cmdRun(os.Args[2:]))

	default:
		fmt.Fprintf(os.Stderr, "rr: unknown command %q\n", os.Args[1])
		fmt.Fprintln(os.Stderr, "Run 'rr --help' for usage.")
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`rr — queue-gated train booking client

Enters the virtual waiting room, tracks your position over the push
channel, and once admitted gives you a hard deadline to log in and
book seats.

Usage:
  rr <command> [flags]

Flow steps:
  queue [--open-at T]       Enter the queue and wait for admission
  login -u USER -p PASS     Authenticate (admitted clients only)
  trains                    List trains and seat availability
  book <trainId>            Book a seat on a train
  bookings                  Show bookings for the current session

Session:
  session                   Validate the session, show remaining time
  logout                    Log out and clear local session state

Combined:
  run [--open-at T]         Full flow: queue, login prompt, then an
                            interactive booking loop with a live
                            countdown (list / select N / book /
                            bookings / time / quit)

Environment:
  RAILRUSH_DB    identity database path (default: .railrush/railrush.db)
  RAILRUSH_API   backend base URL (default: http://localhost:8080/api)
  RAILRUSH_LOG   log level: debug, info, warn, error (default: warn)

Most commands support --json for machine-readable output.

Exit codes:
  0  success
  1  error
  2  session expired or invalid
`)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "rr: "+format+"\n", args...)
	os.Exit(1)
}
