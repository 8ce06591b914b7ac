package main

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/railrush/railrush/pkg/model"
)

// errJSON is the error envelope every client shows verbatim.
func errJSON(c echo.Context, status int, format string, args ...interface{}) error {
	return c.JSON(status, map[string]string{"message": fmt.Sprintf(format, args...)})
}

func (s *server) handleEnterQueue(c echo.Context) error {
	guestID := c.QueryParam("userId")
	if guestID == "" {
		return errJSON(c, http.StatusBadRequest, "userId is required")
	}
	ticket := s.enqueue(guestID)
	s.log.WithField("guest", guestID).WithField("status", ticket.Status).Info("queue enter")
	return c.JSON(http.StatusOK, ticket)
}

// handleQueueStatus streams a waiter's progress as server-sent events:
// "position" frames while waiting, one "ready" frame on admission.
func (s *server) handleQueueStatus(c echo.Context) error {
	token := c.QueryParam("queueToken")
	w, pos, ok := s.lookupWaiter(token)
	if !ok {
		return errJSON(c, http.StatusNotFound, "unknown queue token")
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	resp.Flush()

	// Current position first, then live updates until admission.
	fmt.Fprintf(resp, "event: position\ndata: {\"position\":%d}\n\n", pos)
	resp.Flush()

	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		case ev, ok := <-w.ch:
			if !ok {
				return nil
			}
			fmt.Fprintf(resp, "event: %s\ndata: %s\n\n", ev.name, ev.data)
			resp.Flush()
		}
	}
}

func (s *server) handleLogin(c echo.Context) error {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&body); err != nil {
		return errJSON(c, http.StatusBadRequest, "malformed login request")
	}
	ac, ok := s.accounts[body.Username]
	if !ok || ac.password != body.Password {
		return errJSON(c, http.StatusUnauthorized, "invalid username or password")
	}

	sess := s.newSession(ac)
	s.log.WithField("user", ac.userID).Info("login")
	return c.JSON(http.StatusOK, model.Credentials{
		SessionID: sess.id,
		UserID:    sess.userID,
		Name:      sess.name,
	})
}

func (s *server) handleLogout(c echo.Context) error {
	if id := c.Request().Header.Get("Session-Id"); id != "" {
		s.dropSession(id)
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

func (s *server) handleValidate(c echo.Context) error {
	sess, ok := s.sessionFor(c.Request().Header.Get("Session-Id"))
	if !ok {
		return c.JSON(http.StatusOK, model.SessionState{Valid: false})
	}
	return c.JSON(http.StatusOK, model.SessionState{
		Valid:            true,
		RemainingSeconds: sess.remainingSeconds(),
	})
}

func (s *server) handleTrains(c echo.Context) error {
	return c.JSON(http.StatusOK, s.listTrains())
}

func (s *server) handleBook(c echo.Context) error {
	sess, ok := s.sessionFor(c.Request().Header.Get("Session-Id"))
	if !ok {
		return errJSON(c, http.StatusUnauthorized, "session invalid or expired")
	}

	var body struct {
		TrainID int64 `json:"trainId"`
	}
	if err := c.Bind(&body); err != nil {
		return errJSON(c, http.StatusBadRequest, "malformed booking request")
	}

	b, err := s.book(sess, body.TrainID)
	if err != nil {
		return errJSON(c, http.StatusConflict, "%v", err)
	}
	s.log.WithField("user", sess.userID).WithField("seat", b.SeatNumber).Info("booked")
	return c.JSON(http.StatusOK, b)
}

func (s *server) handleMyBookings(c echo.Context) error {
	sess, ok := s.sessionFor(c.Request().Header.Get("Session-Id"))
	if !ok {
		return errJSON(c, http.StatusUnauthorized, "session invalid or expired")
	}
	return c.JSON(http.StatusOK, s.bookingsFor(sess))
}
