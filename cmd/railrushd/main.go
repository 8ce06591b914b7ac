// Command railrushd is an in-memory development backend for the rr
// client. It implements the full booking API — queue admission with a
// server-sent event status stream, time-boxed sessions, and seat
// booking — with zero external infrastructure, so the whole flow can
// be exercised on a laptop.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

func main() {
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(envOr("RAILRUSHD_LOG", "info")); err == nil {
		log.SetLevel(lvl)
	}

	srv := newServer(serverConfig{
		admitEvery: envDuration("RAILRUSHD_ADMIT_EVERY", time.Second),
		sessionTTL: envDuration("RAILRUSHD_SESSION_TTL", 180*time.Second),
	}, log)
	srv.seedDefaults()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go srv.runAdmitter(ctx)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	api := e.Group("/api")
	api.POST("/queue/enter", srv.handleEnterQueue)
	api.GET("/queue/status", srv.handleQueueStatus)
	api.POST("/auth/login", srv.handleLogin)
	api.POST("/auth/logout", srv.handleLogout)
	api.GET("/auth/validate", srv.handleValidate)
	api.GET("/booking/trains", srv.handleTrains)
	api.POST("/booking/book", srv.handleBook)
	api.GET("/booking/my-bookings", srv.handleMyBookings)

	addr := envOr("RAILRUSHD_ADDR", ":8080")
	go func() {
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed to start")
		}
	}()
	log.WithField("addr", addr).Info("railrushd up")

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}
