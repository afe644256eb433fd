package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/serverledge-faas/offloading/internal/config"
	"github.com/serverledge-faas/offloading/internal/metrics"
	"golang.org/x/net/netutil"
)

// RegisterRoutes installs the compute service endpoints on e.
func RegisterRoutes(e *echo.Echo) {
	e.Use(middleware.Recover())

	e.POST("/task/:task", RunTask)
	e.GET("/ping", Ping)
	e.GET("/status", GetServerStatus)

	if metrics.Enabled {
		e.GET("/metrics", func(c echo.Context) error {
			metrics.ScrapingHandler.ServeHTTP(c.Response(), c.Request())
			return nil
		})
	}
}

func StartAPIServer(e *echo.Echo) {
	RegisterRoutes(e)
	e.Logger.SetLevel(parseLogLevel(config.GetString(config.API_LOG_LEVEL, "info")))

	// Start server
	portNumber := config.GetInt(config.API_PORT, 5000)
	e.HideBanner = true

	ln, err := Listen(fmt.Sprintf(":%d", portNumber), config.GetInt(config.API_MAX_CONNS, 0))
	if err != nil {
		e.Logger.Fatal(err)
	}
	e.Listener = ln

	if err := e.Start(ln.Addr().String()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		e.Logger.Fatal("shutting down the server")
	}
}

// Listen opens the service listener, accepting at most maxConns simultaneous
// connections when maxConns > 0.
func Listen(addr string, maxConns int) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	if maxConns > 0 {
		ln = netutil.LimitListener(ln, maxConns)
	}
	return ln, nil
}

func parseLogLevel(level string) log.Lvl {
	switch strings.ToLower(level) {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	}
	return log.INFO
}

func RegisterTerminationHandler(e *echo.Echo) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	go func() {
		sig := <-c
		fmt.Printf("Got %s signal. Terminating...\n", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(ctx); err != nil {
			e.Logger.Fatal(err)
		}
	}()
}
