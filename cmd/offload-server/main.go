package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/serverledge-faas/offloading/internal/api"
	"github.com/serverledge-faas/offloading/internal/config"
	"github.com/serverledge-faas/offloading/internal/metrics"
	"github.com/serverledge-faas/offloading/internal/node"
	"github.com/serverledge-faas/offloading/internal/telemetry"
	"github.com/serverledge-faas/offloading/utils"
	_ "go.uber.org/automaxprocs"
)

func main() {
	configFileName := ""
	if len(os.Args) > 1 {
		configFileName = os.Args[1]
	}
	config.ReadConfiguration(configFileName)

	node.LocalNode = node.NewIdentifier("compute")
	node.LocalResources.Init()
	log.Printf("Current resources: %v\n", &node.LocalResources)

	metrics.Init()

	if config.GetBool(config.TRACING_ENABLED, false) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		tracesOutfile := config.GetString(config.TRACING_OUTFILE, "")
		if len(tracesOutfile) < 1 {
			tracesOutfile = fmt.Sprintf("traces-%s.json", time.Now().Format("20060102-150405"))
		}
		log.Printf("Enabling tracing to %s\n", tracesOutfile)
		otelShutdown, err := telemetry.SetupOTelSDK(ctx, tracesOutfile)
		if err != nil {
			log.Fatal(err)
		}
		defer func() {
			err = errors.Join(err, otelShutdown(context.Background()))
		}()
	}

	if url, err := utils.AdvertisedURL(config.GetInt(config.API_PORT, 5000)); err == nil {
		log.Printf("Node %s serving at %s\n", node.LocalNode, url)
	} else {
		log.Println(err)
	}

	e := echo.New()

	// Register a signal handler to cleanup things on termination
	api.RegisterTerminationHandler(e)

	api.StartAPIServer(e)
}
