// Command trackd runs a tracking device as a navigation source and serves
// its latest outputs over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"tailscale.com/tsweb"

	"github.com/banshee-data/tracking.source/internal/api"
	"github.com/banshee-data/tracking.source/internal/config"
	"github.com/banshee-data/tracking.source/internal/monitoring"
	"github.com/banshee-data/tracking.source/internal/pipeline"
	"github.com/banshee-data/tracking.source/internal/serialmux"
	"github.com/banshee-data/tracking.source/internal/source"
	"github.com/banshee-data/tracking.source/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to a .json or .yaml config file")
	listen      = flag.String("listen", "", "Listen address (overrides config, default "+config.DefaultListen+")")
	device      = flag.String("device", "", "Device kind: virtual or serial (overrides config)")
	port        = flag.String("port", "", "Serial port for the serial device (overrides config)")
	listPorts   = flag.Bool("list-ports", false, "List serial ports and exit")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// Main
func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *listPorts {
		ports, err := serialmux.ListPorts()
		if err != nil {
			log.Fatalf("failed to list serial ports: %v", err)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	applyOverrides(cfg, *device, *port, *listen)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	dev, err := buildDevice(cfg, nil)
	if err != nil {
		log.Fatalf("failed to build device: %v", err)
	}

	metrics, err := pipeline.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("failed to register metrics: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("trackd %s starting %s device with tools %v", version.String(), cfg.GetDevice(), cfg.ToolNames())

	// source.Run tears the device down on every exit path.
	err = source.Run(dev, func(src *source.DeviceSource) error {
		log.Printf("%s connected and tracking", src.Name())
		return serve(ctx, cfg, src, metrics)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("trackd stopped: %v", err)
		os.Exit(1)
	}
	log.Printf("Graceful shutdown complete")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return &config.Config{}, nil
	}
	return config.Load(path)
}

// mux exposes the serial line multiplexer of devices that have one.
type muxer interface {
	Mux() serialmux.SerialMuxInterface
}

func newHandler(src *source.DeviceSource, runner *pipeline.Runner, latest *pipeline.Latest, metrics *pipeline.Metrics) http.Handler {
	apiServer := api.NewServer(runner, src, latest)
	mux := apiServer.ServeMux()

	debug := tsweb.Debugger(mux)
	apiServer.AttachAdminRoutes(debug)
	if m, ok := src.Device().(muxer); ok {
		if sm := m.Mux(); sm != nil {
			sm.AttachAdminRoutes(debug)
		}
	}
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Gatherer(), promhttp.HandlerOpts{}))

	return api.LoggingMiddleware(mux)
}

// serve runs the pipeline and HTTP server until ctx is cancelled or the
// server fails.
func serve(ctx context.Context, cfg *config.Config, src *source.DeviceSource, metrics *pipeline.Metrics) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runner := pipeline.NewRunner(src, cfg.GetUpdateInterval(), metrics)
	latest := pipeline.NewLatest()
	runner.Add(latest)
	runner.Add(&pipeline.VisibilityLogger{})

	server := &http.Server{
		Addr:    cfg.GetListen(),
		Handler: newHandler(src, runner, latest, metrics),
	}

	var (
		wg     sync.WaitGroup
		srvErr error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		runner.Run(ctx)
		monitoring.Logf("pipeline routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			srvErr = fmt.Errorf("http server: %w", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}

	wg.Wait()
	return srvErr
}
