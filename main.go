// plotbot drives a serial pen-plotter on behalf of untrusted, user-submitted
// drawing programs, records webcam evidence of every draw, and returns the
// media to the requester. Exactly one job runs at a time; the machine is
// parked at the origin between jobs.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/inkworks/plotbot/api"
	"github.com/inkworks/plotbot/internal/camera"
	"github.com/inkworks/plotbot/internal/chat"
	"github.com/inkworks/plotbot/internal/config"
	"github.com/inkworks/plotbot/internal/gpio"
	"github.com/inkworks/plotbot/internal/jobdb"
	"github.com/inkworks/plotbot/internal/pipeline"
	"github.com/inkworks/plotbot/internal/plotter"
	"github.com/inkworks/plotbot/internal/preview"
	"github.com/inkworks/plotbot/internal/turtle"
	"github.com/inkworks/plotbot/internal/version"
)

var (
	devMode    = flag.Bool("dev", false, "Run without plotter, webcam, or GPIO hardware")
	listen     = flag.String("listen", ":8080", "Listen address")
	configPath = flag.String("config", "plotbot.json", "Path to the configuration file")
)

func main() {
	flag.Parse()
	log.Printf("plotbot %s (%s)", version.Version, version.GitSHA)

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg := &config.Config{}
	if _, err := os.Stat(*configPath); err == nil {
		var lerr error
		cfg, lerr = config.Load(*configPath)
		if lerr != nil {
			log.Fatalf("failed to load config: %v", lerr)
		}
	} else {
		log.Printf("no config file at %s, using defaults", *configPath)
	}

	var machine plotter.Interface
	var clearLine gpio.Line
	var cam camera.Recorder
	if *devMode {
		machine = plotter.NewMock()
		clearLine = gpio.NopLine{}
		cam = &camera.NopRecorder{MediaDir: cfg.GetMediaDir()}
	} else {
		var err error
		machine, err = plotter.Open(cfg.GetSerialPath(), cfg.GetSerial())
		if err != nil {
			log.Fatalf("failed to open plotter port: %v", err)
		}
		clearLine = &gpio.SysfsLine{Path: cfg.GetGPIOPath()}
		cam = &camera.Client{
			BaseURL:  cfg.GetCameraBaseURL(),
			MediaDir: cfg.GetMediaDir(),
		}
	}
	defer machine.Close()

	db, err := jobdb.NewDB(cfg.GetDBPath())
	if err != nil {
		log.Fatalf("failed to open job database: %v", err)
	}
	defer db.Close()
	if err := db.MigrateUp(cfg.GetMigrationsDir()); err != nil {
		log.Fatalf("failed to migrate job database: %v", err)
	}

	ctrl := pipeline.New(pipeline.Config{
		Executor:        turtle.NewExecutor(cfg.GetMaxOps(), cfg.GetMaxPoints()),
		Driver:          machine,
		Clear:           clearLine,
		Camera:          cam,
		Session:         &camera.Session{Recorder: cam, SettleDelay: cfg.GetSettleDelay()},
		Messenger:       &chat.WebhookClient{URL: cfg.GetWebhookURL()},
		Store:           db,
		Preview:         &preview.Renderer{},
		Range:           cfg.DeviceRange(),
		ClearPulseWidth: cfg.GetClearPulseWidth(),
		WorkDir:         cfg.GetWorkDir(),
	})

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := machine.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor plotter port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	// bring the hardware to a known state before accepting the first job:
	// webcam reachable, no stale recording, pen parked, board cleared
	if err := ctrl.Startup(ctx); err != nil {
		log.Fatalf("startup sequence failed: %v", err)
	}
	log.Print("machine parked and board cleared; accepting jobs")

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// mount the admin debugging routes (accessible only in dev mode or
		// over Tailscale)
		machine.AttachAdminRoutes(mux)
		db.AttachAdminRoutes(mux)

		apiMux := api.NewServer(ctx, ctrl, db).ServeMux()
		mux.Handle("/api/", http.StripPrefix("/api", apiMux))
		mux.Handle("/", apiMux)

		server := &http.Server{
			Addr:    *listen,
			Handler: mux,
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish, then best-effort park the machine
	// so an operator finds it in a known state after a restart.
	wg.Wait()
	ctrl.Wait()

	parkCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ctrl.Shutdown(parkCtx)

	log.Printf("Graceful shutdown complete")
}
