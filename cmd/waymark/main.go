// Command waymark hosts the spatial annotation store for a visualization
// application. It speaks a line-oriented JSON protocol: one request per
// line on stdin, one response per line on stdout. Logging, persistence,
// metrics, and the live feed run as background services so annotation
// commands stay fast.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/waymark3d/waymark/internal/api"
	"github.com/waymark3d/waymark/internal/config"
	"github.com/waymark3d/waymark/internal/database"
	"github.com/waymark3d/waymark/internal/dispatcher"
	"github.com/waymark3d/waymark/internal/feed"
	"github.com/waymark3d/waymark/internal/handlers"
	"github.com/waymark3d/waymark/internal/influx"
	"github.com/waymark3d/waymark/internal/logging"
	"github.com/waymark3d/waymark/internal/monitor"
	intOtel "github.com/waymark3d/waymark/internal/otel"
	"github.com/waymark3d/waymark/internal/persist"
	"github.com/waymark3d/waymark/internal/scene"
	"github.com/waymark3d/waymark/internal/store"
	"github.com/waymark3d/waymark/pkg/hostio"
)

// version info - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.1.0"
	BuildDate      string = "unknown"

	AppName string = "waymark"
)

// file paths
var (
	// BaseDir holds the config file, the status file, and the influx
	// backup. Resolved to the executable's directory.
	BaseDir string

	SessionLogPath string
	SessionLogFile *os.File
)

// services
var (
	SlogManager *logging.SlogManager
	Logger      *slog.Logger

	OTelProvider *intOtel.Provider

	SessionStartTime time.Time = time.Now()

	sceneCtx        *scene.Context
	annotationStore *store.Store
	dbManager       *database.Manager
	pipeline        *persist.Pipeline
	markerFeed      *feed.Feed
	influxManager   *influx.Manager
	monitorService  *monitor.Service
	handlerService  *handlers.Service
	eventDispatcher *dispatcher.Dispatcher
	apiClient       *api.Client

	// shutdownRequested closes when the host sends the shutdown command.
	shutdownRequested = make(chan struct{})
	shutdownOnce      sync.Once
)

func main() {
	args := os.Args[1:]

	if len(args) > 0 && strings.ToLower(args[0]) == "version" {
		fmt.Printf("%s %s (built %s)\n", AppName, CurrentVersion, BuildDate)
		return
	}

	if err := startup(); err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(1)
	}

	if len(args) > 0 {
		runSubcommand(strings.ToLower(args[0]))
		shutdown()
		return
	}

	serve()
	shutdown()
}

// startup brings every service up in dependency order: config, logging,
// database, then the store and everything attached to it.
func startup() error {
	BaseDir = resolveBaseDir()

	// Bootstrap logging to stderr until the log file exists. Stdout is
	// reserved for protocol responses.
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(os.Stderr, "info", nil)
	Logger = SlogManager.Logger()

	if err := config.Load(BaseDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config")
	}

	sceneCtx = scene.NewContext(config.GetSceneConfig().Name, SessionStartTime)

	if err := setupLogging(); err != nil {
		return err
	}

	setupDatabase()

	if err := startServices(); err != nil {
		return err
	}

	if apiClient != nil {
		go checkServerStatus()
	}

	Logger.Info("Startup complete",
		"version", CurrentVersion,
		"scene", sceneCtx.Name(),
		"persistence", pipeline != nil,
		"feed", markerFeed != nil,
	)
	return nil
}

// serve runs the host bridge until the input stream closes, a signal
// arrives, or the host sends the shutdown command.
func serve() {
	bridge := hostio.New(eventDispatcher)

	runDone := make(chan error, 1)
	go func() {
		runDone <- bridge.Run(os.Stdin, os.Stdout)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		Logger.Info("Signal received, shutting down", "signal", sig.String())
	case <-shutdownRequested:
		Logger.Info("Shutdown command received")
	case err := <-runDone:
		if err != nil {
			Logger.Error("Host stream failed", "error", err)
		} else {
			Logger.Info("Host stream closed")
		}
	}
}

func runSubcommand(name string) {
	switch name {
	case "demo":
		Logger.Info("Populating demo data...")
		start := time.Now()
		if err := populateDemoData(); err != nil {
			Logger.Error("Demo data failed", "error", err)
			fmt.Fprintf(os.Stderr, "demo failed: %v\n", err)
			return
		}
		Logger.Info("Demo data populated", "duration", time.Since(start))
	case "setupdb":
		if dbManager == nil {
			fmt.Fprintln(os.Stderr, "no database configured; enable persist in waymark.cfg.json")
			return
		}
		// Connect already migrated the schema; this subcommand exists so
		// operators can prepare a database without starting a session.
		fmt.Println("Database schema is up to date.")
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q (want demo, setupdb, or version)\n", name)
	}
}

// shutdown tears services down in reverse order, draining pending writes
// before the database closes.
func shutdown() {
	Logger.Info("Shutting down...")

	if config.GetAPIConfig().UploadOnExit && apiClient != nil {
		uploadFinalSnapshot()
	}

	if monitorService != nil {
		monitorService.Stop()
	}
	if markerFeed != nil {
		if err := markerFeed.Close(); err != nil {
			Logger.Warn("Feed close failed", "error", err)
		}
	}
	if pipeline != nil {
		if err := pipeline.Close(); err != nil {
			Logger.Warn("Persistence drain failed", "error", err)
		}
	}
	if influxManager != nil {
		if err := influxManager.Close(); err != nil {
			Logger.Warn("Influx close failed", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := SlogManager.Flush(ctx); err != nil {
		Logger.Warn("Log flush failed", "error", err)
	}
	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			Logger.Warn("OTel shutdown failed", "error", err)
		}
	}

	if dbManager != nil {
		if dbManager.InMemory && dbManager.SqliteFilePath != "" {
			if err := dbManager.DumpMemoryToDisk(); err != nil {
				Logger.Warn("Database dump failed", "error", err)
			}
		}
		if err := dbManager.Close(); err != nil {
			Logger.Warn("Database close failed", "error", err)
		}
	}

	if SessionLogFile != nil {
		_ = SessionLogFile.Close()
	}
}

// uploadFinalSnapshot ships the session's annotations to the annotation
// server through the regular command path.
func uploadFinalSnapshot() {
	if _, err := eventDispatcher.Dispatch(dispatcher.Event{
		Command:   handlers.OpUploadSnapshot,
		Timestamp: time.Now(),
	}); err != nil {
		Logger.Warn("Final snapshot upload failed", "error", err)
		return
	}
	Logger.Info("Final snapshot uploaded")
}

// resolveBaseDir returns the executable's directory, falling back to the
// working directory.
func resolveBaseDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}
