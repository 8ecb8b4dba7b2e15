package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/waymark3d/waymark/internal/api"
	"github.com/waymark3d/waymark/internal/config"
	"github.com/waymark3d/waymark/internal/database"
	"github.com/waymark3d/waymark/internal/dispatcher"
	"github.com/waymark3d/waymark/internal/feed"
	"github.com/waymark3d/waymark/internal/geo"
	"github.com/waymark3d/waymark/internal/handlers"
	"github.com/waymark3d/waymark/internal/influx"
	"github.com/waymark3d/waymark/internal/logging"
	"github.com/waymark3d/waymark/internal/monitor"
	intOtel "github.com/waymark3d/waymark/internal/otel"
	"github.com/waymark3d/waymark/internal/persist"
	"github.com/waymark3d/waymark/internal/store"
)

// setupLogging opens the session log file and rebuilds the logger with
// the file, optional GELF, and optional OTel sinks attached.
func setupLogging() error {
	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	SessionLogPath = logging.LogFilePath(logsDir, AppName, SessionStartTime)
	f, err := os.OpenFile(SessionLogPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
	if err != nil {
		return fmt.Errorf("opening log file %s: %w", SessionLogPath, err)
	}
	SessionLogFile = f

	level := config.GetString("logLevel")

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		OTelProvider, err = intOtel.New(otelCfg, SessionLogFile)
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
			OTelProvider = nil
		} else if otelCfg.Endpoint != "" {
			Logger.Info("OTel provider initialized", "endpoint", otelCfg.Endpoint)
		} else {
			Logger.Info("OTel provider initialized", "file", SessionLogPath)
		}
	}

	var extras []slog.Handler
	gelfCfg := config.GetGraylogConfig()
	if gelfCfg.Enabled {
		h, gerr := logging.NewGelfHandler(gelfCfg.Address, AppName, level)
		if gerr != nil {
			Logger.Error("Failed to connect GELF sink", "error", gerr, "address", gelfCfg.Address)
		} else {
			extras = append(extras, h)
			Logger.Info("GELF sink attached", "address", gelfCfg.Address)
		}
	}

	var provider *sdklog.LoggerProvider
	if OTelProvider != nil {
		provider = OTelProvider.LoggerProvider()
	}

	// Scene attributes ride on every record from here on.
	SlogManager.SetContextProvider(sceneCtx.LogAttrs)
	SlogManager.Setup(SessionLogFile, level, provider, extras...)
	Logger = SlogManager.Logger()
	Logger.Info("Logging to file", "path", SessionLogPath)
	return nil
}

// zerologTo builds the logger the database and metrics managers use,
// console format without color into the session log file.
func zerologTo(w io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    true,
	}).With().Timestamp().Logger().Level(zerologLevel(config.GetString("logLevel")))
}

func zerologLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// setupDatabase connects the write-behind mirror. Connection failure is
// not fatal: the store keeps running in memory only.
func setupDatabase() {
	if !config.GetPersistConfig().Enabled {
		Logger.Info("Persistence disabled by config")
		return
	}

	dbManager = database.NewManager(zerologTo(SessionLogFile))
	if err := dbManager.Connect(config.GetDBConfig()); err != nil {
		Logger.Error("Database connection failed, annotations stay in memory", "error", err)
		dbManager = nil
		return
	}
	if err := dbManager.Setup(); err != nil {
		Logger.Error("Database migration failed, annotations stay in memory", "error", err)
		_ = dbManager.Close()
		dbManager = nil
		return
	}
	Logger.Info("Database ready", "sqlite", dbManager.UsingSQLite, "inMemory", dbManager.InMemory)
}

// startServices builds the store and attaches persistence, the live feed,
// metrics, and the command surface around it.
func startServices() error {
	annotationStore = store.New()

	if dbManager != nil {
		var anchor *geo.Anchor
		if a := config.GetAnchorConfig(); a.Enabled {
			anchor = &geo.Anchor{Longitude: a.Longitude, Latitude: a.Latitude}
		}

		pipeline = persist.New(persist.Dependencies{
			DB:         dbManager.DB,
			Scene:      sceneCtx,
			LogManager: SlogManager,
			Anchor:     anchor,
			FlushEvery: config.GetPersistConfig().FlushInterval(),
		})
		if err := pipeline.Init(); err != nil {
			return fmt.Errorf("starting persistence pipeline: %w", err)
		}

		if config.GetPersistConfig().Restore {
			nw, ng, err := pipeline.Restore(annotationStore)
			if err != nil {
				Logger.Error("Restore from database failed, starting empty", "error", err)
			} else if nw+ng > 0 {
				Logger.Info("Restored annotations from database", "waypoints", nw, "groups", ng)
			}
		}

		// Attach after Restore so replayed rows do not re-enter the queue.
		annotationStore.AddListener(pipeline.Listener())

		if dbManager.InMemory && dbManager.SqliteFilePath != "" {
			go memoryDumpLoop()
		}
	}

	if feedCfg := config.GetFeedConfig(); feedCfg.Enabled {
		markerFeed = feed.New(feed.Config{URL: feedCfg.URL, Secret: feedCfg.Secret}, sceneCtx, SlogManager)
		if err := markerFeed.Start(); err != nil {
			Logger.Error("Feed connection failed, continuing without live feed", "error", err)
			markerFeed = nil
		} else {
			annotationStore.AddListener(markerFeed.Listener())
			Logger.Info("Live feed connected", "url", feedCfg.URL)
		}
	}

	if influxCfg := config.GetInfluxConfig(); influxCfg.Enabled {
		influxManager = influx.NewManager(zerologTo(SessionLogFile), filepath.Join(BaseDir, "influx_backup"))
		if err := influxManager.Connect(influxCfg); err != nil {
			Logger.Error("InfluxDB connection failed", "error", err)
		}
	}

	if apiCfg := config.GetAPIConfig(); apiCfg.ServerURL != "" {
		apiClient = api.New(apiCfg.ServerURL, apiCfg.APIKey)
	}

	var err error
	eventDispatcher, err = dispatcher.New(logging.NewDispatcherLogger(zerologTo(SessionLogFile)))
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}

	exportCfg := config.GetExportConfig()
	deps := handlers.Dependencies{
		Store:      annotationStore,
		Scene:      sceneCtx,
		LogManager: SlogManager,
		ExportDir:  exportCfg.Dir,
		Compress:   exportCfg.Compress,
	}
	if apiClient != nil {
		deps.Uploader = apiClient
	}
	if pipeline != nil {
		deps.QueueDepth = pipeline.QueueDepth
	}
	if markerFeed != nil {
		feedRef := markerFeed
		deps.OnSceneChange = func() {
			if aerr := feedRef.AnnounceSession(); aerr != nil {
				Logger.Warn("Feed re-announce failed", "error", aerr)
			}
		}
	}
	handlerService = handlers.NewService(deps)
	handlerService.Register(eventDispatcher)
	registerLifecycleHandlers(eventDispatcher)

	monitorDeps := monitor.Dependencies{
		Store:      annotationStore,
		Scene:      sceneCtx,
		LogManager: SlogManager,
		Influx:     influxManager,
		StatusDir:  BaseDir,
		Interval:   5 * time.Second,
	}
	if pipeline != nil {
		monitorDeps.QueueDepth = pipeline.QueueDepth
		monitorDeps.LastFlush = pipeline.LastFlushDuration
	}
	monitorService = monitor.NewService(monitorDeps)
	if err := monitorService.Start(); err != nil {
		Logger.Warn("Status monitor failed to start", "error", err)
	}

	return nil
}

// memoryDumpLoop periodically dumps the in-memory fallback database to
// disk so a crash cannot lose the whole session.
func memoryDumpLoop() {
	for {
		time.Sleep(3 * time.Minute)
		if dbManager == nil {
			return
		}
		if err := dbManager.DumpMemoryToDisk(); err != nil {
			Logger.Error("Memory database dump failed", "error", err)
		}
	}
}

// checkServerStatus logs whether the annotation server answers its
// healthcheck.
func checkServerStatus() {
	if err := apiClient.Healthcheck(); err != nil {
		Logger.Info("Waymark server is offline")
	} else {
		Logger.Info("Waymark server is online")
	}
}

type versionResponse struct {
	OK        bool   `json:"ok"`
	Version   string `json:"version"`
	BuildDate string `json:"build_date"`
}

type commandsResponse struct {
	OK       bool     `json:"ok"`
	Commands []string `json:"commands"`
}

type serverStatusResponse struct {
	OK     bool   `json:"ok"`
	Server string `json:"server"`
}

type stoppingResponse struct {
	OK       bool `json:"ok"`
	Stopping bool `json:"stopping"`
}

// registerLifecycleHandlers wires the process-level commands that live
// outside the annotation store.
func registerLifecycleHandlers(d *dispatcher.Dispatcher) {
	d.Register("version", func(e dispatcher.Event) (any, error) {
		return versionResponse{OK: true, Version: CurrentVersion, BuildDate: BuildDate}, nil
	})

	d.Register("commands", func(e dispatcher.Event) (any, error) {
		names := d.Commands()
		sort.Strings(names)
		return commandsResponse{OK: true, Commands: names}, nil
	})

	d.Register("healthcheck", func(e dispatcher.Event) (any, error) {
		if apiClient == nil {
			return nil, fmt.Errorf("no annotation server configured")
		}
		if err := apiClient.Healthcheck(); err != nil {
			return nil, fmt.Errorf("annotation server unreachable: %v", err)
		}
		return serverStatusResponse{OK: true, Server: "online"}, nil
	})

	d.Register("shutdown", func(e dispatcher.Event) (any, error) {
		// Delay the stop slightly so the response line flushes first.
		shutdownOnce.Do(func() {
			time.AfterFunc(50*time.Millisecond, func() { close(shutdownRequested) })
		})
		return stoppingResponse{OK: true, Stopping: true}, nil
	})
}
