// Package monitor periodically samples store and persistence health,
// writes a status file for the host application, and ships the samples
// to InfluxDB.
package monitor

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"

	"github.com/waymark3d/waymark/internal/influx"
	"github.com/waymark3d/waymark/internal/logging"
	"github.com/waymark3d/waymark/internal/scene"
	"github.com/waymark3d/waymark/internal/store"
)

// Dependencies holds all dependencies for the monitor service.
type Dependencies struct {
	Store      *store.Store
	Scene      *scene.Context
	LogManager *logging.SlogManager

	// Influx may be nil; samples then only reach the status file.
	Influx *influx.Manager

	// QueueDepth and LastFlush report persistence pipeline health. Nil
	// funcs read as zero.
	QueueDepth func() int
	LastFlush  func() time.Duration

	// StatusDir receives status.txt. Empty disables the file.
	StatusDir string

	// Interval between samples. Zero means 1 second.
	Interval time.Duration
}

// Sample is one point-in-time reading of store and pipeline health.
type Sample struct {
	Time        time.Time `json:"time"`
	Scene       string    `json:"scene"`
	Waypoints   int       `json:"waypoints"`
	Groups      int       `json:"groups"`
	Memberships int       `json:"memberships"`
	Visibility  string    `json:"visibility"`
	QueueDepth  int       `json:"queueDepth"`
	LastFlushMs float32   `json:"lastFlushMs"`
}

// Service manages status monitoring.
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
}

// NewService creates a new monitor service and registers the store
// gauges on the global meter (no-op when OTel is not configured).
func NewService(deps Dependencies) *Service {
	s := &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
	if err := s.registerGauges(); err != nil && deps.LogManager != nil {
		deps.LogManager.Logger().Error("Error registering store gauges", "error", err)
	}
	return s
}

// IsRunning returns whether the status monitor is running.
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Collect takes one sample of store and pipeline state.
func (s *Service) Collect() Sample {
	st := s.deps.Store.Stats()
	smp := Sample{
		Time:        time.Now(),
		Scene:       s.deps.Scene.Name(),
		Waypoints:   st.Waypoints,
		Groups:      st.Groups,
		Memberships: st.Memberships,
		Visibility:  string(st.Visibility),
	}
	if s.deps.QueueDepth != nil {
		smp.QueueDepth = s.deps.QueueDepth()
	}
	if s.deps.LastFlush != nil {
		smp.LastFlushMs = float32(s.deps.LastFlush().Milliseconds())
	}
	return smp
}

// publish ships one sample to InfluxDB.
func (s *Service) publish(smp Sample) {
	if s.deps.Influx == nil {
		return
	}
	logger := s.deps.LogManager.Logger()

	counts := influxdb2.NewPointWithMeasurement("annotation_counts").
		AddTag("scene", smp.Scene).
		AddField("waypoints", smp.Waypoints).
		AddField("groups", smp.Groups).
		AddField("memberships", smp.Memberships).
		SetTime(smp.Time)
	if err := s.deps.Influx.WritePoint(context.Background(), influx.BucketAnnotationData, counts); err != nil {
		logger.Error("Error writing annotation counts to InfluxDB", "error", err)
	}

	pipeline := influxdb2.NewPointWithMeasurement("persist_pipeline").
		AddTag("scene", smp.Scene).
		AddField("queue_depth", smp.QueueDepth).
		AddField("last_flush_ms", smp.LastFlushMs).
		SetTime(smp.Time)
	if err := s.deps.Influx.WritePoint(context.Background(), influx.BucketStorePerformance, pipeline); err != nil {
		logger.Error("Error writing pipeline sample to InfluxDB", "error", err)
	}
}

func (s *Service) interval() time.Duration {
	if s.deps.Interval <= 0 {
		return time.Second
	}
	return s.deps.Interval
}

// Start starts the status monitor goroutine.
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting status monitor goroutine")

		var statusFile *os.File
		if s.deps.StatusDir != "" {
			var err error
			statusFile, err = os.Create(filepath.Join(s.deps.StatusDir, "status.txt"))
			if err != nil {
				logger.Error("Error creating status file", "error", err)
			} else {
				defer statusFile.Close()
			}
		}

		for {
			select {
			case <-s.stopChan:
				return
			case <-time.After(s.interval()):
			}

			smp := s.Collect()

			if statusFile != nil {
				data, err := json.MarshalIndent(smp, "", "  ")
				if err == nil {
					statusFile.Truncate(0)
					statusFile.Seek(0, 0)
					statusFile.Write(append(data, '\n'))
				}
			}

			s.publish(smp)
		}
	}()

	return nil
}

// Stop stops the status monitor. Safe to call more than once.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		close(s.stopChan)
		s.isRunning = false
	}
}
