package monitor

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/waymark3d/waymark/internal/monitor"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// registerGauges exposes store counts as observable gauges on the global
// meter. The callback samples the store on collection, so the gauges cost
// nothing between scrapes.
func (s *Service) registerGauges() error {
	m := meter()

	waypoints, err := m.Int64ObservableGauge(
		"store.waypoints",
		metric.WithDescription("Waypoints currently in the store"),
	)
	if err != nil {
		return fmt.Errorf("creating waypoint gauge: %w", err)
	}

	groups, err := m.Int64ObservableGauge(
		"store.groups",
		metric.WithDescription("Groups currently in the store"),
	)
	if err != nil {
		return fmt.Errorf("creating group gauge: %w", err)
	}

	memberships, err := m.Int64ObservableGauge(
		"store.memberships",
		metric.WithDescription("Waypoint-group memberships currently in the store"),
	)
	if err != nil {
		return fmt.Errorf("creating membership gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			st := s.deps.Store.Stats()
			scene := attribute.String("scene", s.deps.Scene.Name())
			o.ObserveInt64(waypoints, int64(st.Waypoints), metric.WithAttributes(scene))
			o.ObserveInt64(groups, int64(st.Groups), metric.WithAttributes(scene))
			o.ObserveInt64(memberships, int64(st.Memberships), metric.WithAttributes(scene))
			return nil
		},
		waypoints, groups, memberships,
	)
	if err != nil {
		return fmt.Errorf("registering store gauge callback: %w", err)
	}
	return nil
}
