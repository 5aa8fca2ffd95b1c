package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// PoolState is the read side of a permit pool.
type PoolState interface {
	Capacity() int
	Available() int
	Granted() int
}

// PoolMetrics exports permit pool gauges and counts replenished permits.
//
// The replenished counter is fed through Observe, which is handed to the pool
// at construction; the gauges are attached afterwards with Register.
type PoolMetrics struct {
	meter        metric.Meter
	replenished  metric.Int64Counter
	registration metric.Registration
}

func NewPoolMetrics() (*PoolMetrics, error) {
	meter := otel.Meter(scope)

	replenished, err := meter.Int64Counter(
		"ratelimit.permits.replenished",
		metric.WithDescription("Permits returned to the pool by window ticks"),
		metric.WithUnit("{permit}"),
	)
	if err != nil {
		return nil, err
	}

	return &PoolMetrics{meter: meter, replenished: replenished}, nil
}

// Observe matches the pool observer signature.
func (m *PoolMetrics) Observe(released int) {
	m.replenished.Add(context.Background(), int64(released))
}

// Register attaches capacity, available and granted gauges read from pool at
// collection time.
func (m *PoolMetrics) Register(pool PoolState) error {
	capacity, err := m.meter.Int64ObservableGauge(
		"ratelimit.permits.capacity",
		metric.WithDescription("Permits admitted per window"),
		metric.WithUnit("{permit}"),
	)
	if err != nil {
		return err
	}

	available, err := m.meter.Int64ObservableGauge(
		"ratelimit.permits.available",
		metric.WithDescription("Permits that can be acquired without waiting"),
		metric.WithUnit("{permit}"),
	)
	if err != nil {
		return err
	}

	granted, err := m.meter.Int64ObservableGauge(
		"ratelimit.permits.granted",
		metric.WithDescription("Permits granted since the last tick"),
		metric.WithUnit("{permit}"),
	)
	if err != nil {
		return err
	}

	reg, err := m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(capacity, int64(pool.Capacity()))
		o.ObserveInt64(available, int64(pool.Available()))
		o.ObserveInt64(granted, int64(pool.Granted()))
		return nil
	}, capacity, available, granted)
	if err != nil {
		return err
	}

	m.registration = reg
	return nil
}

// Unregister detaches the gauges. Safe to call before Register.
func (m *PoolMetrics) Unregister() error {
	if m.registration == nil {
		return nil
	}
	return m.registration.Unregister()
}
