package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// PoolStatter is satisfied by *pgxpool.Pool.
type PoolStatter interface {
	Stat() *pgxpool.Stat
}

// RegisterPoolMetrics exposes control database pool statistics as Prometheus
// gauges on the given registerer.
func RegisterPoolMetrics(reg prometheus.Registerer, pool PoolStatter) error {
	gauges := []struct {
		name string
		help string
		fn   func(*pgxpool.Stat) float64
	}{
		{"control_db_acquired_conns", "Number of currently acquired connections in the control database pool",
			func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) }},
		{"control_db_max_conns", "Maximum number of connections in the control database pool",
			func(s *pgxpool.Stat) float64 { return float64(s.MaxConns()) }},
		{"control_db_total_conns", "Total number of connections in the control database pool",
			func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) }},
		{"control_db_idle_conns", "Number of idle connections in the control database pool",
			func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) }},
	}

	for _, g := range gauges {
		fn := g.fn
		collector := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: g.name,
			Help: g.help,
		}, func() float64 {
			return fn(pool.Stat())
		})
		if err := reg.Register(collector); err != nil {
			return err
		}
	}
	return nil
}
