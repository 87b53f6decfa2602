package connector

import (
	"github.com/Konsultn-Engineering/txscope/database"
	"github.com/Konsultn-Engineering/txscope/metrics"
)

// ConnectionStats represents database connection pool statistics.
type ConnectionStats struct {
	OpenConnections int
	InUse           int
	Idle            int
	MaxOpen         int
}

// Stats reports pool statistics. Pools without a statistics source report
// zero values.
func Stats(pool database.Pool) ConnectionStats {
	p, ok := pool.(*database.PgxPool)
	if !ok {
		return ConnectionStats{}
	}
	s := p.Stat()
	return ConnectionStats{
		OpenConnections: int(s.TotalConns()),
		InUse:           int(s.AcquiredConns()),
		Idle:            int(s.IdleConns()),
		MaxOpen:         int(s.MaxConns()),
	}
}

// PublishStats copies the statistics of every pool in r into the pool
// connection gauges.
func PublishStats(r *Registry) {
	for _, name := range r.Names() {
		pool, err := r.Pool(name)
		if err != nil {
			continue
		}
		s := Stats(pool)
		metrics.PoolConnections.WithLabelValues(name, "open").Set(float64(s.OpenConnections))
		metrics.PoolConnections.WithLabelValues(name, "in_use").Set(float64(s.InUse))
		metrics.PoolConnections.WithLabelValues(name, "idle").Set(float64(s.Idle))
		metrics.PoolConnections.WithLabelValues(name, "max").Set(float64(s.MaxOpen))
	}
}
