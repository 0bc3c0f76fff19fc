package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
)

func TestAssessDBPoolHealth(t *testing.T) {
	tests := []struct {
		name  string
		stats DBPoolStats
		want  PoolHealthStatus
	}{
		{"unlimited", DBPoolStats{}, PoolHealthy},
		{"normal", DBPoolStats{InUse: 2, MaxOpenConnections: 10}, PoolHealthy},
		{"high", DBPoolStats{InUse: 8, MaxOpenConnections: 10}, PoolDegraded},
		{"exhausted", DBPoolStats{InUse: 10, MaxOpenConnections: 10}, PoolUnhealthy},
		{"waiting", DBPoolStats{InUse: 1, MaxOpenConnections: 10, WaitCount: 3, WaitDuration: 6 * time.Second}, PoolDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AssessDBPoolHealth(tt.stats).Status)
		})
	}
}

func TestBreakerListener(t *testing.T) {
	m := Get()

	m.BreakerListener("crm", gobreaker.StateClosed, gobreaker.StateOpen)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("crm")))

	m.BreakerListener("crm", gobreaker.StateOpen, gobreaker.StateHalfOpen)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("crm")))

	m.BreakerListener("crm", gobreaker.StateHalfOpen, gobreaker.StateClosed)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("crm")))
}

func TestGetIsSingleton(t *testing.T) {
	assert.Same(t, Get(), Get())
}
