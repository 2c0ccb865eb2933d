package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/qantedservices-cmd/amilou-sub002/core/blob"
	"github.com/qantedservices-cmd/amilou-sub002/core/identity"
)

type metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// newMetrics registers the API metrics on `reg`.
// Impersonation starts are counted through the store's start hook.
func newMetrics(reg prometheus.Registerer, blobs *blob.Store, impersonations *identity.Store) *metrics {
	factory := promauto.With(reg)

	m := &metrics{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "amilou_http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "amilou_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	started := factory.NewCounter(prometheus.CounterOpts{
		Name: "amilou_impersonations_started_total",
		Help: "Total number of impersonations started by admins.",
	})
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "amilou_impersonations_active",
		Help: "Number of sessions currently impersonating a user.",
	}, func() float64 { return float64(impersonations.Len()) })
	impersonations.OnStart(func(identity.Record) { started.Inc() })

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "amilou_blob_entries",
		Help: "Number of exports waiting to be downloaded.",
	}, func() float64 { return float64(blobs.Len()) })

	return m
}

// middleware records every request under its route template (not the raw path) to bound label cardinality.
func (m *metrics) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)
			if err != nil {
				// let the error handler write the final status
				ctx.Error(err)
			}

			path := ctx.Path()
			if path == "" {
				path = "unmatched"
			}
			method := ctx.Request().Method
			m.requests.WithLabelValues(method, path, strconv.Itoa(ctx.Response().Status)).Inc()
			m.duration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
