package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sitehub"

var (
	httpBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}
	dbBuckets   = []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.35, 0.5, 1, 2, 5}
	jobBuckets  = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}
)

// Prom holds every collector the API and worker export. Methods are safe on
// a nil receiver so tests can run without a registry.
type Prom struct {
	RequestsTotal    *prometheus.CounterVec
	RequestsDuration *prometheus.HistogramVec
	InFlight         *prometheus.GaugeVec

	DbQueryDuration *prometheus.HistogramVec
	DbErrorsTotal   *prometheus.CounterVec

	JobDuration  *prometheus.HistogramVec // result=done|retry|failed
	JobResults   *prometheus.CounterVec
	JobsInFlight prometheus.Gauge

	AccessDecisions *prometheus.CounterVec // outcome=allowed|not_member|insufficient_role|error
	CacheRequests   *prometheus.CounterVec // result=hit|miss|error

	BreakerState *prometheus.GaugeVec // 0 closed, 1 half open, 2 open
}

func counterVec(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
	}, labels)
}

func histogramVec(subsystem, name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help, Buckets: buckets,
	}, labels)
}

func NewProm(reg prometheus.Registerer) *Prom {
	p := &Prom{
		RequestsTotal:    counterVec("", "http_requests_total", "HTTP requests by method, route template and status.", "method", "route", "status"),
		RequestsDuration: histogramVec("", "http_request_duration_seconds", "HTTP request latency.", httpBuckets, "method", "route", "status"),
		InFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "HTTP requests currently being served.",
		}, []string{"method", "route"}),

		DbQueryDuration: histogramVec("db", "query_duration_seconds", "Repository operation latency by logical op.", dbBuckets, "op", "status"),
		DbErrorsTotal:   counterVec("db", "errors_total", "Repository errors by logical op and class.", "op", "class"),

		JobDuration: histogramVec("jobs", "duration_seconds", "Job run time by type and result.", jobBuckets, "job_type", "result"),
		JobResults:  counterVec("jobs", "results_total", "Job outcomes by type and result.", "job_type", "result"),
		JobsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "in_flight",
			Help:      "Jobs executing in this process.",
		}),

		AccessDecisions: counterVec("", "access_decisions_total", "Project access decisions by requirement and outcome.", "requirement", "outcome"),
		CacheRequests:   counterVec("cache", "requests_total", "Dashboard cache lookups by backend and result.", "cache", "result"),

		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per notifier: 0 closed, 1 half open, 2 open.",
		}, []string{"notifier"}),
	}

	reg.MustRegister(
		p.RequestsTotal, p.RequestsDuration, p.InFlight,
		p.DbQueryDuration, p.DbErrorsTotal,
		p.JobDuration, p.JobResults, p.JobsInFlight,
		p.AccessDecisions, p.CacheRequests,
		p.BreakerState,
	)

	return p
}

// GinHandleMiddleware labels by route template (/projects/:projectId/...)
// so project ids never become label values.
func (p *Prom) GinHandleMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := ctx.Request.Method

		inFlight := p.InFlight.WithLabelValues(method, route)
		inFlight.Inc()
		defer inFlight.Dec()

		ctx.Next()

		status := strconv.Itoa(ctx.Writer.Status())
		p.RequestsTotal.WithLabelValues(method, route, status).Inc()
		p.RequestsDuration.WithLabelValues(method, route, status).Observe(time.Since(start).Seconds())
	}
}

func (p *Prom) ObserveAccess(requirement, outcome string) {
	if p == nil {
		return
	}
	p.AccessDecisions.WithLabelValues(requirement, outcome).Inc()
}

// TrackJob marks a job as running; call the returned func when it ends.
func (p *Prom) TrackJob() func() {
	if p == nil {
		return func() {}
	}
	p.JobsInFlight.Inc()
	return p.JobsInFlight.Dec
}

func (p *Prom) ObserveJob(jobType, result string, d time.Duration) {
	if p == nil {
		return
	}
	p.JobResults.WithLabelValues(jobType, result).Inc()
	p.JobDuration.WithLabelValues(jobType, result).Observe(d.Seconds())
}

func (p *Prom) ObserveCache(cache, result string) {
	if p == nil {
		return
	}
	p.CacheRequests.WithLabelValues(cache, result).Inc()
}

func (p *Prom) SetBreakerState(notifier string, state int) {
	if p == nil {
		return
	}
	p.BreakerState.WithLabelValues(notifier).Set(float64(state))
}
