package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics surface used by the relay and the HTTP layer.
type Recorder interface {
	ObserveRetrieval(outcome string, seconds float64)
	IncCompletion(outcome string)
	ObserveStream(status string, seconds float64)
	ObserveHTTP(route, method string, status int, seconds float64)
}

type noopRecorder struct{}

func (noopRecorder) ObserveRetrieval(string, float64)         {}
func (noopRecorder) IncCompletion(string)                     {}
func (noopRecorder) ObserveStream(string, float64)            {}
func (noopRecorder) ObserveHTTP(string, string, int, float64) {}

func Noop() Recorder { return noopRecorder{} }

type PromRecorder struct {
	registry       *prom.Registry
	retrievalTotal *prom.CounterVec
	retrievalSecs  *prom.HistogramVec
	completion     *prom.CounterVec
	streamTotal    *prom.CounterVec
	streamSecs     *prom.HistogramVec
	httpTotal      *prom.CounterVec
	httpSecs       *prom.HistogramVec
}

func NewPromRecorder() *PromRecorder {
	p := &PromRecorder{
		registry: prom.NewRegistry(),
		retrievalTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "relay_retrieval_total",
			Help: "Context retrieval calls by outcome (found, empty, failed)",
		}, []string{"outcome"}),
		retrievalSecs: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "relay_retrieval_seconds",
			Help:    "Context retrieval duration in seconds",
			Buckets: prom.DefBuckets,
		}, []string{"outcome"}),
		completion: prom.NewCounterVec(prom.CounterOpts{
			Name: "relay_completion_total",
			Help: "Completion stream open attempts by outcome (opened, rejected)",
		}, []string{"outcome"}),
		streamTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "relay_stream_total",
			Help: "Relayed streams by final status",
		}, []string{"status"}),
		streamSecs: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "relay_stream_seconds",
			Help:    "Relayed stream duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"status"}),
		httpTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		httpSecs: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "http_request_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prom.DefBuckets,
		}, []string{"route", "method"}),
	}
	p.registry.MustRegister(
		p.retrievalTotal, p.retrievalSecs,
		p.completion,
		p.streamTotal, p.streamSecs,
		p.httpTotal, p.httpSecs,
	)
	return p
}

func (p *PromRecorder) ObserveRetrieval(outcome string, seconds float64) {
	p.retrievalTotal.WithLabelValues(outcome).Inc()
	p.retrievalSecs.WithLabelValues(outcome).Observe(seconds)
}

func (p *PromRecorder) IncCompletion(outcome string) {
	p.completion.WithLabelValues(outcome).Inc()
}

func (p *PromRecorder) ObserveStream(status string, seconds float64) {
	p.streamTotal.WithLabelValues(status).Inc()
	p.streamSecs.WithLabelValues(status).Observe(seconds)
}

func (p *PromRecorder) ObserveHTTP(route, method string, status int, seconds float64) {
	p.httpTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	p.httpSecs.WithLabelValues(route, method).Observe(seconds)
}

func (p *PromRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// GinMiddleware records one observation per request, labelled by route template.
func GinMiddleware(rec Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		rec.ObserveHTTP(route, c.Request.Method, c.Writer.Status(), time.Since(start).Seconds())
	}
}
