package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Job metrics
	JobsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calliope_jobs_started_total",
			Help: "Total number of generation jobs started",
		},
		[]string{"pipeline"},
	)

	JobsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calliope_jobs_finished_total",
			Help: "Total number of generation jobs reaching a terminal status",
		},
		[]string{"pipeline", "status"}, // status: completed|failed
	)

	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "calliope_job_duration_seconds",
			Help:    "End-to-end generation job duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"pipeline"},
	)

	// Agent metrics
	AgentCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calliope_agent_calls_total",
			Help: "Total number of agent executions",
		},
		[]string{"agent", "model", "status"}, // status: success|error
	)

	AgentLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "calliope_agent_latency_seconds",
			Help:    "Agent execution latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"agent", "model"},
	)

	AgentTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calliope_agent_tokens_total",
			Help: "Total tokens consumed by agents",
		},
		[]string{"agent", "model", "type"}, // type: input|output
	)

	AgentCost = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calliope_agent_cost_usd",
			Help: "Total AI cost in USD",
		},
		[]string{"agent", "model"},
	)

	// Bookkeeping metrics
	BookkeepingFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calliope_bookkeeping_failures_total",
			Help: "Total number of swallowed usage/audit bookkeeping failures",
		},
		[]string{"sink"}, // sink: usage|audit|kafka|snapshot|notify
	)

	// Progress streaming metrics
	ProgressSubscribers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "calliope_progress_subscribers",
			Help: "Current number of active progress stream subscribers",
		},
		[]string{"transport"}, // transport: websocket
	)

	ProgressEventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calliope_progress_events_dropped_total",
			Help: "Total progress events dropped on lagging subscribers",
		},
		[]string{"reason"},
	)

	// Database metrics
	DBQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calliope_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"database", "operation", "status"}, // database: postgres|clickhouse|redis
	)

	DBQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "calliope_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"database", "operation"},
	)

	// System metrics
	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calliope_kafka_messages_total",
			Help: "Total Kafka messages produced",
		},
		[]string{"topic", "status"},
	)
)

// Init registers all metrics with Prometheus
func Init() {
	prometheus.MustRegister(JobsStarted)
	prometheus.MustRegister(JobsFinished)
	prometheus.MustRegister(JobDuration)

	prometheus.MustRegister(AgentCalls)
	prometheus.MustRegister(AgentLatency)
	prometheus.MustRegister(AgentTokens)
	prometheus.MustRegister(AgentCost)

	prometheus.MustRegister(BookkeepingFailures)

	prometheus.MustRegister(ProgressSubscribers)
	prometheus.MustRegister(ProgressEventsDropped)

	prometheus.MustRegister(DBQueries)
	prometheus.MustRegister(DBQueryDuration)

	prometheus.MustRegister(KafkaMessages)
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAgentCall records one agent execution
func RecordAgentCall(agent, model string, latency time.Duration, cost float64, inputTokens, outputTokens int64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	AgentCalls.WithLabelValues(agent, model, status).Inc()
	AgentLatency.WithLabelValues(agent, model).Observe(latency.Seconds())
	AgentTokens.WithLabelValues(agent, model, "input").Add(float64(inputTokens))
	AgentTokens.WithLabelValues(agent, model, "output").Add(float64(outputTokens))
	AgentCost.WithLabelValues(agent, model).Add(cost)
}

// RecordJobFinished records a terminal job transition
func RecordJobFinished(pipeline, status string, duration time.Duration) {
	JobsFinished.WithLabelValues(pipeline, status).Inc()
	JobDuration.WithLabelValues(pipeline).Observe(duration.Seconds())
}
