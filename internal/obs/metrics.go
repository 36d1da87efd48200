// Copyright 2025 James Ross
package obs

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	TasksStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_tasks_started_total",
		Help: "Total number of tasks handed to the worker pool",
	})
	TasksCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_tasks_completed_total",
		Help: "Total number of successfully completed tasks",
	})
	TasksFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_tasks_failed_total",
		Help: "Total number of failed tasks",
	})
	TasksRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_tasks_rejected_total",
		Help: "Total number of rejected tasks by reason",
	}, []string{"reason"})
	TaskDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_task_duration_seconds",
		Help:    "Histogram of end-to-end task durations",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	})
	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dispatch_queue_depth",
		Help: "Tasks accepted but not yet finished",
	})
	CircuitBreakerState = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dispatch_circuit_breaker_state",
		Help: "0 Closed, 1 HalfOpen, 2 Open",
	})
	CircuitBreakerTrips = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_circuit_breaker_trips_total",
		Help: "Count of transitions to Open",
	})
	DegradedMode = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dispatch_degraded_mode",
		Help: "1 while CPU or memory is above its high-water threshold",
	})
	CostUSD = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_cost_usd_total",
		Help: "Cumulative recorded cost in USD by model",
	}, []string{"model"})
	TokensUsed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_tokens_total",
		Help: "Cumulative recorded tokens by model and direction",
	}, []string{"model", "direction"})
	ContextReduction = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_context_reduction_ratio",
		Help:    "focused_tokens / original_tokens per extraction",
		Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
	})
)

func init() {
	prometheus.MustRegister(TasksStarted, TasksCompleted, TasksFailed, TasksRejected,
		TaskDuration, QueueDepth, CircuitBreakerState, CircuitBreakerTrips,
		DegradedMode, CostUSD, TokensUsed, ContextReduction)
}
