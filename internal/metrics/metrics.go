// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Store metrics

	StoreAppends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_appends_total",
			Help: "Total number of append operations",
		},
		[]string{"result"}, // "created", "extended", "error"
	)

	StoreAppendRows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_append_rows_total",
			Help: "Total number of rows written by append operations",
		},
	)

	StoreAppendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "store_append_duration_seconds",
			Help:    "Duration of append operations in seconds",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5, 1},
		},
	)

	StoreReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_reads_total",
			Help: "Total number of read operations",
		},
		[]string{"operation", "result"}, // operation: "node", "values", "keys", "attrs"
	)

	// Notification metrics

	NotifyQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notify_queue_depth",
			Help: "Current number of events waiting in the notification queue",
		},
	)

	NotifyEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_events_total",
			Help: "Total number of notification events dispatched",
		},
		[]string{"kind"}, // "created", "data"
	)

	NotifyDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_deliveries_total",
			Help: "Total number of subscriber deliveries",
		},
		[]string{"result"}, // "ok", "error", "unreachable"
	)

	SubscriptionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "subscriptions_active",
			Help: "Current number of live subscriptions",
		},
		[]string{"kind"}, // "dataset", "group"
	)

	SubscriptionRemovals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_removals_total",
			Help: "Total number of subscription removals",
		},
		[]string{"reason"}, // "explicit", "unreachable", "shutdown"
	)

	// HTTP metrics

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 5},
		},
		[]string{"method", "endpoint"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests being served",
		},
	)

	// WebSocket metrics

	WSConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Current number of WebSocket subscriber connections",
		},
	)

	WSMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
		[]string{"type"}, // "data", "created", "subscribed", "unsubscribed", "error"
	)

	WSMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_received_total",
			Help: "Total number of WebSocket messages received",
		},
		[]string{"type"}, // "subscribe", "unsubscribe", "unknown"
	)

	// Measurement metrics

	MeasurementRunsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "measurement_runs_active",
			Help: "Current number of running measurements",
		},
	)

	MeasurementBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "measurement_batches_total",
			Help: "Total number of device batches appended by measurement workers",
		},
		[]string{"device", "result"}, // result: "ok", "error"
	)

	StatusCollections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "status_collections_total",
			Help: "Total number of status collector cycles per device",
		},
		[]string{"device", "result"}, // result: "ok", "error", "resent"
	)

	// Bridge metrics

	BridgePublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_publishes_total",
			Help: "Total number of notification events republished to NATS",
		},
		[]string{"result"}, // "ok", "error", "dropped"
	)

	// Circuit breaker metrics

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Export metrics

	Exports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exports_total",
			Help: "Total number of dataset export operations",
		},
		[]string{"result"}, // "ok", "error"
	)

	ExportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "export_duration_seconds",
			Help:    "Duration of dataset export operations in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		},
	)

	// Auth metrics

	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"result"}, // "ok", "invalid", "rate_limited"
	)
)

// RecordAppend records one append operation with its outcome.
func RecordAppend(created bool, rows int, duration time.Duration, err error) {
	result := "extended"
	switch {
	case err != nil:
		result = "error"
	case created:
		result = "created"
	}
	StoreAppends.WithLabelValues(result).Inc()
	if err == nil {
		StoreAppendRows.Add(float64(rows))
		StoreAppendDuration.Observe(duration.Seconds())
	}
}

// RecordRead records one read operation against the store.
func RecordRead(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	StoreReads.WithLabelValues(operation, result).Inc()
}

// UpdateNotifyQueueDepth updates the notification queue depth gauge.
func UpdateNotifyQueueDepth(depth int) {
	NotifyQueueDepth.Set(float64(depth))
}

// RecordNotifyEvent records one event leaving the dispatch loop.
func RecordNotifyEvent(created bool) {
	kind := "data"
	if created {
		kind = "created"
	}
	NotifyEvents.WithLabelValues(kind).Inc()
}

// RecordDelivery records one subscriber delivery outcome.
func RecordDelivery(result string) {
	NotifyDeliveries.WithLabelValues(result).Inc()
}

// UpdateSubscriptions updates the live subscription gauges.
func UpdateSubscriptions(dataset, group int) {
	SubscriptionsActive.WithLabelValues("dataset").Set(float64(dataset))
	SubscriptionsActive.WithLabelValues("group").Set(float64(group))
}

// RecordSubscriptionRemoval records why a subscription went away.
func RecordSubscriptionRemoval(reason string) {
	SubscriptionRemovals.WithLabelValues(reason).Inc()
}

// RecordHTTPRequest records one served HTTP request.
func RecordHTTPRequest(method, endpoint string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackInFlight adjusts the in-flight HTTP request gauge.
func TrackInFlight(inc bool) {
	if inc {
		HTTPRequestsInFlight.Inc()
	} else {
		HTTPRequestsInFlight.Dec()
	}
}

// TrackWSConnection adjusts the active WebSocket connection gauge.
func TrackWSConnection(inc bool) {
	if inc {
		WSConnectionsActive.Inc()
	} else {
		WSConnectionsActive.Dec()
	}
}

// RecordWSMessageSent records one WebSocket frame pushed to a client.
func RecordWSMessageSent(msgType string) {
	WSMessagesSent.WithLabelValues(msgType).Inc()
}

// RecordWSMessageReceived records one WebSocket frame read from a client.
func RecordWSMessageReceived(msgType string) {
	WSMessagesReceived.WithLabelValues(msgType).Inc()
}

// TrackMeasurementRun adjusts the running measurement gauge.
func TrackMeasurementRun(inc bool) {
	if inc {
		MeasurementRunsActive.Inc()
	} else {
		MeasurementRunsActive.Dec()
	}
}

// RecordMeasurementBatch records one device batch append by a measurement
// worker.
func RecordMeasurementBatch(device string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	MeasurementBatches.WithLabelValues(device, result).Inc()
}

// RecordStatusCollection records one status collector cycle for a device.
func RecordStatusCollection(device, result string) {
	StatusCollections.WithLabelValues(device, result).Inc()
}

// RecordBridgePublish records one NATS republish outcome.
func RecordBridgePublish(result string) {
	BridgePublishes.WithLabelValues(result).Inc()
}

// UpdateBreakerState updates the state gauge for a named circuit breaker.
func UpdateBreakerState(name string, state int) {
	BreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordExport records one dataset export.
func RecordExport(duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	Exports.WithLabelValues(result).Inc()
	if err == nil {
		ExportDuration.Observe(duration.Seconds())
	}
}

// RecordAuthAttempt records one login attempt outcome.
func RecordAuthAttempt(result string) {
	AuthAttempts.WithLabelValues(result).Inc()
}
