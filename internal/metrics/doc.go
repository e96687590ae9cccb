// CryoDAQ - Laboratory Instrument Control and Data Acquisition
// Copyright 2026 The CryoDAQ Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cryodaq/cryodaq

/*
Package metrics provides Prometheus metrics collection and export.

All collectors register on the default registry via promauto at package
load; the data server exposes them at /metrics in Prometheus text format.

# Available Metrics

Store metrics:
  - store_appends_total: Append operations (counter)
    Labels: result (created, extended, error)
  - store_append_rows_total: Rows written (counter)
  - store_append_duration_seconds: Append latency (histogram)
  - store_reads_total: Read operations (counter)
    Labels: operation (node, values, keys, attrs), result

Notification metrics:
  - notify_queue_depth: Events waiting for dispatch (gauge)
  - notify_events_total: Events dispatched (counter)
    Labels: kind (created, data)
  - notify_deliveries_total: Subscriber deliveries (counter)
    Labels: result (ok, error, unreachable)
  - subscriptions_active: Live subscriptions (gauge)
    Labels: kind (dataset, group)
  - subscription_removals_total: Removals (counter)
    Labels: reason (explicit, unreachable, shutdown)

HTTP and WebSocket metrics:
  - http_requests_total, http_request_duration_seconds,
    http_requests_in_flight
  - websocket_connections_active, websocket_messages_sent_total,
    websocket_messages_received_total

Measurement metrics:
  - measurement_runs_active: Running measurements (gauge)
  - measurement_batches_total: Device batches appended (counter)
    Labels: device, result
  - status_collections_total: Status collector cycles (counter)
    Labels: device, result (ok, error, resent)

Bridge, breaker, export, and auth metrics:
  - bridge_publishes_total: NATS republish outcomes (counter)
  - circuit_breaker_state: 0=closed, 1=half-open, 2=open (gauge)
  - exports_total, export_duration_seconds
  - auth_attempts_total: Login outcomes (counter)

# Usage

	metrics.RecordAppend(created, batch.Rows, time.Since(start), err)
	metrics.UpdateNotifyQueueDepth(queue.Len())

Example PromQL:

	# Append throughput in rows per second
	rate(store_append_rows_total[1m])

	# p95 append latency
	histogram_quantile(0.95, rate(store_append_duration_seconds_bucket[5m]))

	# Subscribers lost to dead connections
	rate(subscription_removals_total{reason="unreachable"}[5m])

All recording functions are safe for concurrent use; label cardinality is
bounded (device names come from the instrument registry, endpoints from the
route table).
*/
package metrics
