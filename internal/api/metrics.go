package api

import (
	"sync/atomic"
	"time"
)

// Metrics collects in-memory server metrics using atomic counters.
type Metrics struct {
	startTime    time.Time
	requests     atomic.Int64
	serverErrors atomic.Int64
	clientErrors atomic.Int64
	syncRequests atomic.Int64
	pushApplied  atomic.Int64
	pushDropped  atomic.Int64
	pushReplayed atomic.Int64
	pullRecords  atomic.Int64
}

// MetricsSnapshot is a point-in-time view of server metrics.
type MetricsSnapshot struct {
	UptimeSeconds float64 `json:"uptime_seconds"`
	Requests      int64   `json:"requests"`
	ServerErrors  int64   `json:"server_errors"`
	ClientErrors  int64   `json:"client_errors"`
	SyncRequests  int64   `json:"sync_requests"`
	PushApplied   int64   `json:"push_applied"`
	PushDropped   int64   `json:"push_dropped_stale"`
	PushReplayed  int64   `json:"push_replayed"`
	PullRecords   int64   `json:"pull_records_served"`
}

// NewMetrics creates a new Metrics instance with the current time as start.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordRequest increments the total request counter.
func (m *Metrics) RecordRequest() {
	m.requests.Add(1)
}

// RecordError increments the server error (5xx) counter.
func (m *Metrics) RecordError() {
	m.serverErrors.Add(1)
}

// RecordClientError increments the client error (4xx) counter.
func (m *Metrics) RecordClientError() {
	m.clientErrors.Add(1)
}

// RecordSyncRequest increments the sync round counter.
func (m *Metrics) RecordSyncRequest() {
	m.syncRequests.Add(1)
}

// RecordPushApplied adds n to the applied push mutation counter.
func (m *Metrics) RecordPushApplied(n int64) {
	m.pushApplied.Add(n)
}

// RecordPushDropped adds n to the stale-conflict drop counter.
func (m *Metrics) RecordPushDropped(n int64) {
	m.pushDropped.Add(n)
}

// RecordPushReplayed adds n to the idempotent replay counter.
func (m *Metrics) RecordPushReplayed(n int64) {
	m.pushReplayed.Add(n)
}

// RecordPullRecords adds n to the served pull record counter.
func (m *Metrics) RecordPullRecords(n int64) {
	m.pullRecords.Add(n)
}

// Snapshot returns a point-in-time copy of the metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		UptimeSeconds: time.Since(m.startTime).Seconds(),
		Requests:      m.requests.Load(),
		ServerErrors:  m.serverErrors.Load(),
		ClientErrors:  m.clientErrors.Load(),
		SyncRequests:  m.syncRequests.Load(),
		PushApplied:   m.pushApplied.Load(),
		PushDropped:   m.pushDropped.Load(),
		PushReplayed:  m.pushReplayed.Load(),
		PullRecords:   m.pullRecords.Load(),
	}
}
