package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// EngineMetrics is returned by GET /v1/metrics/engine: a snapshot of
// the calculation engine's cumulative counters.
type EngineMetrics struct {
	CalculationsTotal    int64   `json:"calculationsTotal"`
	RevertsTotal         int64   `json:"revertsTotal"`
	VariableUpdatesTotal int64   `json:"variableUpdatesTotal"`
	ConflictsTotal       int64   `json:"conflictsTotal"`
	ErrorRate            float64 `json:"errorRate"`
	CacheHitRate         float64 `json:"cacheHitRate"`
	Period               string  `json:"period"`
}
