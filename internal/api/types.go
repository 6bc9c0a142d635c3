package api

// QueryIDHeader carries the gateway query id on every query response.
const QueryIDHeader = "X-Query-ID"

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status           string   `json:"status"`
	Version          string   `json:"version,omitempty"`
	UptimeSeconds    int64    `json:"uptime_seconds"`
	Tasks            []string `json:"tasks"`
	SchedulerPending int      `json:"scheduler_pending"`
	SchedulerActive  int      `json:"scheduler_active"`
}
