package interfaces

import "context"

// Engine drives one trading pass over a symbol universe and answers
// status queries from external readers.
type Engine interface {
	RunTick(ctx context.Context, symbols []string, interval string) (int, error)
	Status() EngineStatus
}

// EngineStatus is the read-only configuration and last-run view exposed
// to dashboards. Readers never mutate trading state.
type EngineStatus struct {
	Enabled       bool   `json:"enabled"`
	Mode          string `json:"mode"`
	Interval      string `json:"interval"`
	PeriodSeconds int    `json:"period_seconds"`
	LastRunAt     int64  `json:"last_run_at"`
	LastActions   int    `json:"last_actions"`
	LastError     string `json:"last_error,omitempty"`
}
