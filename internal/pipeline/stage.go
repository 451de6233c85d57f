package pipeline

import (
	"context"

	"calldesk/internal/store"
)

// Health reports a stage's readiness for processing.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy builds a passing health report.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy builds a failing health report with a reason.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}

// Handler describes the contract the pipeline manager needs from each stage.
type Handler interface {
	Prepare(context.Context, *store.Call) error
	Execute(context.Context, *store.Call) error
	HealthCheck(context.Context) Health
}
