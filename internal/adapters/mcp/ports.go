// Package mcpadapter exposes policy retrieval and plan recommendations as
// Model Context Protocol tools.
package mcpadapter

import (
	"errors"

	"github.com/kirillkom/insurance-upsell/internal/core/ports"
)

var ErrMissingAssistant = errors.New("mcp: policy assistant is required")

// Ports aggregates the inbound services the tools call into.
type Ports struct {
	Assistant ports.PolicyAssistant
	// Recommender is optional; recommend_plans is not registered without it.
	Recommender ports.Recommender
}

func (p *Ports) Validate() error {
	if p == nil || p.Assistant == nil {
		return ErrMissingAssistant
	}
	return nil
}
