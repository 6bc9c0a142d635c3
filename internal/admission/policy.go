// Package admission decides whether a caller may submit a query and how
// urgently it should be served.
package admission

import (
	"strings"

	"github.com/mattjoyce/synapse-gw/internal/config"
)

// Rejection reasons.
const (
	ReasonMissingCaller = "Missing caller identity"
	ReasonDenied        = "Caller is blacklisted"
	ReasonUnknown       = "Unrecognized caller"
	ReasonLowTrust      = "Caller trust below minimum"
)

// Policy is an immutable blacklist and trust table.
type Policy struct {
	allowUnknown bool
	defaultTrust float64
	minTrust     float64
	deny         map[string]struct{}
	trust        map[string]float64
}

// NewPolicy copies cfg into a Policy. Later changes to cfg have no effect.
func NewPolicy(cfg config.AdmissionConfig) *Policy {
	p := &Policy{
		allowUnknown: cfg.AllowUnknown,
		defaultTrust: cfg.DefaultTrust,
		minTrust:     cfg.MinTrust,
		deny:         make(map[string]struct{}, len(cfg.Deny)),
		trust:        make(map[string]float64, len(cfg.Callers)),
	}
	for _, c := range cfg.Deny {
		if c = strings.TrimSpace(c); c != "" {
			p.deny[c] = struct{}{}
		}
	}
	for c, score := range cfg.Callers {
		p.trust[strings.TrimSpace(c)] = score
	}
	return p
}

// Blacklist reports whether caller must be rejected, and why.
func (p *Policy) Blacklist(caller string) (bool, string) {
	caller = strings.TrimSpace(caller)
	if caller == "" {
		return true, ReasonMissingCaller
	}
	if _, ok := p.deny[caller]; ok {
		return true, ReasonDenied
	}
	score, known := p.trust[caller]
	if !known {
		if !p.allowUnknown {
			return true, ReasonUnknown
		}
		score = p.defaultTrust
	}
	if score < p.minTrust {
		return true, ReasonLowTrust
	}
	return false, ""
}

// Priority returns the caller's trust score. Unknown callers get the
// default trust.
func (p *Policy) Priority(caller string) float64 {
	if score, ok := p.trust[strings.TrimSpace(caller)]; ok {
		return score
	}
	return p.defaultTrust
}
