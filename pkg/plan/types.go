package plan

import (
	"encoding/json"
	"fmt"
	"time"

	"agentdex/pkg/parser"
	"agentdex/pkg/types"
)

// PlanStatus defines the current state of a rebalance plan
type PlanStatus string

const (
	StatusActive PlanStatus = "active" // Plan is monitored by the daemon
	StatusPaused PlanStatus = "paused" // Plan is kept but not monitored
)

const (
	DefaultDriftThreshold = 5.0
	MinDriftThreshold     = 1.0 // deviations below 1 point are never traded
	MaxRunHistory         = 100
)

// Duration is a time.Duration stored as a string such as "5m0s"
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Plan is a wallet's target allocation, kept in balance by the daemon
type Plan struct {
	// Identity
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Created     time.Time `json:"created"`
	LastUpdated time.Time `json:"last_updated"`

	// Rebalance parameters
	Wallet         string             `json:"wallet"`
	Targets        []types.Allocation `json:"targets"`
	DriftThreshold float64            `json:"drift_threshold"` // percentage points
	Interval       Duration           `json:"interval"`        // 0 means the executor default

	// Execution tracking
	Status   PlanStatus `json:"status"`
	Runs     []Run      `json:"runs"`      // most recent MaxRunHistory runs
	RunCount int        `json:"run_count"` // all runs ever recorded
}

// Run is one rebalance pass made for a plan
type Run struct {
	ID           string              `json:"id"`
	Timestamp    time.Time           `json:"timestamp"`
	MaxDeviation float64             `json:"max_deviation"`
	Legs         int                 `json:"legs"`
	Succeeded    int                 `json:"succeeded"`
	Failed       int                 `json:"failed"`
	Results      []*types.SwapResult `json:"results,omitempty"`
	Error        string              `json:"error,omitempty"`
}

// Status summarises the outcome of a run
func (r Run) Status() string {
	switch {
	case r.Error != "":
		return "error"
	case r.Legs == 0:
		return "no-op"
	case r.Failed == 0:
		return "ok"
	case r.Succeeded == 0:
		return "failed"
	default:
		return "partial"
	}
}

// Validate checks if the plan has valid parameters
func (p *Plan) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("plan name is required")
	}
	if p.Wallet == "" {
		return fmt.Errorf("wallet is required")
	}
	if len(p.Targets) == 0 {
		return fmt.Errorf("at least one target allocation is required")
	}
	seen := make(map[string]bool, len(p.Targets))
	for _, t := range p.Targets {
		if t.Token == "" {
			return fmt.Errorf("target token is required")
		}
		if t.Percent < 0 || t.Percent > 100 {
			return fmt.Errorf("target for %s must be between 0 and 100", t.Token)
		}
		if seen[t.Token] {
			return fmt.Errorf("duplicate target for %s", t.Token)
		}
		seen[t.Token] = true
	}
	if total := parser.TotalPercent(p.Targets); total > 100.0001 {
		return fmt.Errorf("targets add up to %.2f%%, more than 100%%", total)
	}
	if p.DriftThreshold < MinDriftThreshold {
		return fmt.Errorf("drift threshold must be at least %.0f percentage point", MinDriftThreshold)
	}
	if p.Interval < 0 {
		return fmt.Errorf("interval cannot be negative")
	}
	if p.Status != StatusActive && p.Status != StatusPaused {
		return fmt.Errorf("status must be 'active' or 'paused'")
	}
	return nil
}

// IsActive returns true if the plan is currently active
func (p *Plan) IsActive() bool {
	return p.Status == StatusActive
}

// LastRun returns the most recent run, or nil
func (p *Plan) LastRun() *Run {
	if len(p.Runs) == 0 {
		return nil
	}
	return &p.Runs[len(p.Runs)-1]
}

// PlanSummary provides a simplified view of a plan for listing
type PlanSummary struct {
	Name           string     `json:"name"`
	Wallet         string     `json:"wallet"`
	Targets        string     `json:"targets"`
	DriftThreshold float64    `json:"drift_threshold"`
	Status         PlanStatus `json:"status"`
	RunCount       int        `json:"run_count"`
	LastRun        *time.Time `json:"last_run,omitempty"`
	Created        time.Time  `json:"created"`
}

// ToSummary converts a Plan to a PlanSummary
func (p *Plan) ToSummary() *PlanSummary {
	summary := &PlanSummary{
		Name:           p.Name,
		Wallet:         p.Wallet,
		Targets:        FormatTargets(p.Targets),
		DriftThreshold: p.DriftThreshold,
		Status:         p.Status,
		RunCount:       p.RunCount,
		Created:        p.Created,
	}
	if last := p.LastRun(); last != nil {
		ts := last.Timestamp
		summary.LastRun = &ts
	}
	return summary
}

// FormatTargets renders targets as "SOL=60,USDC=40"
func FormatTargets(targets []types.Allocation) string {
	out := ""
	for i, t := range targets {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("%s=%g", t.Token, t.Percent)
	}
	return out
}
