package plan

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"agentdex/pkg/types"
)

// Manager provides high-level operations for rebalance plans
type Manager struct {
	storage *Storage
}

// NewManager creates a new plan manager
func NewManager(storagePath string) (*Manager, error) {
	storage, err := NewStorage(storagePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create storage")
	}

	return &Manager{
		storage: storage,
	}, nil
}

// CreatePlan creates a new paused plan with validation. A zero drift
// threshold means DefaultDriftThreshold.
func (m *Manager) CreatePlan(
	name, description, wallet string,
	targets []types.Allocation,
	driftThreshold float64,
	interval time.Duration,
) (*Plan, error) {
	if m.storage.Exists(name) {
		return nil, errors.Wrapf(ErrPlanExists, "plan '%s'", name)
	}

	if driftThreshold == 0 {
		driftThreshold = DefaultDriftThreshold
	}
	if interval != 0 && interval < MinCheckInterval {
		return nil, fmt.Errorf("interval must be at least %s", MinCheckInterval)
	}

	now := time.Now()

	plan := &Plan{
		Name:           name,
		Description:    description,
		Created:        now,
		LastUpdated:    now,
		Wallet:         wallet,
		Targets:        targets,
		DriftThreshold: driftThreshold,
		Interval:       Duration(interval),
		Status:         StatusPaused, // Start in paused state
		Runs:           []Run{},
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}

	if err := m.storage.Create(plan); err != nil {
		return nil, err
	}

	return clonePlan(plan), nil
}

// GetPlan retrieves a plan by name
func (m *Manager) GetPlan(name string) (*Plan, error) {
	return m.storage.Get(name)
}

// ListPlans returns all plans
func (m *Manager) ListPlans() []*Plan {
	return m.storage.List()
}

// ListPlansByStatus returns plans filtered by status
func (m *Manager) ListPlansByStatus(status PlanStatus) []*Plan {
	return m.storage.ListByStatus(status)
}

// GetActivePlans returns all active plans
func (m *Manager) GetActivePlans() []*Plan {
	return m.storage.ListByStatus(StatusActive)
}

// UpdatePlan validates and stores an existing plan
func (m *Manager) UpdatePlan(plan *Plan) error {
	if err := plan.Validate(); err != nil {
		return err
	}
	plan.LastUpdated = time.Now()
	return m.storage.Update(plan)
}

// DeletePlan removes a plan
func (m *Manager) DeletePlan(name string) error {
	plan, err := m.storage.Get(name)
	if err != nil {
		return err
	}

	if plan.IsActive() {
		return fmt.Errorf("cannot delete active plan '%s', stop it first", name)
	}

	return m.storage.Delete(name)
}

// StartPlan activates a plan for execution
func (m *Manager) StartPlan(name string) error {
	plan, err := m.storage.Get(name)
	if err != nil {
		return err
	}

	if plan.IsActive() {
		return fmt.Errorf("plan '%s' is already active", name)
	}

	plan.Status = StatusActive
	plan.LastUpdated = time.Now()

	return m.storage.Update(plan)
}

// StopPlan pauses a running plan
func (m *Manager) StopPlan(name string) error {
	plan, err := m.storage.Get(name)
	if err != nil {
		return err
	}

	if !plan.IsActive() {
		return fmt.Errorf("plan '%s' is not active", name)
	}

	plan.Status = StatusPaused
	plan.LastUpdated = time.Now()

	return m.storage.Update(plan)
}

// AddRun records a rebalance run and returns its ID. Only the latest
// MaxRunHistory runs are kept.
func (m *Manager) AddRun(name string, run Run) (string, error) {
	plan, err := m.storage.Get(name)
	if err != nil {
		return "", err
	}

	run.ID = uuid.New().String()
	if run.Timestamp.IsZero() {
		run.Timestamp = time.Now()
	}
	if run.Legs < len(run.Results) {
		run.Legs = len(run.Results)
	}
	run.Succeeded, run.Failed = 0, 0
	for _, result := range run.Results {
		if result.Success {
			run.Succeeded++
		} else {
			run.Failed++
		}
	}

	plan.Runs = append(plan.Runs, run)
	if len(plan.Runs) > MaxRunHistory {
		plan.Runs = plan.Runs[len(plan.Runs)-MaxRunHistory:]
	}
	plan.RunCount++
	plan.LastUpdated = time.Now()

	if err := m.storage.Update(plan); err != nil {
		return "", err
	}
	return run.ID, nil
}

// GetRunHistory returns the stored runs of a plan, oldest first
func (m *Manager) GetRunHistory(name string) ([]Run, error) {
	plan, err := m.storage.Get(name)
	if err != nil {
		return nil, err
	}

	return plan.Runs, nil
}

// Reload picks up changes other processes made to the storage file
func (m *Manager) Reload() error {
	return m.storage.Reload()
}

// GetStorage returns the storage instance
func (m *Manager) GetStorage() *Storage {
	return m.storage
}
