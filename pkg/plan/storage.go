package plan

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"agentdex/pkg/types"
)

const (
	DefaultStorageFileName = ".agentdex-plans.json"
)

var (
	ErrPlanNotFound = errors.New("plan not found")
	ErrPlanExists   = errors.New("plan already exists")
)

// Storage handles persistence of rebalance plans
type Storage struct {
	filePath string
	mu       sync.RWMutex
	plans    map[string]*Plan
}

// PlanStorage represents the JSON structure for storage
type PlanStorage struct {
	Plans map[string]*Plan `json:"plans"`
}

// DefaultStoragePath returns ~/.agentdex-plans.json
func DefaultStoragePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, DefaultStorageFileName), nil
}

// NewStorage creates a new storage instance, loading the file if it exists
func NewStorage(filePath string) (*Storage, error) {
	if filePath == "" {
		var err error
		if filePath, err = DefaultStoragePath(); err != nil {
			return nil, err
		}
	}

	storage := &Storage{
		filePath: filePath,
		plans:    make(map[string]*Plan),
	}

	if err := storage.Reload(); err != nil {
		return nil, err
	}

	return storage, nil
}

// Reload re-reads the storage file so changes made by other processes
// become visible. A missing file means no plans.
func (s *Storage) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "failed to load plans")
	}

	var planStorage PlanStorage
	if err := json.Unmarshal(data, &planStorage); err != nil {
		return errors.Wrapf(err, "failed to unmarshal plans from %s", s.filePath)
	}

	s.plans = planStorage.Plans
	if s.plans == nil {
		s.plans = make(map[string]*Plan)
	}

	return nil
}

// saveLocked writes plans to the storage file. The caller holds mu.
func (s *Storage) saveLocked() error {
	data, err := json.MarshalIndent(PlanStorage{Plans: s.plans}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal plans")
	}

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return errors.Wrap(err, "failed to create directory")
	}

	// Write to temporary file first, then rename for atomic write
	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return errors.Wrap(err, "failed to write plans")
	}
	if err := os.Rename(tempFile, s.filePath); err != nil {
		return errors.Wrap(err, "failed to rename temp file")
	}

	return nil
}

// Create adds a new plan to storage
func (s *Storage) Create(plan *Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.plans[plan.Name]; exists {
		return errors.Wrapf(ErrPlanExists, "plan '%s'", plan.Name)
	}

	s.plans[plan.Name] = clonePlan(plan)
	return s.saveLocked()
}

// Get retrieves a copy of a plan by name
func (s *Storage) Get(name string) (*Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plan, exists := s.plans[name]
	if !exists {
		return nil, errors.Wrapf(ErrPlanNotFound, "plan '%s'", name)
	}

	return clonePlan(plan), nil
}

// Update replaces an existing plan
func (s *Storage) Update(plan *Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.plans[plan.Name]; !exists {
		return errors.Wrapf(ErrPlanNotFound, "plan '%s'", plan.Name)
	}

	s.plans[plan.Name] = clonePlan(plan)
	return s.saveLocked()
}

// Delete removes a plan from storage
func (s *Storage) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.plans[name]; !exists {
		return errors.Wrapf(ErrPlanNotFound, "plan '%s'", name)
	}

	delete(s.plans, name)
	return s.saveLocked()
}

// List returns all plans sorted by name
func (s *Storage) List() []*Plan {
	return s.filter(func(*Plan) bool { return true })
}

// ListByStatus returns plans filtered by status
func (s *Storage) ListByStatus(status PlanStatus) []*Plan {
	return s.filter(func(p *Plan) bool { return p.Status == status })
}

func (s *Storage) filter(keep func(*Plan) bool) []*Plan {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plans := make([]*Plan, 0, len(s.plans))
	for _, plan := range s.plans {
		if keep(plan) {
			plans = append(plans, clonePlan(plan))
		}
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].Name < plans[j].Name })

	return plans
}

// Exists checks if a plan with the given name exists
func (s *Storage) Exists(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.plans[name]
	return exists
}

// Count returns the total number of plans
func (s *Storage) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.plans)
}

// GetFilePath returns the storage file path
func (s *Storage) GetFilePath() string {
	return s.filePath
}

// clonePlan deep-copies a plan; the store never shares memory with callers
func clonePlan(p *Plan) *Plan {
	c := *p
	c.Targets = append(c.Targets[:0:0], p.Targets...)
	if p.Runs == nil {
		return &c
	}
	c.Runs = make([]Run, len(p.Runs))
	for i, run := range p.Runs {
		c.Runs[i] = run
		if run.Results != nil {
			c.Runs[i].Results = make([]*types.SwapResult, len(run.Results))
			for j, result := range run.Results {
				if result != nil {
					copied := *result
					c.Runs[i].Results[j] = &copied
				}
			}
		}
	}
	return &c
}
