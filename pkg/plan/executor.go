package plan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"agentdex/pkg/logger"
	"agentdex/pkg/rebalance"
)

const (
	DefaultCheckInterval = 5 * time.Minute  // Check drift every 5 minutes
	MinCheckInterval     = 30 * time.Second // Minimum interval to avoid rate limiting
	PlanReloadInterval   = 60 * time.Second // Check for plan changes every 60 seconds
)

// Executor manages the execution of rebalance plans
type Executor struct {
	manager        *Manager
	drift          *DriftChecker
	rebalancer     *rebalance.Rebalancer
	checkInterval  time.Duration
	reloadInterval time.Duration
	running        bool
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	mu             sync.RWMutex
	activePlans    map[string]*planExecutor
}

// planExecutor manages execution for a single plan
type planExecutor struct {
	name     string
	interval time.Duration
	stopChan chan struct{}
}

// NewExecutor creates a new executor instance
func NewExecutor(manager *Manager, client rebalance.SwapClient, rebalancer *rebalance.Rebalancer) *Executor {
	return &Executor{
		manager:        manager,
		drift:          NewDriftChecker(client),
		rebalancer:     rebalancer,
		checkInterval:  DefaultCheckInterval,
		reloadInterval: PlanReloadInterval,
		activePlans:    make(map[string]*planExecutor),
	}
}

// SetCheckInterval sets the default drift check interval
func (e *Executor) SetCheckInterval(interval time.Duration) {
	if interval < MinCheckInterval {
		interval = MinCheckInterval
	}
	e.checkInterval = interval
}

// SetReloadInterval sets how often the storage file is re-read
func (e *Executor) SetReloadInterval(interval time.Duration) {
	if interval > 0 {
		e.reloadInterval = interval
	}
}

// Start begins monitoring all active plans until ctx is cancelled or Stop
// is called
func (e *Executor) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return fmt.Errorf("executor is already running")
	}

	e.running = true
	e.ctx, e.cancel = context.WithCancel(ctx)

	for _, plan := range e.manager.GetActivePlans() {
		e.startPlanExecutor(plan)
	}

	e.wg.Add(1)
	go e.monitorPlanChanges()

	logger.Info("Executor started", zap.Int("active_plans", len(e.activePlans)))
	return nil
}

// Stop halts all plan executions and waits for them to return
func (e *Executor) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}

	for _, pe := range e.activePlans {
		close(pe.stopChan)
	}
	e.activePlans = make(map[string]*planExecutor)
	e.running = false
	e.cancel()
	e.mu.Unlock()

	e.wg.Wait()
	logger.Info("Executor stopped")
}

// startPlanExecutor starts a goroutine monitoring one plan (must be called with lock held)
func (e *Executor) startPlanExecutor(plan *Plan) {
	interval := time.Duration(plan.Interval)
	if interval == 0 {
		interval = e.checkInterval
	}
	if interval < MinCheckInterval {
		interval = MinCheckInterval
	}

	pe := &planExecutor{
		name:     plan.Name,
		interval: interval,
		stopChan: make(chan struct{}),
	}
	e.activePlans[plan.Name] = pe

	e.wg.Add(1)
	go e.monitorPlan(pe)
}

// monitorPlan checks a plan on every tick until it is stopped
func (e *Executor) monitorPlan(pe *planExecutor) {
	defer e.wg.Done()

	ticker := time.NewTicker(pe.interval)
	defer ticker.Stop()

	log := logger.With(zap.String("plan", pe.name))
	log.Info("Started monitoring plan", zap.Duration("interval", pe.interval))

	for {
		select {
		case <-pe.stopChan:
			log.Info("Stopped monitoring plan")
			return
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.CheckAndRebalance(e.ctx, pe.name); err != nil {
				log.Error("Plan check failed", zap.Error(err))
			}
		}
	}
}

// CheckAndRebalance runs one drift check for a plan and rebalances when the
// drift reaches its threshold. The recorded run is returned, or nil when
// nothing was done.
func (e *Executor) CheckAndRebalance(ctx context.Context, planName string) (*Run, error) {
	plan, err := e.manager.GetPlan(planName)
	if err != nil {
		return nil, err
	}

	should, info, err := e.drift.ShouldRebalance(ctx, plan)
	if err != nil {
		return nil, err
	}
	if !should {
		if info != nil {
			logger.Debug("Plan within drift threshold",
				zap.String("plan", planName),
				zap.Float64("max_deviation", info.MaxDeviation),
				zap.Float64("threshold", plan.DriftThreshold))
		}
		return nil, nil
	}

	logger.Info("Drift threshold reached, rebalancing",
		zap.String("plan", planName),
		zap.Float64("max_deviation", info.MaxDeviation),
		zap.Float64("threshold", plan.DriftThreshold))

	legs := e.rebalancer.Plan(info.Snapshot, plan.Targets)
	results, rebalanceErr := e.rebalancer.Execute(ctx, plan.Wallet, legs)

	run := Run{
		Timestamp:    time.Now(),
		MaxDeviation: info.MaxDeviation,
		Legs:         len(legs),
		Results:      results,
	}
	if rebalanceErr != nil {
		run.Error = rebalanceErr.Error()
	}

	id, err := e.manager.AddRun(planName, run)
	if err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}

	recorded, err := e.manager.GetRunHistory(planName)
	if err != nil || len(recorded) == 0 {
		return nil, err
	}
	last := recorded[len(recorded)-1]
	logger.Info("Rebalance run recorded",
		zap.String("plan", planName),
		zap.String("run_id", id),
		zap.String("status", last.Status()),
		zap.Int("succeeded", last.Succeeded),
		zap.Int("failed", last.Failed))

	return &last, nil
}

// GetRunningPlans returns a list of plans currently being executed
func (e *Executor) GetRunningPlans() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	plans := make([]string, 0, len(e.activePlans))
	for name := range e.activePlans {
		plans = append(plans, name)
	}

	return plans
}

// IsRunning returns true if the executor is running
func (e *Executor) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// IsPlanRunning returns true if a specific plan is being executed
func (e *Executor) IsPlanRunning(planName string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, exists := e.activePlans[planName]
	return exists
}

// monitorPlanChanges periodically checks for new/stopped/started plans
func (e *Executor) monitorPlanChanges() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.reloadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.reloadPlans()
		}
	}
}

// reloadPlans re-reads storage and adjusts running plan goroutines
func (e *Executor) reloadPlans() {
	if err := e.manager.Reload(); err != nil {
		logger.Error("Failed to reload plans", zap.Error(err))
		return
	}

	activeMap := make(map[string]*Plan)
	for _, plan := range e.manager.GetActivePlans() {
		activeMap[plan.Name] = plan
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}

	for name, plan := range activeMap {
		if _, isRunning := e.activePlans[name]; !isRunning {
			logger.Info("Detected new active plan",
				zap.String("plan", name),
				zap.String("targets", FormatTargets(plan.Targets)))
			e.startPlanExecutor(plan)
		}
	}

	for name, pe := range e.activePlans {
		if _, shouldRun := activeMap[name]; !shouldRun {
			logger.Info("Plan stopped or deleted", zap.String("plan", name))
			close(pe.stopChan)
			delete(e.activePlans, name)
		}
	}
}
