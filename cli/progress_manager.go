package cli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pterm/pterm"
)

type progressSpinner interface {
	Stop() error
	Success(...any)
	Fail(...any)
}

type progressSpinnerFactory func(w io.Writer, text string) (progressSpinner, error)

var defaultSpinnerFactory progressSpinnerFactory = func(w io.Writer, text string) (progressSpinner, error) {
	spinner, err := pterm.DefaultSpinner.
		WithRemoveWhenDone(false).
		WithWriter(w).
		WithText(text).
		Start()
	if err != nil {
		return nil, err
	}
	return spinner, nil
}

// StepStatus represents the state of a progress step.
type StepStatus int

const (
	// StepPending indicates a step has not yet started.
	StepPending StepStatus = iota
	// StepRunning indicates a step is currently in progress.
	StepRunning
	// StepCompleted indicates a step finished successfully.
	StepCompleted
	// StepFailed indicates a step encountered an error.
	StepFailed
)

// Step is one stage of a long running command.
type Step struct {
	ID        string
	Message   string
	Status    StepStatus
	startTime time.Time
}

// ProgressManager shows one spinner per running step. A disabled manager only tracks status.
type ProgressManager struct {
	w              io.Writer
	steps          map[string]*Step
	current        progressSpinner
	spinnerFactory progressSpinnerFactory
	disabled       bool
	mu             sync.Mutex
}

// NewProgressManager registers steps up front. Output goes to w when enabled.
func NewProgressManager(w io.Writer, enabled bool, steps ...*Step) *ProgressManager {
	pm := &ProgressManager{
		w:              w,
		steps:          make(map[string]*Step, len(steps)),
		spinnerFactory: defaultSpinnerFactory,
		disabled:       !enabled,
	}
	for _, s := range steps {
		pm.steps[s.ID] = s
	}
	return pm
}

func (pm *ProgressManager) step(id string) (*Step, error) {
	s, ok := pm.steps[id]
	if !ok {
		return nil, fmt.Errorf("step %q not found", id)
	}
	return s, nil
}

// Start marks the step running and starts its spinner, stopping any other.
func (pm *ProgressManager) Start(id string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	s, err := pm.step(id)
	if err != nil {
		return err
	}
	s.Status = StepRunning
	s.startTime = time.Now()
	if pm.disabled {
		return nil
	}
	pm.stopLocked()
	spinner, err := pm.spinnerFactory(pm.w, s.Message)
	if err != nil {
		return fmt.Errorf("failed to start spinner: %w", err)
	}
	pm.current = spinner
	return nil
}

// Complete marks the step done.
func (pm *ProgressManager) Complete(id string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	s, err := pm.step(id)
	if err != nil {
		return err
	}
	s.Status = StepCompleted
	if pm.current != nil {
		pm.current.Success(s.Message + elapsed(s))
		pm.current = nil
	}
	return nil
}

// Fail marks the step failed with cause.
func (pm *ProgressManager) Fail(id string, cause error) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	s, err := pm.step(id)
	if err != nil {
		return err
	}
	s.Status = StepFailed
	if pm.current != nil {
		pm.current.Fail(fmt.Sprintf("%s: %v", s.Message, cause))
		pm.current = nil
	}
	return nil
}

// Run wraps fn in Start and Complete or Fail, returning fn's error.
func (pm *ProgressManager) Run(id string, fn func() error) error {
	if err := pm.Start(id); err != nil {
		return err
	}
	if err := fn(); err != nil {
		//nolint:errcheck
		pm.Fail(id, err)
		return err
	}
	return pm.Complete(id)
}

// Stop halts any running spinner.
func (pm *ProgressManager) Stop() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.stopLocked()
}

func (pm *ProgressManager) stopLocked() {
	if pm.current != nil {
		//nolint:errcheck
		pm.current.Stop()
		pm.current = nil
	}
}

func elapsed(s *Step) string {
	if s.startTime.IsZero() {
		return ""
	}
	return fmt.Sprintf(" (%s)", time.Since(s.startTime).Round(time.Millisecond))
}
