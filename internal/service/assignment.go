package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Strob0t/devteam/internal/domain"
	"github.com/Strob0t/devteam/internal/domain/assignment"
	"github.com/Strob0t/devteam/internal/port/llm"
)

// assignmentFile is the shape of the YAML override file.
type assignmentFile struct {
	Assignments []assignment.Assignment `yaml:"assignments"`
}

// AssignmentRegistry maps agent types to their preferred provider chain.
// It starts from the curated table and accepts runtime overrides.
type AssignmentRegistry struct {
	mu          sync.RWMutex
	assignments map[string]assignment.Assignment
	initialized bool
	catalog     llm.Catalog
}

// NewAssignmentRegistry creates an empty registry. Call Initialize before use.
func NewAssignmentRegistry(catalog llm.Catalog) *AssignmentRegistry {
	return &AssignmentRegistry{
		assignments: make(map[string]assignment.Assignment),
		catalog:     catalog,
	}
}

// Initialize loads the curated table. Calling it again is a no-op.
func (r *AssignmentRegistry) Initialize() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.initialized {
		return
	}
	for agent, a := range assignment.Curated() {
		r.assignments[agent] = a
	}
	r.initialized = true
	slog.Info("assignment registry initialized", "agents", len(r.assignments))
}

// LoadFile merges assignments from a YAML file over the current table.
// The whole file is rejected if any entry is malformed.
func (r *AssignmentRegistry) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from operator config
	if err != nil {
		return 0, fmt.Errorf("read assignments %s: %w", path, err)
	}
	var f assignmentFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return 0, fmt.Errorf("parse assignments %s: %w", path, err)
	}
	for i := range f.Assignments {
		a := &f.Assignments[i]
		if a.AgentType == "" {
			return 0, fmt.Errorf("assignments %s entry %d: agent_type is required: %w", path, i, domain.ErrValidation)
		}
		if err := a.Validate(); err != nil {
			return 0, fmt.Errorf("assignments %s entry %s: %w: %w", path, a.AgentType, domain.ErrValidation, err)
		}
	}

	r.mu.Lock()
	for _, a := range f.Assignments {
		r.assignments[a.AgentType] = a.Clone()
	}
	r.mu.Unlock()

	slog.Info("assignment overrides loaded", "path", path, "count", len(f.Assignments))
	return len(f.Assignments), nil
}

// ForAgent returns the assignment for agentType, or the default assignment
// for unknown agent types.
func (r *AssignmentRegistry) ForAgent(agentType string) assignment.Assignment {
	r.mu.RLock()
	a, ok := r.assignments[agentType]
	r.mu.RUnlock()
	if !ok {
		return assignment.Default(agentType)
	}
	return a.Clone()
}

// Update replaces the assignment of agentType after checking that its
// primary provider exists in the provider catalog.
func (r *AssignmentRegistry) Update(ctx context.Context, agentType string, a assignment.Assignment) error {
	a.AgentType = agentType
	if agentType == "" {
		return fmt.Errorf("agent_type is required: %w", domain.ErrValidation)
	}
	if err := a.Validate(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	if _, err := r.catalog.GetProvider(ctx, a.PrimaryProvider); err != nil {
		if errors.Is(err, llm.ErrProviderNotFound) {
			return fmt.Errorf("provider %q: %w", a.PrimaryProvider, domain.ErrInvalidProvider)
		}
		return fmt.Errorf("provider catalog: %w: %w", domain.ErrUnavailable, err)
	}

	r.mu.Lock()
	r.assignments[agentType] = a.Clone()
	r.mu.Unlock()

	slog.Info("assignment updated", "agent_type", agentType, "primary", a.PrimaryProvider+"/"+a.PrimaryModel)
	return nil
}

// OptimalProviderForTask returns the specialized target for taskType when
// the agent has one, else its primary target.
func (r *AssignmentRegistry) OptimalProviderForTask(agentType, taskType string) assignment.Target {
	a := r.ForAgent(agentType)
	if taskType != "" {
		if t, ok := a.SpecializedConfigs[taskType]; ok {
			return t
		}
	}
	return a.Primary()
}

// FallbacksForAgent returns the agent's fallback chain by ascending priority.
func (r *AssignmentRegistry) FallbacksForAgent(agentType string) []assignment.Fallback {
	a := r.ForAgent(agentType)
	return a.SortedFallbacks()
}

// List returns every configured assignment ordered by agent type.
func (r *AssignmentRegistry) List() []assignment.Assignment {
	r.mu.RLock()
	out := make([]assignment.Assignment, 0, len(r.assignments))
	for _, a := range r.assignments {
		out = append(out, a.Clone())
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].AgentType < out[j].AgentType })
	return out
}
