package agents

import (
	"sync"

	"calliope/internal/adapters/ai"
	"calliope/internal/domain/generation"
	"calliope/pkg/errors"
)

// Registry holds the executor for each agent type.
type Registry struct {
	executors map[AgentType]Executor
	mu        sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[AgentType]Executor),
	}
}

// Register adds an executor to the registry.
func (r *Registry) Register(executor Executor) error {
	if executor == nil {
		return errors.Wrap(errors.ErrInvalidInput, "executor is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.executors[executor.Type()]; exists {
		return errors.Wrapf(errors.ErrAlreadyExists, "agent %s already registered", executor.Type())
	}

	r.executors[executor.Type()] = executor
	return nil
}

// Get returns the executor for an agent type.
func (r *Registry) Get(agentType AgentType) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	executor, ok := r.executors[agentType]
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnknownAgent, "agent %s not registered", agentType)
	}

	return executor, nil
}

// ForStep resolves the executor that runs a pipeline step.
func (r *Registry) ForStep(step generation.Step) (Executor, error) {
	agentType, ok := StepAgent[step]
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnknownAgent, "no agent mapped for step %s", step)
	}
	return r.Get(agentType)
}

// BuildRegistry wires the default agent set against the provider registry.
// Agents whose provider is not configured are skipped.
func BuildRegistry(providers *ai.Registry) (*Registry, error) {
	registry := NewRegistry()

	for agentType, assignment := range DefaultAssignments {
		client, err := providers.Get(assignment.Provider)
		if err != nil {
			continue
		}

		var executor Executor
		switch agentType {
		case AgentImageGeneration, AgentTextOverlay:
			executor = NewImageAgent(agentType, assignment, client)
		case AgentVideoGeneration:
			executor = NewVideoAgent(agentType, assignment, client)
		default:
			executor = NewTextAgent(agentType, assignment, client)
		}

		if err := registry.Register(executor); err != nil {
			return nil, err
		}
	}

	return registry, nil
}
