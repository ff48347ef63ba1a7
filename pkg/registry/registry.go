package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/muster/pkg/domain"
)

// Registry maps node type and operation type names to their descriptors.
// It is constructed explicitly and passed down; there are no process-wide registries.
type Registry struct {
	mu         sync.RWMutex
	nodes      map[string]*domain.NodeType
	operations map[string]*domain.OperationType
}

// NewRegistry creates a registry holding the built-in operation types.
func NewRegistry() *Registry {
	r := &Registry{
		nodes:      make(map[string]*domain.NodeType),
		operations: make(map[string]*domain.OperationType),
	}
	for _, op := range domain.BuiltinOperations() {
		r.operations[op.Name] = op
	}
	return r
}

// RegisterNodeType adds a node type. A name that is already taken fails with
// an error of kind domain.ErrDuplicateType.
func (r *Registry) RegisterNodeType(t *domain.NodeType) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("node type must have a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.nodes[t.Name]; exists {
		return domain.NewDuplicateTypeError(t.Name)
	}
	r.nodes[t.Name] = t
	return nil
}

// MustRegister registers every type and panics on a duplicate.
func (r *Registry) MustRegister(types ...*domain.NodeType) {
	for _, t := range types {
		if err := r.RegisterNodeType(t); err != nil {
			panic(err)
		}
	}
}

// RegisterOperationType adds an operation type. Re-registering a name fails.
func (r *Registry) RegisterOperationType(t *domain.OperationType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.operations[t.Name]; exists {
		return fmt.Errorf("operation type %q: %w", t.Name, domain.ErrDuplicateType)
	}
	r.operations[t.Name] = t
	return nil
}

// NodeType looks up a node type by name.
func (r *Registry) NodeType(name string) (*domain.NodeType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.nodes[name]
	return t, ok
}

// OperationType looks up an operation type by name.
func (r *Registry) OperationType(name string) (*domain.OperationType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.operations[name]
	return t, ok
}

// Names returns the registered node type names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.nodes))
	for name := range r.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OperationNames returns the registered operation type names, sorted.
func (r *Registry) OperationNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.operations))
	for name := range r.operations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
