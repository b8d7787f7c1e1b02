package hooks

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"quickpay-bridge/internal/logger"

	"go.uber.org/zap"
)

// Registry maps integration names, as used in callback URLs, to their
// implementations.
type Registry struct {
	mu           sync.RWMutex
	integrations map[string]Integration
}

func NewRegistry() *Registry {
	return &Registry{integrations: map[string]Integration{}}
}

func (r *Registry) Register(name string, integration Integration) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	if integration == nil {
		return fmt.Errorf("register %q: nil integration", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.integrations[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateIntegration, name)
	}
	r.integrations[name] = integration

	logger.L().Info("QuickPay integration registered", zap.String("integration", name))
	return nil
}

// MustRegister is Register for startup wiring, where a failure is a bug.
func (r *Registry) MustRegister(name string, integration Integration) {
	if err := r.Register(name, integration); err != nil {
		panic(err)
	}
}

func (r *Registry) Lookup(name string) (Integration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	integration, ok := r.integrations[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIntegrationNotFound, name)
	}
	return integration, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.integrations))
	for name := range r.integrations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
