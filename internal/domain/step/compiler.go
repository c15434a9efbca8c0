package step

import (
	"fmt"

	"github.com/cryonith/groundwork/internal/domain/target"
)

// Provider compiles part of a target descriptor into executable steps.
// Each provider handles one kind of resource (packages, files, cloud,
// mesh, and so on).
type Provider interface {
	// Name returns the provider's identifier (e.g., "packages", "systemd").
	Name() string

	// Compile transforms the target descriptor into a list of steps.
	// Cross-provider ordering is expressed through Step.DependsOn, never
	// through the order providers are registered.
	Compile(t *target.Descriptor) ([]Step, error)
}

// Compiler assembles providers into a validated Graph for one target.
type Compiler struct {
	providers []Provider
}

// NewCompiler creates a new Compiler.
func NewCompiler() *Compiler {
	return &Compiler{
		providers: make([]Provider, 0),
	}
}

// RegisterProvider adds a provider to the compiler.
func (c *Compiler) RegisterProvider(provider Provider) {
	c.providers = append(c.providers, provider)
}

// Providers returns all registered providers.
func (c *Compiler) Providers() []Provider {
	return c.providers
}

// Compile transforms a target descriptor into a validated Graph.
// It fails before any effect runs if a provider cannot compile, a step
// ID is duplicated, a dependency is missing, or the dependencies form a
// cycle.
func (c *Compiler) Compile(t *target.Descriptor) (*Graph, error) {
	graph := NewGraph()

	for _, provider := range c.providers {
		steps, err := provider.Compile(t)
		if err != nil {
			return nil, NewProviderFailedError(provider.Name(), err)
		}

		for _, s := range steps {
			if err := graph.Add(s); err != nil {
				return nil, fmt.Errorf("provider %q: %w", provider.Name(), err)
			}
		}
	}

	if err := graph.Validate(); err != nil {
		return nil, err
	}

	if _, err := graph.TopologicalSort(); err != nil {
		return nil, err
	}

	return graph, nil
}
