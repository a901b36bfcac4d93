package action

import (
	"fmt"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

// Registry is the table of registered actions keyed by name.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]Action
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		actions: make(map[string]Action),
	}
}

// Register adds an action. Names must be unique and non-empty.
func (r *Registry) Register(a Action) error {
	name := strings.TrimSpace(a.Name())
	if name == "" {
		return fmt.Errorf("action name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.actions[name]; exists {
		return fmt.Errorf("action already registered: %s", name)
	}
	r.actions[name] = a
	r.order = append(r.order, name)
	return nil
}

// MustRegister registers every action and panics on the first conflict.
// Intended for static wiring at startup.
func (r *Registry) MustRegister(actions ...Action) {
	for _, a := range actions {
		if err := r.Register(a); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the action registered under name if it is reachable from
// scope.
func (r *Registry) Lookup(name string, scope Scope) (Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.actions[name]
	if !ok || !a.Scope().Allows(scope) {
		return nil, false
	}
	return a, true
}

// Names returns the registered names reachable from scope in registration
// order.
func (r *Registry) Names(scope Scope) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.order))
	for _, name := range r.order {
		if r.actions[name].Scope().Allows(scope) {
			names = append(names, name)
		}
	}
	return names
}

// Tools renders the actions reachable from scope as OpenAI function tools.
func (r *Registry) Tools(scope Scope) []openai.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]openai.Tool, 0, len(r.order))
	for _, name := range r.order {
		a := r.actions[name]
		if !a.Scope().Allows(scope) {
			continue
		}
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        a.Name(),
				Description: a.Description(),
				Strict:      true,
				Parameters:  a.Schema(),
			},
		})
	}
	return tools
}
