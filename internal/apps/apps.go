// Package apps delivers cleaned transactions to budgeting applications.
package apps

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/cleanab-dev/cleanab/internal/model"
)

// App is one budgeting-app connection. Augment shapes a cleaned
// transaction into the app's import payload; Create imports a batch and
// reports how many were new versus already known.
type App interface {
	Name() string
	Augment(tx model.CleanedTransaction, acct model.AccountConfig) map[string]any
	Create(ctx context.Context, txns []map[string]any) (created, duplicates int, err error)

	// Intermediary renders the would-be payload for dry runs.
	Intermediary(txns []map[string]any) (string, error)
}

// Factory builds an App from its YAML config block.
type Factory func(node *yaml.Node, logger *log.Logger) (App, error)

// Registry holds named app factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory. Panics on duplicate name.
func (r *Registry) Register(name string, f Factory) {
	key := strings.ToLower(name)
	if _, ok := r.factories[key]; ok {
		panic("duplicate app factory: " + key)
	}
	r.factories[key] = f
}

// Build constructs the named app from its config block.
func (r *Registry) Build(name string, node *yaml.Node, logger *log.Logger) (App, error) {
	f, ok := r.factories[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown app %q", name)
	}
	return f(node, logger)
}

// DefaultRegistry returns a registry with all built-in apps.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("actual", NewActualFromConfig)
	return r
}
