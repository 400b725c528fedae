package engine

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/gpucontext"
)

// ErrUnknownEngine is returned by Lookup for an unregistered name.
var ErrUnknownEngine = errors.New("engine: unknown engine")

// registry holds engine factories. "software" wins when present.
var registry = gpucontext.NewRegistry[Engine](gpucontext.WithPriority("software"))

// Register installs an engine factory under name, replacing any previous one.
//
// Typical usage from a backend package:
//
//	func init() {
//	    engine.Register("software", func() engine.Engine { return shared })
//	}
func Register(name string, factory func() Engine) {
	registry.Register(name, factory)
}

// Unregister removes the engine registered under name.
func Unregister(name string) {
	registry.Unregister(name)
}

// Lookup returns the engine registered under name.
func Lookup(name string) (Engine, error) {
	if !registry.Has(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}
	e := registry.Get(name)
	if e == nil {
		return nil, fmt.Errorf("%w: %q returned nil", ErrUnknownEngine, name)
	}
	return e, nil
}

// Default returns the preferred registered engine, or nil if none is
// registered.
func Default() Engine {
	return registry.Best()
}

// DefaultName returns the name Default would pick, or "".
func DefaultName() string {
	return registry.BestName()
}

// Available returns the sorted names of all registered engines.
func Available() []string {
	names := registry.Available()
	slices.Sort(names)
	return names
}
