package intercept

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Module is a named bag of symbols registered by workload code when a heavy
// component finishes loading. It is the explicit analog of a dynamically
// imported module: periscope never loads the module itself, it only reacts
// to the load.
type Module struct {
	name    string
	mu      sync.Mutex
	symbols map[string]interface{}
}

// NewModule creates an empty module with the given name.
func NewModule(name string) *Module {
	return &Module{
		name:    name,
		symbols: make(map[string]interface{}),
	}
}

// Name returns the module name.
func (m *Module) Name() string { return m.name }

// Define registers a symbol. Redefining an existing symbol is an error.
func (m *Module) Define(symbol string, value interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.symbols[symbol]; ok {
		return fmt.Errorf("intercept: symbol %q already defined in module %q", symbol, m.name)
	}
	m.symbols[symbol] = value
	return nil
}

// Lookup resolves a symbol by name.
func (m *Module) Lookup(symbol string) (interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.symbols[symbol]
	if !ok {
		return nil, fmt.Errorf("intercept: symbol %q not found in module %q", symbol, m.name)
	}
	return v, nil
}

// Registry dispatches one-shot module-load hooks. Hooks registered before a
// module loads run synchronously inside Announce; hooks registered after run
// immediately. A hook runs at most once and a panicking hook can never break
// the module loading path.
type Registry struct {
	mu      sync.Mutex
	logger  zerolog.Logger
	modules map[string]*Module
	hooks   map[string][]func(*Module)
}

// NewRegistry creates a module-load registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		logger:  logger.With().Str("component", "intercept").Logger(),
		modules: make(map[string]*Module),
		hooks:   make(map[string][]func(*Module)),
	}
}

// Announce records the module as loaded and runs any pending hooks for its
// name, synchronously, in registration order. Re-announcing a name replaces
// the module but does not re-run hooks that already fired.
func (r *Registry) Announce(m *Module) {
	if m == nil {
		return
	}

	r.mu.Lock()
	r.modules[m.Name()] = m
	pending := r.hooks[m.Name()]
	delete(r.hooks, m.Name())
	r.mu.Unlock()

	r.logger.Debug().Str("module", m.Name()).Int("hooks", len(pending)).Msg("Module announced")

	for _, hook := range pending {
		r.runHook(m, hook)
	}
}

// OnLoad registers a one-shot hook for a module name. If the module has
// already been announced the hook runs immediately in the caller's
// goroutine; otherwise it runs inside the Announce that loads it.
func (r *Registry) OnLoad(module string, hook func(*Module)) {
	if hook == nil {
		return
	}

	r.mu.Lock()
	m, loaded := r.modules[module]
	if !loaded {
		r.hooks[module] = append(r.hooks[module], hook)
	}
	r.mu.Unlock()

	if loaded {
		r.runHook(m, hook)
	}
}

// Module returns an announced module by name.
func (r *Registry) Module(name string) (*Module, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.modules[name]
	return m, ok
}

// runHook invokes a hook, recovering panics so a broken hook degrades to a
// logged warning instead of failing the workload's load path.
func (r *Registry) runHook(m *Module, hook func(*Module)) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn().
				Str("module", m.Name()).
				Interface("panic", rec).
				Msg("Module load hook panicked, module left unmodified")
		}
	}()
	hook(m)
}
