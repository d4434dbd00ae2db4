package adapter

import (
	"sort"
	"sync"

	"github.com/relaygate/relaygate/internal/config"
	"github.com/relaygate/relaygate/internal/domain"
	"github.com/relaygate/relaygate/internal/transport"
)

// Factory defines how to build a configured adapter+transport pair for one
// provider type. Each provider package registers a factory; registration
// happens once at startup and the registry is read-only afterwards.
type Factory struct {
	// Type is the provider type identifier used in configuration.
	Type string

	// Description is a human-readable description of the provider.
	Description string

	// New builds the adapter for one configured model.
	New func(cfg config.ProviderConfig) (Adapter, error)

	// TransportConfig derives the transport settings from provider
	// configuration. Optional: when nil, defaults are applied (bearer auth
	// against cfg.BaseURL).
	TransportConfig func(cfg config.ProviderConfig) transport.Config

	// ValidateConfig performs provider-specific validation. Optional.
	ValidateConfig func(cfg config.ProviderConfig) error
}

var (
	factoryMu  sync.RWMutex
	factoryMap = make(map[string]Factory)
)

// RegisterFactory registers a provider factory. Called from each provider
// package's Register function, wired in internal/registration. Panics on
// duplicate types; that is a programming error, not a runtime condition.
func RegisterFactory(f Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()

	if f.Type == "" {
		panic("adapter factory type cannot be empty")
	}
	if f.New == nil {
		panic("adapter factory " + f.Type + " must have a New function")
	}
	if _, exists := factoryMap[f.Type]; exists {
		panic("adapter factory " + f.Type + " already registered")
	}

	factoryMap[f.Type] = f
}

// GetFactory returns the factory for a provider type, if registered.
func GetFactory(providerType string) (Factory, bool) {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	f, ok := factoryMap[providerType]
	return f, ok
}

// IsRegistered reports whether a provider type is registered.
func IsRegistered(providerType string) bool {
	_, ok := GetFactory(providerType)
	return ok
}

// ListTypes returns all registered provider type names, sorted.
func ListTypes() []string {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	types := make([]string, 0, len(factoryMap))
	for t := range factoryMap {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// ClearFactories removes all registered factories (for testing only).
func ClearFactories() {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factoryMap = make(map[string]Factory)
}

// Binding is a configured adapter+transport pair for one model, resolved
// once at startup and immutable afterwards.
type Binding struct {
	Adapter   Adapter
	Transport *transport.Transport
}

// Build resolves the factory for cfg.Type and constructs the binding.
// An unknown provider type is a configuration error surfaced before any
// network call.
func Build(cfg config.ProviderConfig, opts ...transport.Option) (*Binding, error) {
	f, ok := GetFactory(cfg.Type)
	if !ok {
		return nil, domain.NewConfigError("unknown provider type %q (registered: %v)", cfg.Type, ListTypes())
	}

	if f.ValidateConfig != nil {
		if err := f.ValidateConfig(cfg); err != nil {
			return nil, domain.NewConfigError("provider %q: %v", cfg.Name, err)
		}
	}

	a, err := f.New(cfg)
	if err != nil {
		return nil, domain.NewConfigError("provider %q: %v", cfg.Name, err)
	}

	tcfg := transport.Config{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Timeout: cfg.TimeoutOrDefault(0),
	}
	if f.TransportConfig != nil {
		tcfg = f.TransportConfig(cfg)
	}

	return &Binding{
		Adapter:   a,
		Transport: transport.New(tcfg, opts...),
	}, nil
}
