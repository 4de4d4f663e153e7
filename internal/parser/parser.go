// Package parser defines the site parser capability and the static registry
// used to discover parsers by display name.
package parser

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/JakeFAU/wowhead-parser/internal/crawler"
)

// DefaultHostPrefix is used when no locale prefix is selected.
const DefaultHostPrefix = "www."

// Parser converts one fetched block into an output fragment. Parse must not
// panic or fail on unexpected content: it returns "" instead, and it must
// return "" without looking at the content when the fetch failed.
type Parser interface {
	// Address is the host and route suffix of the site, e.g. "wowhead.com/npc=".
	Address() string
	Parse(block crawler.Block) string
}

// EntryPather is implemented by parsers whose per-entry path is not simply the
// decimal entry ID appended to the base address.
type EntryPather interface {
	EntryPath(id crawler.EntryID) string
}

// Factory constructs a fresh Parser.
type Factory func() Parser

// Registry maps display names to parser factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name. Names are unique.
func (r *Registry) Register(name string, factory Factory) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("parser name is required")
	}
	if factory == nil {
		return fmt.Errorf("parser %q: factory is required", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("parser %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Names returns the registered display names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New constructs the parser registered under name.
func (r *Registry) New(name string) (Parser, error) {
	if strings.TrimSpace(name) == "" {
		return nil, crawler.ErrNoParser
	}
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", crawler.ErrUnknownParser, name)
	}
	return factory(), nil
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry that site packages register into.
func Default() *Registry {
	return defaultRegistry
}

// MustRegister registers into the default registry and panics on conflicts.
// Site packages call it from init.
func MustRegister(name string, factory Factory) {
	if err := defaultRegistry.Register(name, factory); err != nil {
		panic(err)
	}
}

// BaseAddress composes "http://" + host prefix + the parser address. An empty
// locale selects DefaultHostPrefix.
func BaseAddress(p Parser, locale string) string {
	prefix := strings.TrimSpace(locale)
	if prefix == "" {
		prefix = DefaultHostPrefix
	}
	if !strings.HasSuffix(prefix, ".") {
		prefix += "."
	}
	return "http://" + prefix + p.Address()
}

// EntryAddress returns the AddressFunc a worker uses to locate entries for p.
func EntryAddress(p Parser, locale string) crawler.AddressFunc {
	base := BaseAddress(p, locale)
	if pather, ok := p.(EntryPather); ok {
		return func(id crawler.EntryID) string {
			return base + pather.EntryPath(id)
		}
	}
	return func(id crawler.EntryID) string {
		return base + strconv.FormatUint(uint64(id), 10)
	}
}
