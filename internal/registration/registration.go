// Package registration wires every built-in provider factory into the
// adapter registry. Kept separate from the provider packages so importing an
// adapter in tests does not drag in the others.
package registration

import (
	"sync"

	"github.com/relaygate/relaygate/internal/adapter/anthropic"
	"github.com/relaygate/relaygate/internal/adapter/coze"
	"github.com/relaygate/relaygate/internal/adapter/google"
	"github.com/relaygate/relaygate/internal/adapter/openai"
)

var once sync.Once

// RegisterBuiltins registers all built-in provider factories. Safe to call
// more than once; registration happens exactly once.
func RegisterBuiltins() {
	once.Do(func() {
		openai.Register()
		anthropic.Register()
		google.Register()
		coze.Register()
	})
}
