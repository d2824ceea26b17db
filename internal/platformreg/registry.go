// Package platformreg implements the capability/permission registry
// supplemented feature: each adapter type declares which operations it
// supports. cmd/adapter logs the declared set at startup; C9 does not
// consult it, and an unsupported operation is reported as `unsupported`
// by the adapter call itself. Adapted from the
// teacher's pkg/adapters/permissions.go capability-set pattern.
package platformreg

// Capability enumerates the operations an adapter may or may not
// support.
type Capability string

const (
	CapReactions     Capability = "reactions"
	CapThreads       Capability = "threads"
	CapEdit          Capability = "edit"
	CapDelete        Capability = "delete"
	CapPin           Capability = "pin"
	CapHistoryFetch  Capability = "history_fetch"
	CapAttachments   Capability = "attachments"
)

// CapabilitySet is the declared capability list for one adapter.
type CapabilitySet map[Capability]bool

// Supports reports whether cap is declared supported.
func (s CapabilitySet) Supports(cap Capability) bool { return s[cap] }

// Registry maps adapter_type -> its declared CapabilitySet.
type Registry struct {
	sets map[string]CapabilitySet
}

// New builds an empty registry; populate with Register.
func New() *Registry {
	return &Registry{sets: make(map[string]CapabilitySet)}
}

// Register declares an adapter's capabilities.
func (r *Registry) Register(adapterType string, caps CapabilitySet) {
	r.sets[adapterType] = caps
}

// Supports reports whether adapterType declares cap supported. An
// unregistered adapter type supports nothing.
func (r *Registry) Supports(adapterType string, cap Capability) bool {
	set, ok := r.sets[adapterType]
	if !ok {
		return false
	}
	return set.Supports(cap)
}

// Default returns the out-of-the-box registry for the seven adapter
// types this module ships, mirroring the declared surfaces in
// SPEC_FULL.md's domain stack table.
func Default() *Registry {
	r := New()
	r.Register("telegram", CapabilitySet{
		CapReactions: true, CapThreads: true, CapEdit: true, CapDelete: true,
		CapPin: true, CapHistoryFetch: true, CapAttachments: true,
	})
	r.Register("discord_bot", CapabilitySet{
		CapReactions: true, CapThreads: true, CapEdit: true, CapDelete: true,
		CapPin: true, CapHistoryFetch: true, CapAttachments: true,
	})
	r.Register("discord_webhook", CapabilitySet{
		CapEdit: true, CapDelete: true, CapAttachments: true,
		// webhooks cannot react, pin, or fetch history as themselves.
	})
	r.Register("slack", CapabilitySet{
		CapReactions: true, CapThreads: true, CapEdit: true, CapDelete: true,
		CapPin: true, CapHistoryFetch: true, CapAttachments: true,
	})
	r.Register("zulip", CapabilitySet{
		CapReactions: true, CapThreads: true, CapEdit: true,
		CapHistoryFetch: true, CapAttachments: true,
		// Zulip's API does not expose message deletion to bots by default.
	})
	r.Register("file", CapabilitySet{
		CapAttachments: true,
	})
	r.Register("shell", CapabilitySet{})
	return r
}
