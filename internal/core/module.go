// Package core provides the module system the sage service is assembled from.
//
// A module is a self-registering unit (a completion provider, a conversation
// store backend, the HTTP gateway) that is instantiated by ID from the
// configuration and driven through a fixed lifecycle:
//
//	New() → Configure() → Provision() → Validate() → Start() → Stop()
package core

import "strings"

// ModuleID is a dotted identifier such as "store.redis" or "provider.openai".
// The segment before the first dot is the module namespace.
type ModuleID string

// Namespace returns the first segment of the ID.
func (id ModuleID) Namespace() string {
	ns, _, _ := strings.Cut(string(id), ".")
	return ns
}

// Name returns everything after the namespace, or the whole ID when it has no dot.
func (id ModuleID) Name() string {
	_, name, found := strings.Cut(string(id), ".")
	if !found {
		return string(id)
	}
	return name
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	ID  ModuleID
	New func() Module
}

// Module is implemented by every registrable unit.
type Module interface {
	ModuleInfo() ModuleInfo
}
