package config

import (
	"cmp"
	"slices"
	"strings"
)

// loadOrder ranks module namespaces so that backends are provisioned before
// the components that consume them. Unknown namespaces load last.
var loadOrder = map[string]int{
	"store":    0,
	"provider": 1,
	"gateway":  2,
}

// Resolve returns the module IDs from the configuration in load order:
// by namespace rank, then alphabetically.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		if c := cmp.Compare(rank(a), rank(b)); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return ids
}

func rank(id string) int {
	ns, _, _ := strings.Cut(id, ".")
	if r, ok := loadOrder[ns]; ok {
		return r
	}
	return len(loadOrder)
}

// ModulesInNamespace returns the configured module IDs whose namespace is ns.
func ModulesInNamespace(cfg *Config, ns string) []string {
	var out []string
	for _, id := range Resolve(cfg) {
		if prefix, _, _ := strings.Cut(id, "."); prefix == ns {
			out = append(out, id)
		}
	}
	return out
}
