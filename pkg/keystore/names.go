package keystore

import (
	"strings"

	"github.com/papercomputeco/portal/pkg/gateway"
)

// NameSet is a set of key names.
type NameSet map[string]struct{}

// Has reports membership. A nil set is empty.
func (n NameSet) Has(name string) bool {
	_, ok := n[name]
	return ok
}

// ActiveNames collects the display names of the active keys.
func ActiveNames(keys []gateway.APIKeyEntry) NameSet {
	set := make(NameSet, len(keys))
	for _, k := range keys {
		if k.Active {
			set[k.DisplayName()] = struct{}{}
		}
	}
	return set
}

// Mask hides all but the last six characters of a secret.
func Mask(secret string) string {
	const visible = 6
	if len(secret) <= visible {
		return strings.Repeat("*", len(secret))
	}
	return "..." + secret[len(secret)-visible:]
}
