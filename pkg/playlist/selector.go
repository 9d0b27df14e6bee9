package playlist

import (
	"fmt"
	"strings"

	"github.com/mossbeam/hlsfetch/pkg/hlserr"
)

// SelectionKeys are the optional caller-provided filters spec.md §4.3
// describes. An empty key means "don't filter on this attribute".
type SelectionKeys struct {
	Name       string
	Bandwidth  string
	Resolution string
}

func (k SelectionKeys) empty() bool {
	return k.Name == "" && k.Bandwidth == "" && k.Resolution == ""
}

// Select implements spec.md §4.3's variant selection logic: a single
// variant is always auto-selected; otherwise every provided key must
// match. Zero matches fails VariantNotFound; more than one match with
// no keys supplied fails VariantAmbiguous, with the message enumerating
// every variant as required.
func Select(variants []Variant, keys SelectionKeys) (Variant, error) {
	if len(variants) == 1 {
		return variants[0], nil
	}

	var matches []Variant
	for _, v := range variants {
		if keys.Name != "" && v.Name != keys.Name {
			continue
		}
		if keys.Bandwidth != "" && v.Bandwidth != keys.Bandwidth {
			continue
		}
		if keys.Resolution != "" && v.Resolution != keys.Resolution {
			continue
		}
		matches = append(matches, v)
	}

	switch {
	case len(matches) == 1:
		return matches[0], nil
	case len(matches) == 0:
		return Variant{}, hlserr.New(hlserr.VariantNotFound, "no variant matches the given selection")
	case keys.empty():
		return Variant{}, hlserr.New(hlserr.VariantAmbiguous, enumerate(matches))
	default:
		// Keys were provided but still matched more than one variant:
		// spec.md doesn't special-case this, so it's ambiguous too.
		return Variant{}, hlserr.New(hlserr.VariantAmbiguous, enumerate(matches))
	}
}

// enumerate renders the warning payload spec.md §4.3 requires: every
// variant listed as {name, bandwidth, resolution} with empty strings
// for missing attributes.
func enumerate(variants []Variant) string {
	var b strings.Builder
	b.WriteString("multiple variants match: ")
	for i, v := range variants {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "{name:%q, bandwidth:%q, resolution:%q}", v.Name, v.Bandwidth, v.Resolution)
	}
	return b.String()
}
