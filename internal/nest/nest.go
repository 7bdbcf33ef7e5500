// Package nest flattens and rebuilds nested value structures. A structure
// is a tree of []any sequences and map[string]any mappings; anything else
// is a leaf. Map keys are visited in sorted order so flattening is
// deterministic.
package nest

import (
	"fmt"
	"sort"
)

// IsSequence reports whether v is a structure this package recurses into.
func IsSequence(v any) bool {
	switch v.(type) {
	case []any, map[string]any:
		return true
	default:
		return false
	}
}

// Flatten returns the leaves of structure in depth-first order. A
// non-structure argument yields a single-element result.
func Flatten(structure any) []any {
	var out []any
	flattenInto(structure, &out)
	return out
}

func flattenInto(v any, out *[]any) {
	switch x := v.(type) {
	case []any:
		for _, e := range x {
			flattenInto(e, out)
		}
	case map[string]any:
		for _, k := range sortedKeys(x) {
			flattenInto(x[k], out)
		}
	default:
		*out = append(*out, v)
	}
}

// Pack rebuilds the shape of template with its leaves replaced, in
// depth-first order, by the elements of flat. The flat sequence must have
// exactly as many elements as template has leaves.
func Pack(template any, flat []any) (any, error) {
	packed, rest, err := pack(template, flat)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("flat sequence has %d element(s) left over after packing", len(rest))
	}
	return packed, nil
}

func pack(template any, flat []any) (any, []any, error) {
	switch t := template.(type) {
	case []any:
		out := make([]any, 0, len(t))
		for _, e := range t {
			p, rest, err := pack(e, flat)
			if err != nil {
				return nil, nil, err
			}
			out = append(out, p)
			flat = rest
		}
		return out, flat, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for _, k := range sortedKeys(t) {
			p, rest, err := pack(t[k], flat)
			if err != nil {
				return nil, nil, err
			}
			out[k] = p
			flat = rest
		}
		return out, flat, nil
	default:
		if len(flat) == 0 {
			return nil, nil, fmt.Errorf("flat sequence is shorter than the template structure")
		}
		return flat[0], flat[1:], nil
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
