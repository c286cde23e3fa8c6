package store

import "sort"

// orderedIndex keeps a set of named values sorted by case-folded name for
// deterministic, case-insensitive lookup and iteration (spec.md §3
// "Ordering"). It backs the host set on Store and the attribute/service/
// metric sets on Host, Service and Metric.
type orderedIndex[V any] struct {
	lowerNameOf func(V) string
	byName      map[string]V
	order       []string // case-folded names, sorted
}

func newOrderedIndex[V any](lowerNameOf func(V) string) *orderedIndex[V] {
	return &orderedIndex[V]{
		lowerNameOf: lowerNameOf,
		byName:      make(map[string]V),
	}
}

func (idx *orderedIndex[V]) get(lowerName string) (V, bool) {
	v, ok := idx.byName[lowerName]
	return v, ok
}

// insert adds v under lowerName, keeping idx.order sorted. Callers must
// ensure lowerName is not already present (use get first).
func (idx *orderedIndex[V]) insert(lowerName string, v V) {
	idx.byName[lowerName] = v
	pos := sort.SearchStrings(idx.order, lowerName)
	idx.order = append(idx.order, "")
	copy(idx.order[pos+1:], idx.order[pos:])
	idx.order[pos] = lowerName
}

func (idx *orderedIndex[V]) len() int { return len(idx.order) }

// each visits every value in sorted order, stopping and returning the first
// error encountered.
func (idx *orderedIndex[V]) each(fn func(V) error) error {
	for _, name := range idx.order {
		if err := fn(idx.byName[name]); err != nil {
			return err
		}
	}
	return nil
}

// values returns every value in sorted order as a slice.
func (idx *orderedIndex[V]) values() []V {
	out := make([]V, len(idx.order))
	for i, name := range idx.order {
		out[i] = idx.byName[name]
	}
	return out
}
