package store

import "sysdb/core/sdbdata"

// AttrCondition is a cheap, single-attribute pre-filter for hosts, kept
// separate from the full matcher tree in core/matcher. It mirrors the
// original implementation's sdb_store_cond_t / attr_cond_t, which frontend
// lookups apply before falling back to a general matcher when a query
// narrows down by one attribute equality (see SPEC_FULL.md §4).
type AttrCondition struct {
	Name  string
	Value sdbdata.Datum
}

// Match reports whether host h carries an attribute named c.Name whose
// value equals c.Value.
func (c AttrCondition) Match(h *Host) bool {
	attr, ok := h.Attribute(c.Name)
	if !ok {
		return false
	}
	return sdbdata.Equal(attr.Value(), c.Value)
}

// HostsMatching returns every host satisfying cond, in sort order. A nil
// cond matches every host.
func (s *Store) HostsMatching(cond *AttrCondition) []*Host {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.hosts.values()
	if cond == nil {
		return all
	}

	out := make([]*Host, 0, len(all))
	for _, h := range all {
		if cond.Match(h) {
			out = append(out, h)
		}
	}
	return out
}
