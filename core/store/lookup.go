package store

import (
	"fmt"
	"time"

	"sysdb/core/sdbdata"
)

// HasHost reports whether a host with the given name (case-insensitive)
// exists.
func (s *Store) HasHost(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.hosts.get(foldName(name))
	return ok
}

// GetHost returns a reference-counted handle to the named host, or nil if
// none exists. The caller owns the returned reference and must call
// Release on it when done (invariant 4 of spec.md §3).
func (s *Store) GetHost(name string) *Host {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hosts.get(foldName(name))
	if !ok {
		return nil
	}
	h.Retain()
	return h
}

// Hosts returns every host in case-insensitive name order. Unlike GetHost
// this does not retain references; it is meant for read-only traversal
// under the caller's own use of Iterate-style access patterns (e.g. the
// serializer, which holds the store's read lock for the duration of the
// render instead of acquiring per-object references — see spec.md §5).
func (s *Store) Hosts() []*Host {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hosts.values()
}

// IterateFunc is called once per host in sort order. Returning a negative
// status aborts the iteration; Iterate then returns that status wrapped in
// an error.
type IterateFunc func(h *Host) int

// Iterate visits every host in case-insensitive name order. If the store
// is empty it returns ErrEmptyStore without invoking fn (spec.md §4.2,
// §7 "Empty iteration"). If fn returns a negative value, iteration stops
// immediately and that value is returned via ErrIterationAborted.
func (s *Store) Iterate(fn IterateFunc) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.hosts.len() == 0 {
		return ErrEmptyStore
	}

	for _, h := range s.hosts.values() {
		if rc := fn(h); rc < 0 {
			return &ErrIterationAborted{Code: rc}
		}
	}
	return nil
}

// ErrIterationAborted is returned by Iterate when the callback requests an
// early stop by returning a negative code.
type ErrIterationAborted struct{ Code int }

func (e *ErrIterationAborted) Error() string {
	return fmt.Sprintf("iteration aborted with code %d", e.Code)
}

// Object is the uniform view GetField operates against: anything with a
// name, a type tag and the timed-object bookkeeping. Host, Service, Metric
// and Attribute all satisfy it through their embedded timedObject.
type Object interface {
	Name() string
	Type() ObjType
	LastUpdate() Timestamp
	Interval() Timestamp
	Backends() []string
}

// GetField extracts a uniform view over any store object as of the
// current wall-clock time. See GetFieldAt for a deterministic variant.
func GetField(obj Object, field FieldID) (sdbdata.Datum, error) {
	return GetFieldAt(obj, field, Timestamp(time.Now().UnixMicro()))
}

// GetFieldAt is GetField with an explicit "now" timestamp, used by tests
// and by anything that wants AGE computed relative to a fixed instant
// rather than wall-clock time.
func GetFieldAt(obj Object, field FieldID, now Timestamp) (sdbdata.Datum, error) {
	switch field {
	case FieldName:
		return sdbdata.String(obj.Name()), nil
	case FieldLastUpdate:
		return sdbdata.DatetimeMicros(int64(obj.LastUpdate())), nil
	case FieldAge:
		age := now - obj.LastUpdate()
		if age < 0 {
			age = 0
		}
		return sdbdata.DatetimeMicros(int64(age)), nil
	case FieldInterval:
		return sdbdata.DatetimeMicros(int64(obj.Interval())), nil
	case FieldBackend:
		return sdbdata.StringArray(obj.Backends()), nil
	default:
		return sdbdata.Datum{}, fmt.Errorf("get field: %w", ErrInvalidArgument)
	}
}
