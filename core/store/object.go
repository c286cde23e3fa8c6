// Package store implements the in-memory, update-idempotent, time-aware,
// hierarchical object graph at the heart of SysDB: hosts containing
// services and metrics, each of which may carry attributes. It is the
// consolidated view multiple backend collectors write into and multiple
// query-serving frontends read from concurrently.
package store

import "sync/atomic"

// ObjType is a bitmask identifying the kind of a store object. Values are
// bit-or'able so callers (the wire protocol, not part of this package) can
// express e.g. "service attribute" as ObjService|ObjAttribute.
type ObjType int

const (
	ObjHost      ObjType = 1
	ObjService   ObjType = 2
	ObjMetric    ObjType = 4
	ObjAttribute ObjType = 8
)

func (t ObjType) String() string {
	switch t {
	case ObjHost:
		return "host"
	case ObjService:
		return "service"
	case ObjMetric:
		return "metric"
	case ObjAttribute:
		return "attribute"
	default:
		return "unknown"
	}
}

// FieldID identifies a field exposed uniformly across every store object
// kind by GetField.
type FieldID int

const (
	FieldName FieldID = iota + 1
	FieldLastUpdate
	FieldAge
	FieldInterval
	FieldBackend
)

// Status is the outcome of an update operation: StatusUpdated means the
// object was created or mutated, StatusUnchanged means the proposed update
// was at or before the object's current last-update time and nothing was
// touched.
type Status int

const (
	StatusUpdated   Status = 0
	StatusUnchanged Status = 1
)

// Timestamp is microseconds since the Unix epoch, the wire representation
// spec.md uses for "datetime" data. Update call sites and tests are free to
// pass small synthetic values (1, 2, 3, ...) — the store never interprets
// the unit, only orders by it.
type Timestamp int64

// object is the common header every store object carries: a display name,
// the case-folded name used for identity/ordering, and a reference count.
// This is the "named object" layer of spec.md §2.
type object struct {
	name      string
	lowerName string
	objType   ObjType
	refcount  int32
}

func newObject(name string, t ObjType) object {
	return object{
		name:      name,
		lowerName: foldName(name),
		objType:   t,
		refcount:  1,
	}
}

// Name returns the display name, in the casing of the first update that
// created the object (invariant 3 of spec.md §3).
func (o *object) Name() string { return o.name }

// Type returns the object's kind.
func (o *object) Type() ObjType { return o.objType }

// Retain increments the reference count, returning the new count. Callers
// that obtain a handle through a lookup function own one reference and
// must call Release when done with it.
func (o *object) Retain() int32 { return atomic.AddInt32(&o.refcount, 1) }

// Release decrements the reference count, returning the new count.
func (o *object) Release() int32 { return atomic.AddInt32(&o.refcount, -1) }

// RefCount returns the current reference count, for tests and diagnostics.
func (o *object) RefCount() int32 { return atomic.LoadInt32(&o.refcount) }

// timedObject extends object with the update-cadence bookkeeping shared by
// Host, Service, Metric and Attribute (spec.md §2 "timed object").
type timedObject struct {
	object

	lastUpdate      Timestamp
	interval        Timestamp
	intervalSeeded  bool
	backends        []string
	backendSet      map[string]bool
}

func newTimedObject(name string, t ObjType, ts Timestamp) timedObject {
	return timedObject{
		object:     newObject(name, t),
		lastUpdate: ts,
		backendSet: make(map[string]bool),
	}
}

// LastUpdate returns the timestamp of the most recent accepted update.
func (t *timedObject) LastUpdate() Timestamp { return t.lastUpdate }

// Interval returns the current smoothed estimate of the update cadence.
func (t *timedObject) Interval() Timestamp { return t.interval }

// Backends returns the ordered (first-seen) list of backend names that
// have contributed an observation to this object. The returned slice must
// not be mutated.
func (t *timedObject) Backends() []string { return t.backends }

// touch applies the monotonic-timestamp rule and the update-interval
// estimator (spec.md §4.1, §4.2). It returns StatusUnchanged without
// mutating anything if ts is not strictly greater than the current
// last-update time; callers must gate any field mutation of their own on
// this function returning StatusUpdated.
func (t *timedObject) touch(ts Timestamp) Status {
	if ts <= t.lastUpdate {
		return StatusUnchanged
	}

	delta := ts - t.lastUpdate
	if !t.intervalSeeded {
		t.interval = delta
		t.intervalSeeded = true
	} else {
		t.interval = (t.interval*9 + delta) / 10
	}
	t.lastUpdate = ts
	return StatusUpdated
}

// addBackend records a contributing backend name if it hasn't been seen
// before, preserving first-seen order.
func (t *timedObject) addBackend(name string) {
	if name == "" || t.backendSet[name] {
		return
	}
	t.backendSet[name] = true
	t.backends = append(t.backends, name)
}

func foldName(s string) string {
	// Case-insensitive identity (invariant 3) without importing unicode
	// machinery the original names never need: host/service/metric/
	// attribute names are ASCII in every backend this store talks to.
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
