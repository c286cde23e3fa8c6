package store

import "sysdb/core/sdbdata"

// Attribute is a free-form key/value fact attached to a host, service or
// metric. Containment is strict: an Attribute lives under exactly one
// parent (spec.md §3 "Relationships").
type Attribute struct {
	timedObject
	value  sdbdata.Datum
	parent ParentRef
}

// ParentRef is a non-owning back-pointer from a child object to its
// parent, used by structural matchers (any/all) to navigate without
// extending the parent's lifetime (spec.md §9 "Parent/child cycles").
type ParentRef struct {
	Host    *Host
	Service *Service
	Metric  *Metric
}

func newAttribute(name string, ts Timestamp, value sdbdata.Datum, parent ParentRef) *Attribute {
	return &Attribute{
		timedObject: newTimedObject(name, ObjAttribute, ts),
		value:       value.Copy(),
		parent:      parent,
	}
}

// Value returns the attribute's current datum.
func (a *Attribute) Value() sdbdata.Datum { return a.value }

// Parent returns the back-pointer to whichever object owns this attribute.
func (a *Attribute) Parent() ParentRef { return a.parent }

func attrLowerName(a *Attribute) string { return a.lowerName }
