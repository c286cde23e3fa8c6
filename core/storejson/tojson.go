// Package storejson implements the streaming JSON serializer of spec.md
// §4.5 (store_tojson in the original implementation): host, service,
// metric and attribute objects rendered with a fixed key order and
// optional matcher-based filtering at every level, without ever building
// an intermediate tree.
package storejson

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"sysdb/core/matcher"
	"sysdb/core/sdbdata"
	"sysdb/core/store"
)

// Flags control which child collections get rendered.
type Flags int

const (
	SkipAttributes Flags = 1 << iota
	SkipMetrics
	SkipServices
)

// SkipAll renders just the bare host header, with no attributes, metrics
// or services.
const SkipAll = SkipAttributes | SkipMetrics | SkipServices

// writer is a small helper that swallows write errors until the caller
// checks once at the end, the same shape the original streaming
// serializer uses for its FILE*-based sdb_strbuf_t writer.
type writer struct {
	w   io.Writer
	err error
}

func (jw *writer) raw(s string) {
	if jw.err != nil {
		return
	}
	_, jw.err = io.WriteString(jw.w, s)
}

func (jw *writer) field(key, jsonValue string) {
	if jw.err != nil {
		return
	}
	_, jw.err = fmt.Fprintf(jw.w, ", %q: %s", key, jsonValue)
}

func quote(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		// json.Marshal does not fail on a string (invalid UTF-8 is
		// replaced, not rejected); fall back to a lossy quote rather than
		// propagate an error path that can't be exercised.
		return fmt.Sprintf("%q", s)
	}
	return string(b)
}

func jsonArray(ss []string) string {
	if len(ss) == 0 {
		return "[]"
	}
	b, err := json.Marshal(ss)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// WriteStore streams every host in s as a JSON array, in sorted name order,
// filtered by m (a nil matcher selects every host).
func WriteStore(w io.Writer, s *store.Store, flags Flags, m matcher.Matcher) error {
	jw := &writer{w: w}
	jw.raw("[")
	first := true
	for _, h := range s.Hosts() {
		if m != nil && !m.Match(h) {
			continue
		}
		if !first {
			jw.raw(", ")
		}
		first = false
		writeHostInto(jw, h, flags, m)
	}
	jw.raw("]")
	return jw.err
}

// WriteHost streams a single host.
func WriteHost(w io.Writer, h *store.Host, flags Flags, m matcher.Matcher) error {
	jw := &writer{w: w}
	writeHostInto(jw, h, flags, m)
	return jw.err
}

func writeHeader(jw *writer, obj store.Object) {
	if jw.err != nil {
		return
	}
	jw.raw(fmt.Sprintf("{%q: %s", "name", quote(obj.Name())))
	jw.field("last_update", quote(sdbdata.DatetimeMicros(int64(obj.LastUpdate())).String()))
	jw.field("update_interval", quote(intervalString(obj.Interval())))
	jw.field("backends", jsonArray(obj.Backends()))
}

func intervalString(interval store.Timestamp) string {
	return (time.Duration(int64(interval)) * time.Microsecond).String()
}

func writeHostInto(jw *writer, h *store.Host, flags Flags, m matcher.Matcher) {
	writeHeader(jw, h)
	if flags&SkipAttributes == 0 {
		writeAttributes(jw, h.Attributes(), m)
	}
	if flags&SkipMetrics == 0 {
		writeMetrics(jw, h.Metrics(), flags, m)
	}
	if flags&SkipServices == 0 {
		writeServices(jw, h.Services(), flags, m)
	}
	jw.raw("}")
}

func writeAttributes(jw *writer, attrs []*store.Attribute, m matcher.Matcher) {
	if jw.err != nil {
		return
	}
	jw.field("attributes", "")
	jw.raw("[")
	first := true
	for _, a := range attrs {
		if m != nil && !m.Match(a) {
			continue
		}
		if !first {
			jw.raw(", ")
		}
		first = false
		writeAttribute(jw, a)
	}
	jw.raw("]")
}

func writeAttribute(jw *writer, a *store.Attribute) {
	writeHeader(jw, a)
	jw.field("value", quote(a.Value().String()))
	jw.raw("}")
}

func writeMetrics(jw *writer, metrics []*store.Metric, flags Flags, m matcher.Matcher) {
	if jw.err != nil {
		return
	}
	jw.field("metrics", "")
	jw.raw("[")
	first := true
	for _, met := range metrics {
		if m != nil && !m.Match(met) {
			continue
		}
		if !first {
			jw.raw(", ")
		}
		first = false
		writeMetric(jw, met, flags, m)
	}
	jw.raw("]")
}

func writeMetric(jw *writer, met *store.Metric, flags Flags, m matcher.Matcher) {
	writeHeader(jw, met)
	if ref := met.StoreRef(); ref != nil {
		jw.field("timeseries", fmt.Sprintf("{%q: %s, %q: %s}", "type", quote(ref.Type), "id", quote(ref.ID)))
	}
	if flags&SkipAttributes == 0 {
		writeAttributes(jw, met.Attributes(), m)
	}
	jw.raw("}")
}

func writeServices(jw *writer, services []*store.Service, flags Flags, m matcher.Matcher) {
	if jw.err != nil {
		return
	}
	jw.field("services", "")
	jw.raw("[")
	first := true
	for _, svc := range services {
		if m != nil && !m.Match(svc) {
			continue
		}
		if !first {
			jw.raw(", ")
		}
		first = false
		writeService(jw, svc, flags, m)
	}
	jw.raw("]")
}

func writeService(jw *writer, svc *store.Service, flags Flags, m matcher.Matcher) {
	writeHeader(jw, svc)
	if flags&SkipAttributes == 0 {
		writeAttributes(jw, svc.Attributes(), m)
	}
	jw.raw("}")
}
