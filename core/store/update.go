package store

import (
	"fmt"

	"sysdb/core/sdbdata"
)

// StoreHost creates or updates a host. It is the first of the six update
// entry points of spec.md §4.1/§6.1.
func (s *Store) StoreHost(name string, ts Timestamp, backend string) (Status, error) {
	if name == "" {
		return 0, fmt.Errorf("store host: %w", ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lower := foldName(name)
	h, ok := s.hosts.get(lower)
	if !ok {
		h = newHost(name, ts)
		h.addBackend(backend)
		s.hosts.insert(lower, h)
		return StatusUpdated, nil
	}

	status := h.touch(ts)
	if status == StatusUpdated {
		h.addBackend(backend)
	}
	return status, nil
}

// StoreService creates or updates a service belonging to an existing host.
func (s *Store) StoreService(hostName, svcName string, ts Timestamp, backend string) (Status, error) {
	if hostName == "" || svcName == "" {
		return 0, fmt.Errorf("store service: %w", ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.hosts.get(foldName(hostName))
	if !ok {
		return 0, fmt.Errorf("store service %q on host %q: %w", svcName, hostName, ErrMissingParent)
	}

	lower := foldName(svcName)
	svc, ok := h.services.get(lower)
	if !ok {
		svc = newService(svcName, ts, h)
		svc.addBackend(backend)
		h.services.insert(lower, svc)
		return StatusUpdated, nil
	}

	status := svc.touch(ts)
	if status == StatusUpdated {
		svc.addBackend(backend)
	}
	return status, nil
}

// StoreMetric creates or updates a metric belonging to an existing host.
// descriptor may be nil; a nil descriptor never clears a previously
// recorded one (§4.1 "later descriptor updates overwrite; a null
// descriptor ... does not revert").
func (s *Store) StoreMetric(hostName, metricName string, descriptor *MetricStoreRef, ts Timestamp, backend string) (Status, error) {
	if hostName == "" || metricName == "" {
		return 0, fmt.Errorf("store metric: %w", ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.hosts.get(foldName(hostName))
	if !ok {
		return 0, fmt.Errorf("store metric %q on host %q: %w", metricName, hostName, ErrMissingParent)
	}

	lower := foldName(metricName)
	m, ok := h.metrics.get(lower)
	if !ok {
		m = newMetric(metricName, ts, h)
		if descriptor != nil {
			ref := *descriptor
			m.descriptor = &ref
		}
		m.addBackend(backend)
		h.metrics.insert(lower, m)
		return StatusUpdated, nil
	}

	status := m.touch(ts)
	if status == StatusUpdated {
		if descriptor != nil {
			ref := *descriptor
			m.descriptor = &ref
		}
		m.addBackend(backend)
	}
	return status, nil
}

// StoreAttribute creates or updates a host-level attribute. Service and
// metric attributes use StoreServiceAttribute and StoreMetricAttribute.
func (s *Store) StoreAttribute(hostName, key string, value sdbdata.Datum, ts Timestamp, backend string) (Status, error) {
	if hostName == "" || key == "" {
		return 0, fmt.Errorf("store attribute: %w", ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.hosts.get(foldName(hostName))
	if !ok {
		return 0, fmt.Errorf("store attribute %q on host %q: %w", key, hostName, ErrMissingParent)
	}

	return storeAttr(h.attributes, key, ts, value, backend, ParentRef{Host: h})
}

// StoreServiceAttribute creates or updates an attribute on an existing
// service.
func (s *Store) StoreServiceAttribute(hostName, svcName, key string, value sdbdata.Datum, ts Timestamp, backend string) (Status, error) {
	if hostName == "" || svcName == "" || key == "" {
		return 0, fmt.Errorf("store service attribute: %w", ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.hosts.get(foldName(hostName))
	if !ok {
		return 0, fmt.Errorf("store attribute %q on service %q/%q: %w", key, hostName, svcName, ErrMissingParent)
	}
	svc, ok := h.services.get(foldName(svcName))
	if !ok {
		return 0, fmt.Errorf("store attribute %q on service %q/%q: %w", key, hostName, svcName, ErrMissingParent)
	}

	return storeAttr(svc.attributes, key, ts, value, backend, ParentRef{Host: h, Service: svc})
}

// StoreMetricAttribute creates or updates an attribute on an existing
// metric.
func (s *Store) StoreMetricAttribute(hostName, metricName, key string, value sdbdata.Datum, ts Timestamp, backend string) (Status, error) {
	if hostName == "" || metricName == "" || key == "" {
		return 0, fmt.Errorf("store metric attribute: %w", ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.hosts.get(foldName(hostName))
	if !ok {
		return 0, fmt.Errorf("store attribute %q on metric %q/%q: %w", key, hostName, metricName, ErrMissingParent)
	}
	m, ok := h.metrics.get(foldName(metricName))
	if !ok {
		return 0, fmt.Errorf("store attribute %q on metric %q/%q: %w", key, hostName, metricName, ErrMissingParent)
	}

	return storeAttr(m.attributes, key, ts, value, backend, ParentRef{Host: h, Metric: m})
}

// storeAttr implements the shared create-or-update logic for host, service
// and metric attributes: the parent's attribute index has already been
// resolved by the caller, which is the only thing that differs between the
// three public entry points above.
func storeAttr(idx *orderedIndex[*Attribute], key string, ts Timestamp, value sdbdata.Datum, backend string, parent ParentRef) (Status, error) {
	lower := foldName(key)
	attr, ok := idx.get(lower)
	if !ok {
		attr = newAttribute(key, ts, value, parent)
		attr.addBackend(backend)
		idx.insert(lower, attr)
		return StatusUpdated, nil
	}

	status := attr.touch(ts)
	if status == StatusUpdated {
		attr.value = value.Copy()
		attr.addBackend(backend)
	}
	return status, nil
}
