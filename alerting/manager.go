// Package alerting runs matcher-based rules against the object store on a
// schedule and emails when a host transitions into match (a host leaving
// match is dropped silently, with no notification), retargeted from
// the teacher's query-result-threshold alerting onto core/matcher
// predicates evaluated directly against store.Host objects.
package alerting

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"sysdb/config"
	"sysdb/core/matcher"
	"sysdb/core/store"
	"sysdb/metricstore"
	"sysdb/query"
)

// Manager evaluates every configured AlertRule against the store on its
// own schedule and fires an AlertEvent per host that transitions into
// matching; no event fires when a host stops matching.
type Manager struct {
	cfg      config.AlertingConfig
	store    *store.Store
	mstore   metricstore.Engine
	rules    []*compiledRule
	stopChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	running  bool
}

// compiledRule pairs a configured rule with its parsed matcher and
// interval, plus the set of host names currently considered "firing" so
// evaluateRule can tell a new match from one that was already active.
type compiledRule struct {
	config.AlertRule
	matcher     matcher.Matcher
	interval    time.Duration
	activeHosts map[string]bool
}

// AlertEvent is one rule transitioning into match for one host.
type AlertEvent struct {
	Rule      *compiledRule
	HostName  string
	Timestamp time.Time
	Details   string
}

// NewManager parses every configured rule's filter string into a matcher
// up front, so a malformed rule is reported at startup rather than at its
// first scheduled tick. If a "badger" metric-store engine is open (looked
// up from metricstore.Registry rather than threaded in), each rule's
// active-host set is restored from it, so a restart doesn't immediately
// re-fire for a host that was already firing when the process stopped.
func NewManager(cfg config.AlertingConfig, st *store.Store) (*Manager, error) {
	mstore, _ := metricstore.Registry.Get("badger")

	m := &Manager{
		cfg:      cfg,
		store:    st,
		mstore:   mstore,
		stopChan: make(chan struct{}),
	}

	for _, rc := range cfg.Rules {
		mtr, err := query.ParseFilter(rc.Match)
		if err != nil {
			return nil, fmt.Errorf("alerting: invalid match expression for rule %q: %w", rc.Name, err)
		}

		interval := time.Minute
		if rc.Interval != "" {
			d, err := parseInterval(rc.Interval)
			if err != nil {
				return nil, fmt.Errorf("alerting: invalid interval for rule %q: %w", rc.Name, err)
			}
			interval = d
		}

		rule := &compiledRule{
			AlertRule:   rc,
			matcher:     mtr,
			interval:    interval,
			activeHosts: make(map[string]bool),
		}
		m.restoreActiveHosts(rule)
		m.rules = append(m.rules, rule)
	}

	return m, nil
}

// restoreActiveHosts reloads rule's last-fired bookkeeping from m.mstore,
// if one is configured, treating any host fired within the last two of
// the rule's own intervals as still active.
func (m *Manager) restoreActiveHosts(rule *compiledRule) {
	if m.mstore == nil {
		return
	}

	now := time.Now()
	samples, err := m.mstore.QuerySamples(alertSeriesID(rule.Name), metricstore.Query{
		StartTime: now.Add(-2 * rule.interval),
		EndTime:   now,
	})
	if err != nil {
		log.Printf("alerting: error restoring last-fired state for rule %q: %v", rule.Name, err)
		return
	}
	for _, s := range samples {
		if h := s.Labels["host"]; h != "" {
			rule.activeHosts[h] = true
		}
	}
}

// persistFired records that rule just fired for hostName, so a restart can
// restore this via restoreActiveHosts instead of re-firing immediately.
func (m *Manager) persistFired(rule *compiledRule, hostName string) {
	if m.mstore == nil {
		return
	}
	sample := metricstore.Sample{Timestamp: time.Now(), Value: 1, Labels: map[string]string{"host": hostName}}
	if err := m.mstore.StoreSample(alertSeriesID(rule.Name), sample); err != nil {
		log.Printf("alerting: error persisting last-fired state for rule %q: %v", rule.Name, err)
	}
}

func alertSeriesID(ruleName string) string {
	return "alert:" + ruleName
}

// Start launches one evaluation loop per rule, each ticking at that rule's
// own interval.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	for _, rule := range m.rules {
		m.wg.Add(1)
		go m.runRule(rule)
	}

	m.running = true
	log.Println("alerting manager started")
	return nil
}

// Stop signals every rule's evaluation loop to exit and waits for them.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	close(m.stopChan)
	m.wg.Wait()

	m.running = false
	log.Println("alerting manager stopped")
	return nil
}

func (m *Manager) runRule(rule *compiledRule) {
	defer m.wg.Done()

	ticker := time.NewTicker(rule.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.evaluateRule(rule)
		case <-m.stopChan:
			return
		}
	}
}

// evaluateRule walks every host, tests it against the rule's matcher, and
// fires an event for each host newly matching since the previous tick;
// hosts that stop matching are dropped from the active set silently.
func (m *Manager) evaluateRule(rule *compiledRule) {
	seen := make(map[string]bool)

	for _, h := range m.store.Hosts() {
		if !rule.matcher.Match(h) {
			continue
		}
		seen[h.Name()] = true

		if rule.activeHosts[h.Name()] {
			continue
		}

		event := &AlertEvent{
			Rule:      rule,
			HostName:  h.Name(),
			Timestamp: time.Now(),
			Details:   fmt.Sprintf("host %q matched %q", h.Name(), rule.Match),
		}
		if err := m.sendAlert(event); err != nil {
			log.Printf("alerting: error sending alert for rule %q: %v", rule.Name, err)
		}
		m.persistFired(rule, h.Name())
	}

	rule.activeHosts = seen
}

// sendAlert emails the event if email alerting is enabled, otherwise logs
// it and returns.
func (m *Manager) sendAlert(event *AlertEvent) error {
	if !m.cfg.Email.Enabled {
		log.Printf("alert: %s - %s", event.Rule.Name, event.Details)
		return nil
	}

	subject := fmt.Sprintf("[%s] %s", event.Rule.Severity, event.Rule.Name)
	body := fmt.Sprintf(
		"Alert %s triggered at %s.\n\nSeverity: %s\nMatch: %s\nDetails: %s\n",
		event.Rule.Name, event.Timestamp.Format(time.RFC3339),
		event.Rule.Severity, event.Rule.Match, event.Details,
	)

	return m.sendEmail(subject, body)
}

func (m *Manager) sendEmail(subject, body string) error {
	from := m.cfg.Email.FromAddress
	to := m.cfg.Email.ToAddresses

	message := []byte(fmt.Sprintf("From: %s\r\n", from) +
		fmt.Sprintf("To: %s\r\n", strings.Join(to, ", ")) +
		fmt.Sprintf("Subject: %s\r\n", subject) +
		"\r\n" + body)

	auth := smtp.PlainAuth("", m.cfg.Email.Username, m.cfg.Email.Password, m.cfg.Email.SMTPServer)
	addr := fmt.Sprintf("%s:%d", m.cfg.Email.SMTPServer, m.cfg.Email.SMTPPort)

	if err := smtp.SendMail(addr, auth, from, to, message); err != nil {
		return fmt.Errorf("error sending email: %w", err)
	}

	log.Printf("alert email sent: %s", subject)
	return nil
}

// parseInterval extends time.ParseDuration with a "30d"-style day suffix,
// matching config.parseDuration's convention for the rest of the config.
func parseInterval(s string) (time.Duration, error) {
	if len(s) > 0 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err != nil {
			return 0, err
		}
		return time.Hour * 24 * time.Duration(days), nil
	}
	return time.ParseDuration(s)
}
