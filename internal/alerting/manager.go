package alerting

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/glowlens/glowlens-reliability/internal/metrics"
	"github.com/glowlens/glowlens-reliability/internal/models"
)

// historyCap bounds retained resolved and active history entries.
const historyCap = 1000

// Rule evaluates one condition against a health snapshot.
type Rule struct {
	Name      string
	Severity  models.Severity
	Message   string
	Predicate func(models.ServiceHealth) bool
}

// DefaultRules returns the built-in rule set.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:     "high_error_rate",
			Severity: models.SeverityWarning,
			Message:  "error rate above 10%",
			Predicate: func(h models.ServiceHealth) bool {
				return h.ErrorRate > 0.1
			},
		},
		{
			Name:     "very_high_error_rate",
			Severity: models.SeverityCritical,
			Message:  "error rate above 50%",
			Predicate: func(h models.ServiceHealth) bool {
				return h.ErrorRate > 0.5
			},
		},
		{
			Name:     "slow_response_time",
			Severity: models.SeverityWarning,
			Message:  "average response time above 5s",
			Predicate: func(h models.ServiceHealth) bool {
				return h.ResponseTime > 5*time.Second
			},
		},
		{
			Name:     "service_unhealthy",
			Severity: models.SeverityCritical,
			Message:  "service reported unhealthy",
			Predicate: func(h models.ServiceHealth) bool {
				return h.Status == models.StatusUnhealthy
			},
		},
	}
}

// Manager evaluates rules over the collector's health snapshots, tracking at
// most one active alert per (service, rule) pair. It is pure evaluation: it
// never calls downstream services.
type Manager struct {
	mu sync.Mutex

	logger    *slog.Logger
	collector *metrics.Collector
	rules     []Rule
	active    map[string]*models.Alert
	history   []*models.Alert
}

// NewManager constructs an alert manager over the given rules; nil rules use
// the defaults.
func NewManager(logger *slog.Logger, collector *metrics.Collector, rules []Rule) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Manager{
		logger:    logger,
		collector: collector,
		rules:     rules,
		active:    make(map[string]*models.Alert),
	}
}

// CheckAlerts evaluates every rule against every current health snapshot,
// raising, refreshing, and resolving alerts as predicates flip.
func (m *Manager) CheckAlerts() {
	summary := m.collector.ServiceHealthSummary()
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, health := range summary.Services {
		for _, rule := range m.rules {
			key := health.ServiceName + "|" + rule.Name
			firing := rule.Predicate(health)
			existing, isActive := m.active[key]

			switch {
			case firing && !isActive:
				alert := &models.Alert{
					ID:             uuid.NewString(),
					ServiceName:    health.ServiceName,
					RuleName:       rule.Name,
					Severity:       rule.Severity,
					Message:        rule.Message,
					StartedAt:      now,
					LastSeen:       now,
					HealthSnapshot: health,
				}
				m.active[key] = alert
				m.appendHistoryLocked(alert)
				m.logger.Warn("alert raised",
					slog.String("service", health.ServiceName),
					slog.String("rule", rule.Name),
					slog.String("severity", string(rule.Severity)))
			case firing && isActive:
				existing.LastSeen = now
				existing.HealthSnapshot = health
			case !firing && isActive:
				resolved := now
				existing.ResolvedAt = &resolved
				delete(m.active, key)
				m.logger.Info("alert resolved",
					slog.String("service", health.ServiceName),
					slog.String("rule", rule.Name))
			}
		}
	}

	m.publishGaugesLocked()
}

// ActiveAlerts returns a snapshot of the currently firing alerts.
func (m *Manager) ActiveAlerts() []models.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	alerts := make([]models.Alert, 0, len(m.active))
	for _, alert := range m.active {
		alerts = append(alerts, *alert)
	}
	return alerts
}

// AlertHistory returns up to limit most recent alerts, raised and resolved.
func (m *Manager) AlertHistory(limit int) []models.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 || limit > len(m.history) {
		limit = len(m.history)
	}
	recent := m.history[len(m.history)-limit:]
	alerts := make([]models.Alert, 0, limit)
	for _, alert := range recent {
		alerts = append(alerts, *alert)
	}
	return alerts
}

// appendHistoryLocked stores the live pointer so resolution stamps the
// existing history entry rather than appending a duplicate.
func (m *Manager) appendHistoryLocked(alert *models.Alert) {
	m.history = append(m.history, alert)
	if len(m.history) > historyCap {
		m.history = m.history[len(m.history)-historyCap:]
	}
}

func (m *Manager) publishGaugesLocked() {
	counts := map[models.Severity]int{
		models.SeverityWarning:  0,
		models.SeverityCritical: 0,
	}
	for _, alert := range m.active {
		counts[alert.Severity]++
	}
	for severity, count := range counts {
		metrics.SetActiveAlerts(string(severity), count)
	}
}
