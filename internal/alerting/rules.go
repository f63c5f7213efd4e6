package alerting

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/glowlens/glowlens-reliability/internal/models"
)

// RuleSpec is one entry in a YAML rule pack.
type RuleSpec struct {
	Name      string  `yaml:"name"`
	Signal    string  `yaml:"signal"` // error_rate | response_time_seconds | status
	Threshold float64 `yaml:"threshold"`
	Status    string  `yaml:"status"`
	Severity  string  `yaml:"severity"`
	Message   string  `yaml:"message"`
}

// RulePackFile is the YAML root structure.
type RulePackFile struct {
	Rules []RuleSpec `yaml:"rules"`
}

// LoadRules reads a YAML rule pack from path. An empty or missing path keeps
// the default rule set (returns nil rules).
func LoadRules(path string, logger *slog.Logger) ([]Rule, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read rule pack: %w", err)
	}

	var file RulePackFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rule pack: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	rules := make([]Rule, 0, len(file.Rules))
	for _, spec := range file.Rules {
		rule, err := buildRule(spec)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", spec.Name, err)
		}
		rules = append(rules, rule)
	}
	if len(rules) > 0 {
		logger.Info("loaded alert rule pack", slog.String("path", path), slog.Int("rules", len(rules)))
	}
	return rules, nil
}

func buildRule(spec RuleSpec) (Rule, error) {
	if spec.Name == "" {
		return Rule{}, errors.New("rule name is required")
	}

	severity := models.SeverityWarning
	if spec.Severity == string(models.SeverityCritical) {
		severity = models.SeverityCritical
	}

	var predicate func(models.ServiceHealth) bool
	switch spec.Signal {
	case "error_rate":
		threshold := spec.Threshold
		predicate = func(h models.ServiceHealth) bool { return h.ErrorRate > threshold }
	case "response_time_seconds":
		threshold := time.Duration(spec.Threshold * float64(time.Second))
		predicate = func(h models.ServiceHealth) bool { return h.ResponseTime > threshold }
	case "status":
		status := models.HealthStatus(spec.Status)
		predicate = func(h models.ServiceHealth) bool { return h.Status == status }
	default:
		return Rule{}, fmt.Errorf("unknown signal %q", spec.Signal)
	}

	return Rule{
		Name:      spec.Name,
		Severity:  severity,
		Message:   spec.Message,
		Predicate: predicate,
	}, nil
}
