package observability

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertFile struct {
	Groups []struct {
		Name  string      `yaml:"name"`
		Rules []alertRule `yaml:"rules"`
	} `yaml:"groups"`
}

var seriesName = regexp.MustCompile(`odyssey_[a-z_]+`)

func loadInventoryRules(t *testing.T) []alertRule {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("..", "..", "deploy", "prometheus", "alerts", "inventory.yml"))
	require.NoError(t, err)
	var file alertFile
	require.NoError(t, yaml.Unmarshal(raw, &file))
	for _, g := range file.Groups {
		if g.Name == "inventory" {
			return g.Rules
		}
	}
	t.Fatal("inventory alert group missing")
	return nil
}

// runbookAnchors returns the heading slugs of the inventory runbook.
func runbookAnchors(t *testing.T) map[string]bool {
	t.Helper()
	f, err := os.Open(filepath.Join("..", "..", "docs", "runbook-inventory.md"))
	require.NoError(t, err)
	defer f.Close()
	anchors := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "## ") {
			continue
		}
		slug := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(line, "## ")))
		anchors[strings.ReplaceAll(slug, " ", "-")] = true
	}
	require.NoError(t, scanner.Err())
	return anchors
}

func exportedSeries(t *testing.T) map[string]bool {
	t.Helper()
	m := NewMetrics()
	m.requestsTotal.WithLabelValues("/inventory/stock", "200").Inc()
	m.requestDuration.WithLabelValues("/inventory/stock").Observe(0.01)
	m.ObserveMovement("inbound", nil)
	families, err := m.registry.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestInventoryAlertRules(t *testing.T) {
	rules := loadInventoryRules(t)
	anchors := runbookAnchors(t)
	series := exportedSeries(t)

	expected := map[string]string{
		"InventoryHighErrorRate":     "critical",
		"InventoryMovementFailures":  "warning",
		"InventoryAutoConfirmFailed": "warning",
		"IdempotencyCleanupFailed":   "warning",
	}
	require.Len(t, rules, len(expected))

	for _, rule := range rules {
		t.Run(rule.Alert, func(t *testing.T) {
			severity, ok := expected[rule.Alert]
			require.True(t, ok, "unexpected rule")
			require.Equal(t, severity, rule.Labels["severity"])
			require.NotEmpty(t, rule.For)
			require.NotEmpty(t, rule.Annotations["summary"])
			require.NotEmpty(t, rule.Annotations["description"])

			runbook := rule.Annotations["runbook"]
			require.True(t, strings.HasPrefix(runbook, "docs/runbook-inventory.md#"), runbook)
			require.True(t, anchors[strings.TrimPrefix(runbook, "docs/runbook-inventory.md#")], "missing runbook section %s", runbook)

			names := seriesName.FindAllString(rule.Expr, -1)
			require.NotEmpty(t, names)
			for _, name := range names {
				require.True(t, series[name], "expression uses unknown series %s", name)
			}
		})
	}
}
