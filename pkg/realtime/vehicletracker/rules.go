package vehicletracker

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog/log"
	"github.com/travigo/fleettracker/pkg/ctdf"
	"golang.org/x/exp/slices"
)

// RuleEnv is the set of values a custom rule expression can refer to
type RuleEnv struct {
	Speed                float64 `expr:"speed"`
	Heading              float64 `expr:"heading"`
	Altitude             float64 `expr:"altitude"`
	Accuracy             float64 `expr:"accuracy"`
	DistanceFromPrevious float64 `expr:"distanceFromPrevious"`
	TimeSinceLastUpdate  float64 `expr:"timeSinceLastUpdate"`
	TotalDistance        float64 `expr:"totalDistance"`
	Completion           float64 `expr:"completion"`
	Battery              float64 `expr:"battery"`
	Signal               float64 `expr:"signal"`
}

type compiledRule struct {
	rule    ctdf.AlertRule
	program *vm.Program
}

func compileRules(rules []ctdf.AlertRule) ([]*compiledRule, error) {
	var compiled []*compiledRule
	var names []string

	for i, rule := range rules {
		field := fmt.Sprintf("Settings.Rules[%d]", i)

		if rule.Name == "" {
			return nil, newValidationError(field+".Name", "rule name is required")
		}
		if slices.Contains(names, rule.Name) {
			return nil, newValidationError(field+".Name", "duplicate rule name %q", rule.Name)
		}
		names = append(names, rule.Name)

		if rule.Severity == "" {
			rule.Severity = ctdf.AlertSeverityMedium
		}
		if !slices.Contains(ctdf.AlertSeverities, rule.Severity) {
			return nil, newValidationError(field+".Severity", "unknown alert severity %q", rule.Severity)
		}

		program, err := expr.Compile(rule.Expression, expr.Env(RuleEnv{}), expr.AsBool())
		if err != nil {
			return nil, newValidationError(field+".Expression", "%s", err.Error())
		}

		compiled = append(compiled, &compiledRule{rule: rule, program: program})
	}

	return compiled, nil
}

func newRuleEnv(session *ctdf.TrackingSession, entry ctdf.LocationHistoryEntry) RuleEnv {
	env := RuleEnv{
		Speed:                entry.Speed,
		Heading:              entry.Heading,
		Altitude:             entry.Altitude,
		Accuracy:             entry.Accuracy,
		DistanceFromPrevious: entry.DistanceFromPrevious,
		TimeSinceLastUpdate:  entry.TimeSinceLastUpdate,
		TotalDistance:        session.Performance.TotalDistance,
		Completion:           session.RouteProgress.CompletionPercentage,
		Battery:              -1,
		Signal:               -1,
	}

	if session.Connectivity.Device.BatteryLevel != nil {
		env.Battery = *session.Connectivity.Device.BatteryLevel
	}
	if session.Connectivity.Device.SignalStrength != nil {
		env.Signal = *session.Connectivity.Device.SignalStrength
	}

	return env
}

// evaluateRules runs every rule and returns an alert for each one that has just become true
func evaluateRules(session *ctdf.TrackingSession, rules []*compiledRule, env RuleEnv, location *ctdf.Location) []AlertData {
	if len(rules) == 0 {
		return nil
	}
	if session.RuleStates == nil {
		session.RuleStates = map[string]bool{}
	}

	var alerts []AlertData

	for _, compiled := range rules {
		output, err := expr.Run(compiled.program, env)
		if err != nil {
			log.Error().Err(err).Str("session", session.PrimaryIdentifier).Str("rule", compiled.rule.Name).Msg("Failed to evaluate rule")
			continue
		}

		matched, _ := output.(bool)
		wasMatched := session.RuleStates[compiled.rule.Name]
		session.RuleStates[compiled.rule.Name] = matched

		if !matched || wasMatched {
			continue
		}

		message := compiled.rule.Message
		if message == "" {
			message = fmt.Sprintf("Rule %s triggered", compiled.rule.Name)
		}

		alerts = append(alerts, AlertData{
			Type:     ctdf.AlertTypeRuleViolation,
			Severity: compiled.rule.Severity,
			Message:  message,
			Location: location.Clone(),
			Metadata: map[string]string{
				"rule":       compiled.rule.Name,
				"expression": compiled.rule.Expression,
			},
		})
	}

	return alerts
}
