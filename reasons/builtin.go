package reasons

import (
	"errors"
	"fmt"
)

// Supply types and classes from the Printer MIB.
const (
	SupplyTypeToner          = 3
	SupplyTypeTonerCartridge = 21
	SupplyClassConsumed      = 3
	SupplyClassFilled        = 4
)

// LowPercent is the level at or below which a consumable counts as low.
const LowPercent = 10

const isToner = "(type == 3 || type == 21)"

// BuiltinRules returns the supply-level rules applied when the configuration
// adds none of its own.
func BuiltinRules() []Rule {
	low := fmt.Sprintf("class != 4 && percent > 0 && percent <= %d", LowPercent)
	empty := "class != 4 && percent == 0"
	return []Rule{
		{Name: "toner-empty", Expr: isToner + " && " + empty, Reason: "toner-empty", Severity: SeverityError},
		{Name: "toner-low", Expr: isToner + " && " + low, Reason: "toner-low", Severity: SeverityWarning},
		{Name: "marker-supply-empty", Expr: "!" + isToner + " && " + empty, Reason: "marker-supply-empty", Severity: SeverityError},
		{Name: "marker-supply-low", Expr: "!" + isToner + " && " + low, Reason: "marker-supply-low", Severity: SeverityWarning},
		{Name: "marker-waste-full", Expr: "class == 4 && percent >= 100", Reason: "marker-waste-full", Severity: SeverityError},
		{Name: "marker-waste-almost-full", Expr: "class == 4 && percent >= 90 && percent < 100", Reason: "marker-waste-almost-full", Severity: SeverityWarning},
	}
}

// ParseRules converts rules decoded from configuration (a list of maps with
// name, expr, reason and severity) into Rules.
func ParseRules(raw any) ([]Rule, error) {
	if raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, errors.New("rules must be a list")
	}

	rules := make([]Rule, 0, len(items))
	for i, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("rule %d: must be a map", i)
		}
		var rule Rule
		for key, dst := range map[string]*string{"name": &rule.Name, "expr": &rule.Expr, "reason": &rule.Reason} {
			value, ok := fields[key].(string)
			if !ok {
				return nil, fmt.Errorf("rule %d: missing or non-string %s", i, key)
			}
			*dst = value
		}
		if severity, ok := fields["severity"].(string); ok {
			rule.Severity = Severity(severity)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
