// Package reasons derives IPP printer-state-reasons keywords from polled
// printer values.
//
// Rules are CUE boolean expressions over a fixed set of input fields:
//
//	level       current supply level (prtMarkerSuppliesLevel)
//	max         supply capacity (prtMarkerSuppliesMaxCapacity)
//	percent     level as a percentage of max, -1 when unknown
//	type        prtMarkerSuppliesType
//	class       prtMarkerSuppliesClass (3 consumed, 4 filled)
//	unit        prtMarkerSuppliesSupplyUnit
//	description prtMarkerSuppliesDescription
//	index       supply index
//	status      hrPrinterStatus
//	errorState  keywords from DecodeErrorState
//
// A rule whose expression refers to a field the inputs do not carry simply
// does not match.
//
// # Basic Usage
//
//	engine, err := reasons.NewEngine(reasons.BuiltinRules(), logger)
//	if err != nil {
//		return err
//	}
//	matches, err := engine.Evaluate(ctx, reasons.Inputs{
//		"level": 2, "max": 100, "percent": 2, "type": 3, "class": 3,
//	})
//	// matches[0].Keyword() == "toner-low-warning"
package reasons

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/geekxflood/printkit/logging"
)

// Severity is the IPP keyword suffix of a reason.
type Severity string

const (
	SeverityReport  Severity = "report"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// inputNames are the fields a rule expression may refer to.
var inputNames = []string{
	"level", "max", "percent", "type", "class", "unit",
	"description", "index", "status", "errorState",
}

var (
	identRegex = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)
	inputPath  = cue.ParsePath("input")
	resultPath = cue.ParsePath("result")
)

// Rule maps a condition on the inputs to a reason keyword.
type Rule struct {
	Name     string   `json:"name" yaml:"name"`
	Expr     string   `json:"expr" yaml:"expr"`
	Reason   string   `json:"reason" yaml:"reason"`
	Severity Severity `json:"severity" yaml:"severity"`
}

// Inputs holds the values a rule is evaluated against.
type Inputs map[string]any

// Set adds or updates a value. It is safe on a nil Inputs.
func (in *Inputs) Set(key string, value any) {
	if *in == nil {
		*in = make(Inputs)
	}
	(*in)[key] = value
}

// Get returns the value for key and whether it exists.
func (in Inputs) Get(key string) (any, bool) {
	value, ok := in[key]
	return value, ok
}

// Match is a rule that held for an input.
type Match struct {
	Rule     string
	Reason   string
	Severity Severity
}

// Keyword renders the reason the way printer-state-reasons carries it:
// "-report" and "-warning" are appended, errors keep the bare keyword.
func (m Match) Keyword() string {
	switch m.Severity {
	case SeverityReport, SeverityWarning:
		return m.Reason + "-" + string(m.Severity)
	}
	return m.Reason
}

// EvaluationStats counts engine activity.
type EvaluationStats struct {
	TotalEvaluations int64         `json:"total_evaluations"`
	TotalMatches     int64         `json:"total_matches"`
	AverageDuration  time.Duration `json:"average_duration"`
}

type compiledRule struct {
	Rule
	compiled cue.Value
}

// Engine evaluates compiled rules. It is safe for concurrent use;
// evaluations are serialized because CUE values are not.
type Engine struct {
	mu     sync.Mutex
	ctx    *cue.Context
	rules  []compiledRule
	stats  EvaluationStats
	logger logging.Logger
}

// NewEngine validates and compiles rules. Rule names must be unique.
func NewEngine(rules []Rule, logger logging.Logger) (*Engine, error) {
	e := &Engine{
		ctx:    cuecontext.New(),
		logger: logging.OrDiscard(logger),
	}

	seen := make(map[string]bool, len(rules))
	for i, rule := range rules {
		if err := validateRule(rule); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		if seen[rule.Name] {
			return nil, fmt.Errorf("rule %d: duplicate rule name %q", i, rule.Name)
		}
		seen[rule.Name] = true

		if rule.Severity == "" {
			rule.Severity = SeverityWarning
		}
		compiled, err := e.compile(rule.Expr)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.Name, err)
		}
		e.rules = append(e.rules, compiledRule{Rule: rule, compiled: compiled})
	}
	e.logger.Debug("compiled reason rules", "count", len(e.rules))
	return e, nil
}

func validateRule(rule Rule) error {
	switch {
	case strings.TrimSpace(rule.Name) == "":
		return errors.New("rule name cannot be empty")
	case strings.TrimSpace(rule.Expr) == "":
		return errors.New("rule expression cannot be empty")
	case strings.TrimSpace(rule.Reason) == "":
		return errors.New("rule reason cannot be empty")
	}
	switch rule.Severity {
	case "", SeverityReport, SeverityWarning, SeverityError:
		return nil
	}
	return fmt.Errorf("invalid severity %q (must be report, warning or error)", rule.Severity)
}

// compile wraps expr in a struct that binds each input name expr mentions
// to the corresponding field of input.
func (e *Engine) compile(expr string) (cue.Value, error) {
	mentioned := make(map[string]bool)
	for _, ident := range identRegex.FindAllString(expr, -1) {
		mentioned[ident] = true
	}

	var b strings.Builder
	b.WriteString("{\n\tinput: _\n")
	for _, name := range inputNames {
		if mentioned[name] {
			fmt.Fprintf(&b, "\t%s: input.%s\n", name, name)
		}
	}
	fmt.Fprintf(&b, "\tresult: %s\n}", expr)

	compiled := e.ctx.CompileString(b.String(), cue.Filename("rule_expr"))
	if err := compiled.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("failed to compile expression '%s': %w", expr, err)
	}
	return compiled, nil
}

// Rules returns the compiled rules in evaluation order.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	for i, r := range e.rules {
		out[i] = r.Rule
	}
	return out
}

// Evaluate returns every rule that holds for inputs, in rule order.
func (e *Engine) Evaluate(ctx context.Context, inputs Inputs) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	encoded := e.ctx.Encode(map[string]any(inputs))
	if err := encoded.Err(); err != nil {
		return nil, fmt.Errorf("failed to encode input data: %w", err)
	}

	var matches []Match
	for i := range e.rules {
		rule := &e.rules[i]
		if !holds(rule.compiled, encoded) {
			continue
		}
		matches = append(matches, Match{Rule: rule.Name, Reason: rule.Reason, Severity: rule.Severity})
	}

	e.updateStats(time.Since(start), len(matches))
	return matches, nil
}

// Keywords evaluates every input set and returns the distinct keywords of
// all matches, sorted.
func (e *Engine) Keywords(ctx context.Context, inputs ...Inputs) ([]string, error) {
	seen := make(map[string]bool)
	for _, in := range inputs {
		matches, err := e.Evaluate(ctx, in)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			seen[m.Keyword()] = true
		}
	}

	keywords := make([]string, 0, len(seen))
	for k := range seen {
		keywords = append(keywords, k)
	}
	sort.Strings(keywords)
	return keywords, nil
}

// holds reports whether the rule's result is concretely true.
func holds(compiled, input cue.Value) bool {
	filled := compiled.FillPath(inputPath, input)
	if filled.Err() != nil {
		return false
	}
	result := filled.LookupPath(resultPath)
	if result.Err() != nil || result.Kind() != cue.BoolKind {
		return false
	}
	ok, err := result.Bool()
	return err == nil && ok
}

// Stats returns a snapshot of the counters.
func (e *Engine) Stats() EvaluationStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

func (e *Engine) updateStats(d time.Duration, matches int) {
	e.stats.TotalEvaluations++
	e.stats.TotalMatches += int64(matches)
	if e.stats.AverageDuration == 0 {
		e.stats.AverageDuration = d
		return
	}
	e.stats.AverageDuration = time.Duration(0.9*float64(e.stats.AverageDuration) + 0.1*float64(d))
}
