// Package routing implements the priority-ordered, first-match rule
// evaluator shared by recording auto-scheduling and error-ticket routing.
// Predicates within a rule are AND'd; rules are tried in descending
// priority order and the first fully-matching rule wins.
package routing

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"sync"
)

// Operator is one predicate comparison kind.
type Operator string

const (
	OpEquals      Operator = "eq"
	OpRegex       Operator = "regex"
	OpIn          Operator = "in"
	OpAnyMatch    Operator = "any_match"    // facts value is a []string; true if any element matches Value
	OpNoneMatch   Operator = "none_match"   // facts value is a []string; true if no element matches Value
	OpRangeGTE    Operator = "range_gte"
	OpRangeLTE    Operator = "range_lte"
)

// Predicate is one condition within a rule, evaluated against a Facts map.
type Predicate struct {
	Field string
	Op    Operator
	Value string
	Values []string
}

// Rule is a priority-ordered predicate set plus an opaque target payload
// applied on match.
type Rule struct {
	ID       string
	Priority int
	Enabled  bool
	TestMode bool
	Target   json.RawMessage
	Predicates []Predicate
}

// Facts is the set of attributes a rule's predicates are evaluated against.
type Facts map[string]any

// Engine evaluates rule sets, caching compiled regexes across calls so a
// hot rule set never recompiles its patterns.
type Engine struct {
	mu      sync.Mutex
	regexes map[string]*regexp.Regexp
}

// NewEngine creates an empty engine with its own regex cache.
func NewEngine() *Engine {
	return &Engine{regexes: make(map[string]*regexp.Regexp)}
}

// Match returns the first enabled rule (by descending priority) whose
// predicates all match facts, and whether any rule matched at all.
// Rules flagged TestMode are still returned as the match (so the caller can
// log it) — it is the caller's responsibility to suppress the side effect
// for a TestMode match.
func (e *Engine) Match(rules []Rule, facts Facts) (*Rule, bool, error) {
	ordered := make([]Rule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority > ordered[j].Priority })

	for i := range ordered {
		r := ordered[i]
		if !r.Enabled {
			continue
		}
		matched, err := e.matchesAll(r, facts)
		if err != nil {
			return nil, false, fmt.Errorf("evaluating rule %s: %w", r.ID, err)
		}
		if matched {
			return &r, true, nil
		}
	}
	return nil, false, nil
}

func (e *Engine) matchesAll(r Rule, facts Facts) (bool, error) {
	for _, p := range r.Predicates {
		ok, err := e.matches(p, facts[p.Field])
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (e *Engine) matches(p Predicate, actual any) (bool, error) {
	switch p.Op {
	case OpEquals:
		s, _ := actual.(string)
		return s == p.Value, nil
	case OpIn:
		s, _ := actual.(string)
		for _, v := range p.Values {
			if v == s {
				return true, nil
			}
		}
		return false, nil
	case OpRegex:
		re, err := e.compile(p.Value)
		if err != nil {
			return false, err
		}
		s, _ := actual.(string)
		return re.MatchString(s), nil
	case OpAnyMatch:
		items, _ := actual.([]string)
		for _, item := range items {
			for _, needle := range matchValues(p) {
				if containsFold(item, needle) {
					return true, nil
				}
			}
		}
		return false, nil
	case OpNoneMatch:
		items, _ := actual.([]string)
		for _, item := range items {
			for _, needle := range matchValues(p) {
				if containsFold(item, needle) {
					return false, nil
				}
			}
		}
		return true, nil
	case OpRangeGTE:
		n, ok := actual.(int)
		if !ok {
			return false, nil
		}
		min, err := atoiSafe(p.Value)
		if err != nil {
			return false, err
		}
		return n >= min, nil
	case OpRangeLTE:
		n, ok := actual.(int)
		if !ok {
			return false, nil
		}
		max, err := atoiSafe(p.Value)
		if err != nil {
			return false, err
		}
		return n <= max, nil
	default:
		return false, fmt.Errorf("unknown predicate operator %q", p.Op)
	}
}

// matchValues returns the set of needles an any_match/none_match predicate
// checks against: the Values list when set (the common case — multiple
// include/exclude keywords folded into one predicate), or the single Value
// otherwise.
func matchValues(p Predicate) []string {
	if len(p.Values) > 0 {
		return p.Values
	}
	return []string{p.Value}
}

// compile caches compiled regexes so a rule set hot in the evaluation path
// never pays compilation cost more than once per unique pattern.
func (e *Engine) compile(pattern string) (*regexp.Regexp, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if re, ok := e.regexes[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling regex %q: %w", pattern, err)
	}
	e.regexes[pattern] = re
	return re, nil
}
