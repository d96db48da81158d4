// Package manifest is the Manifest Writer. It takes
// the already-compiled artifacts produced by compile/oal, compile/mal and
// compile/lal and renders them into a fixed distribution file set,
// deterministically sorted so identical input always yields byte-identical
// output.
package manifest

import (
	"sort"

	compilelal "github.com/viant/obsdsl/compile/lal"
	compilemal "github.com/viant/obsdsl/compile/mal"
	"github.com/viant/obsdsl/compile/oal"
	"github.com/viant/obsdsl/model"
	"github.com/viant/obsdsl/runtime/scope"
)

// RuleGroupResult is everything one MAL rule group (one metricsRules/
// metrics YAML block) produced, plus the file-level filter it was compiled
// under, if any.
type RuleGroupResult struct {
	Metrics []*compilemal.CompiledExpression
	Filter  *compilemal.CompiledFilter // nil when the rule group has no `filter` literal
}

// LALRuleResult is one compiled LAL rule plus the human name it was
// declared under.
type LALRuleResult struct {
	RuleName string
	Script   *compilelal.CompiledScript
}

// Manifest aggregates every artifact one `obsdslc build` run produced. It
// holds no file-system concerns of its own; Write renders it.
type Manifest struct {
	OAL        *oal.Result
	MALGroups  []RuleGroupResult
	LALRules   []LALRuleResult
	ScopeDecls []scope.Declaration
	ConfigData map[string]model.ConfigDataDocument // path (under config-data/) -> rule-model payload

	// AnnotationScan holds every other scanned-annotation listing besides
	// ScopeDeclaration (which gets its own field because the Scope Registry
	// needs it typed, not just as manifest text): Kind -> FQNs in that kind.
	AnnotationScan map[string][]string
	// MeterFunctions is the functionName -> FQN table for
	// annotation-scan/MeterFunction.txt.
	MeterFunctions map[string]string
}

// distinctFilters collects every CompiledFilter across all rule groups,
// deduplicated by literal text and sorted by FQN (which already encodes
// load order via its rising index).
func (m Manifest) distinctFilters() []*compilemal.CompiledFilter {
	seen := map[string]bool{}
	var out []*compilemal.CompiledFilter
	for _, g := range m.MALGroups {
		if g.Filter == nil || seen[g.Filter.Literal] {
			continue
		}
		seen[g.Filter.Literal] = true
		out = append(out, g.Filter)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FQN < out[j].FQN })
	return out
}

func (m Manifest) allMetrics() []*compilemal.CompiledExpression {
	var out []*compilemal.CompiledExpression
	for _, g := range m.MALGroups {
		out = append(out, g.Metrics...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MetricName < out[j].MetricName })
	return out
}
