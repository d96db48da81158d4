package build

import (
	"context"
	"fmt"
	"sort"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	langlal "github.com/viant/obsdsl/lang/lal"
	langoal "github.com/viant/obsdsl/lang/oal"
	"github.com/viant/obsdsl/compile/lal"
	compilemal "github.com/viant/obsdsl/compile/mal"
	"github.com/viant/obsdsl/compile/oal"
	"github.com/viant/obsdsl/internal/config"
	"github.com/viant/obsdsl/internal/diag"
	"github.com/viant/obsdsl/manifest"
	"github.com/viant/obsdsl/model"
	"github.com/viant/obsdsl/runtime/family"
	"github.com/viant/obsdsl/runtime/scope"
)

// Result is what one Run produced: the assembled manifest, ready for
// manifest.Writer.
type Result struct {
	Manifest manifest.Manifest
}

// Run discovers every rule file named by cfg's source patterns under root,
// parses and transpiles them, and assembles the resulting Result. It shares
// one Context (counter window, K8s registry) across every OAL and MAL
// expression compiled in this run, matching the "one process-wide Context"
// contract compile/mal.Compiler documents.
func Run(ctx context.Context, fs afs.Service, root string, cfg *config.BuildConfig) (*Result, error) {
	oalFiles, diags := discoverOAL(ctx, fs, root, cfg.Sources.OAL)
	if diags != nil {
		return nil, diags
	}
	malRules, malEntries, diags := discoverMAL(ctx, fs, root, cfg.Sources.MAL)
	if diags != nil {
		return nil, diags
	}
	lalRules, lalEntries, diags := discoverLAL(ctx, fs, root, cfg.Sources.LAL)
	if diags != nil {
		return nil, diags
	}

	malCtx := &compilemal.Context{Counters: family.NewCounterWindow(0)}
	malCompiler := compilemal.NewCompiler(malCtx)

	oalResult, diags := oal.Emit(oalFiles, malCompiler)
	if diags != nil {
		return nil, diags
	}

	groups, diags := compileMALGroups(malCompiler, malRules)
	if diags != nil {
		return nil, diags
	}

	limiter := lal.NewRateLimiter()
	lalResults, diags := compileLALRules(malCtx, limiter, lalRules)
	if diags != nil {
		return nil, diags
	}

	configData := map[string]model.ConfigDataDocument{}
	for _, e := range oalEntries(oalFiles, malEntries, lalEntries) {
		configData[e.key] = e.doc
	}

	m := manifest.Manifest{
		OAL:        oalResult,
		MALGroups:  groups,
		LALRules:   lalResults,
		ScopeDecls: deriveScopeDeclarations(oalFiles),
		ConfigData: configData,
	}
	return &Result{Manifest: m}, nil
}

type configDataEntry struct {
	key string
	doc model.ConfigDataDocument
}

// oalEntries merges the three discovery passes' config-data entries; OAL
// files were parsed separately from their file list, so this re-associates
// each by the key its discover() pass already computed.
func oalEntries(oalFiles []*model.OALFile, mal, lalE []configDataEntry) []configDataEntry {
	var out []configDataEntry
	for _, f := range oalFiles {
		out = append(out, configDataEntry{key: configDataKey(f.Path), doc: model.ConfigDataDocument{OAL: f}})
	}
	out = append(out, mal...)
	out = append(out, lalE...)
	return out
}

func discoverOAL(ctx context.Context, fs afs.Service, root string, patterns []string) ([]*model.OALFile, diag.List) {
	entries, err := discover(ctx, fs, root, patterns)
	if err != nil {
		return nil, diag.List{{Severity: diag.Error, Message: fmt.Sprintf("discovering OAL sources: %v", err)}}
	}
	var files []*model.OALFile
	var diags diag.List
	for _, e := range entries {
		file, fileDiags := langoal.Parse(e.relPath, string(e.content))
		if fileDiags != nil {
			diags = append(diags, fileDiags...)
			continue
		}
		file.Path = e.relPath
		files = append(files, file)
	}
	if diags != nil {
		return nil, diags
	}
	return files, nil
}

// malRuleEntry pairs a parsed rule group with the relative path it was
// read from, for config-data keying.
type malRuleEntry struct {
	rule    model.MetricRule
	relPath string
}

func discoverMAL(ctx context.Context, fs afs.Service, root string, patterns []string) ([]malRuleEntry, []configDataEntry, diag.List) {
	entries, err := discover(ctx, fs, root, patterns)
	if err != nil {
		return nil, nil, diag.List{{Severity: diag.Error, Message: fmt.Sprintf("discovering MAL sources: %v", err)}}
	}
	var rules []malRuleEntry
	var configEntries []configDataEntry
	for _, e := range entries {
		var rule model.MetricRule
		if err := yaml.Unmarshal(e.content, &rule); err != nil {
			return nil, nil, diag.List{{File: e.relPath, Severity: diag.Error, Message: fmt.Sprintf("parsing MAL rule file: %v", err)}}
		}
		rule.SourceFile = e.relPath
		if rule.Dialect == "" {
			rule.Dialect = "mal"
		}
		rules = append(rules, malRuleEntry{rule: rule, relPath: e.relPath})
		configEntries = append(configEntries, configDataEntry{
			key: configDataKey(e.relPath),
			doc: model.ConfigDataDocument{MAL: &model.MALRuleGroup{Rule: rule}},
		})
	}
	return rules, configEntries, nil
}

// compileMALGroups transpiles every rule group in load order, applying
// deterministic suffix assignment across the whole corpus: the first rule
// to produce a given metric name keeps it unsuffixed, every later rule
// producing the same name receives a rising "_1", "_2", … suffix so
// cross-file name collisions can never collide in the manifest's
// metricName-keyed tables.
func compileMALGroups(compiler *compilemal.Compiler, rules []malRuleEntry) ([]manifest.RuleGroupResult, diag.List) {
	var groups []manifest.RuleGroupResult
	var diags diag.List
	filterIdx := 0
	seen := map[string]int{}
	for _, entry := range rules {
		var group manifest.RuleGroupResult
		for _, exp := range entry.rule.MetricsRules {
			occurrence := seen[exp.Name]
			seen[exp.Name] = occurrence + 1
			if occurrence > 0 {
				exp.Name = fmt.Sprintf("%s_%d", exp.Name, occurrence)
			}
			compiled, expDiags := compiler.CompileMetric(entry.rule, exp)
			if expDiags != nil {
				diags = append(diags, expDiags...)
				continue
			}
			group.Metrics = append(group.Metrics, compiled)
		}
		if entry.rule.Filter != "" {
			compiledFilter, filterDiags := compiler.CompileFilter(entry.rule.SourceFile, entry.rule.Filter, filterIdx)
			if filterDiags != nil {
				diags = append(diags, filterDiags...)
			} else {
				group.Filter = compiledFilter
				filterIdx++
			}
		}
		groups = append(groups, group)
	}
	if diags != nil {
		return nil, diags
	}
	return groups, nil
}

// lalRuleFileEntry pairs a parsed LAL rule file with its source path.
type lalRuleFileEntry struct {
	file    model.LALRuleFile
	relPath string
}

func discoverLAL(ctx context.Context, fs afs.Service, root string, patterns []string) ([]lalRuleFileEntry, []configDataEntry, diag.List) {
	entries, err := discover(ctx, fs, root, patterns)
	if err != nil {
		return nil, nil, diag.List{{Severity: diag.Error, Message: fmt.Sprintf("discovering LAL sources: %v", err)}}
	}
	var files []lalRuleFileEntry
	var configEntries []configDataEntry
	for _, e := range entries {
		var ruleFile model.LALRuleFile
		if err := yaml.Unmarshal(e.content, &ruleFile); err != nil {
			return nil, nil, diag.List{{File: e.relPath, Severity: diag.Error, Message: fmt.Sprintf("parsing LAL rule file: %v", err)}}
		}
		for i := range ruleFile.Rules {
			ruleFile.Rules[i].SourceFile = e.relPath
		}
		files = append(files, lalRuleFileEntry{file: ruleFile, relPath: e.relPath})
		configEntries = append(configEntries, configDataEntry{
			key: configDataKey(e.relPath),
			doc: model.ConfigDataDocument{LAL: &ruleFile},
		})
	}
	return files, configEntries, nil
}

func compileLALRules(ctx *compilemal.Context, limiter *lal.RateLimiter, files []lalRuleFileEntry) ([]manifest.LALRuleResult, diag.List) {
	var results []manifest.LALRuleResult
	var diags diag.List
	idx := 0
	for _, fe := range files {
		for _, rule := range fe.file.Rules {
			parsed, fileDiags := langlal.Parse(rule.SourceFile, rule.DSL)
			if fileDiags != nil {
				diags = append(diags, fileDiags...)
				continue
			}
			script := lal.Compile(rule.Canonical(), parsed, ctx, limiter, idx)
			results = append(results, manifest.LALRuleResult{RuleName: rule.RuleName, Script: script})
			idx++
		}
	}
	if diags != nil {
		return nil, diags
	}
	return results, nil
}

// deriveScopeDeclarations builds the Scope Registry's seed data from the
// Source names OAL statements reference: each distinct Source contributes
// its declaration, with its source fields being every field name OAL
// statements project from it. There is no annotation-scanner in this
// module (no JVM class graph to scan), so the build's own rule data is the
// only place this information can come from.
func deriveScopeDeclarations(files []*model.OALFile) []scope.Declaration {
	fieldsBySource := map[string]map[string]bool{}
	var order []string
	for _, f := range files {
		for _, stmt := range f.Statements {
			if fieldsBySource[stmt.Source] == nil {
				fieldsBySource[stmt.Source] = map[string]bool{}
				order = append(order, stmt.Source)
			}
			fieldsBySource[stmt.Source][stmt.Field] = true
		}
	}
	sort.Strings(order)
	decls := make([]scope.Declaration, 0, len(order))
	for _, name := range order {
		fieldSet := fieldsBySource[name]
		fields := make([]string, 0, len(fieldSet))
		for f := range fieldSet {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		decls = append(decls, scope.Declaration{Name: name, SourceFields: fields})
	}
	return decls
}
