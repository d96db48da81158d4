// Package loader is the Runtime Loader. It brings a
// distribution directory a build produced back into memory at process
// start, using github.com/viant/afs so the distribution can be hosted on a
// local path, an embedded filesystem, or any other afs-supported URL.
//
// There is no Go equivalent of loading a prebuilt class file at runtime, so
// "instantiate every OAL metric/dispatcher class" and "lazily instantiate
// MAL/LAL artifacts" are both realized the same way: by re-running the
// compile/oal, compile/mal and compile/lal transpilers against the rule
// data persisted under config-data/*.json, then checking the result
// against what the manifest's line-list/key-value files recorded. A
// mismatch (wrong count, wrong order, an FQN the rule data can't produce)
// is the runtime-loader equivalent of a missing class file.
package loader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/url"

	compilelal "github.com/viant/obsdsl/compile/lal"
	compilemal "github.com/viant/obsdsl/compile/mal"
	"github.com/viant/obsdsl/compile/oal"
	"github.com/viant/obsdsl/lang/lal"
	"github.com/viant/obsdsl/model"
	"github.com/viant/obsdsl/runtime/family"
	"github.com/viant/obsdsl/runtime/scope"
)

type malRuleEntry struct {
	rule model.MetricRule
	exp  model.MetricExp
}

type lalRuleEntry struct {
	ruleName string
	dsl      string
}

// Loader is the process-wide registry resolved once at
// Start, with MAL/LAL artifacts built and cached lazily on first lookup.
type Loader struct {
	fs   afs.Service
	base string

	malCompiler *compilemal.Compiler
	lalCtx      *compilemal.Context
	limiter     *compilelal.RateLimiter

	Scope *scope.Registry

	mu               sync.RWMutex
	disabled         map[string]bool
	filterFQNs       map[string]string // filter literal -> FQN
	malRulesByMetric map[string]malRuleEntry
	lalRulesByHash   map[string]lalRuleEntry
	lalDSLByName     map[string]string // rule name -> canonical DSL, for name-based lookup

	malCache map[string]*compilemal.CompiledExpression
	lalCache map[string]*compilelal.CompiledScript

	oal *oal.Result
}

// New builds a Loader rooted at base (an afs URL or local path). malCompiler
// and lalCtx/limiter are shared across every artifact this loader compiles,
// the same way one process-wide Context is shared across metrics compiled
// at build time.
func New(fs afs.Service, base string, malCompiler *compilemal.Compiler, lalCtx *compilemal.Context, limiter *compilelal.RateLimiter) *Loader {
	return &Loader{
		fs:               fs,
		base:             base,
		malCompiler:      malCompiler,
		lalCtx:           lalCtx,
		limiter:          limiter,
		Scope:            scope.New(),
		disabled:         map[string]bool{},
		filterFQNs:       map[string]string{},
		malRulesByMetric: map[string]malRuleEntry{},
		lalRulesByHash:   map[string]lalRuleEntry{},
		lalDSLByName:     map[string]string{},
		malCache:         map[string]*compilemal.CompiledExpression{},
		lalCache:         map[string]*compilelal.CompiledScript{},
	}
}

// Start runs the five-step startup contract. It must complete
// before any metric or log line is processed.
func (l *Loader) Start(ctx context.Context) error {
	if err := l.loadScopeRegistry(ctx); err != nil {
		return fmt.Errorf("loader: scope registry: %w", err)
	}
	if err := l.loadDisabledSources(ctx); err != nil {
		return fmt.Errorf("loader: disabled sources: %w", err)
	}
	if err := l.loadConfigData(ctx); err != nil {
		return fmt.Errorf("loader: config data: %w", err)
	}
	if err := l.verifyOALInstantiation(ctx); err != nil {
		return fmt.Errorf("loader: OAL instantiation: %w", err)
	}
	if err := l.loadFilterExpressions(ctx); err != nil {
		return fmt.Errorf("loader: filter expressions: %w", err)
	}
	return nil
}

// step 1: Scope Registry, failing on any unresolvable FQN.
func (l *Loader) loadScopeRegistry(ctx context.Context) error {
	raw, err := l.download(ctx, "config-data/scope-declarations.json")
	if err != nil {
		return err
	}
	var decls []scope.Declaration
	if err := json.Unmarshal(raw, &decls); err != nil {
		return fmt.Errorf("decoding scope-declarations.json: %w", err)
	}
	if err := l.Scope.Load(decls); err != nil {
		return err
	}

	names, err := l.downloadLines(ctx, "annotation-scan/ScopeDeclaration.txt")
	if err != nil {
		return err
	}
	for _, name := range names {
		if _, ok := l.Scope.NameOf(name); !ok {
			return fmt.Errorf("unresolvable scope declaration FQN %q", name)
		}
	}
	return nil
}

// step 2: Disable Set.
func (l *Loader) loadDisabledSources(ctx context.Context) error {
	names, err := l.downloadLines(ctx, "oal-disabled-sources.txt")
	if err != nil {
		return err
	}
	l.mu.Lock()
	for _, n := range names {
		l.disabled[n] = true
	}
	l.mu.Unlock()
	return nil
}

// Disabled reports whether source was named in a `disable` statement.
func (l *Loader) Disabled(source string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.disabled[source]
}

// loadConfigData walks every config-data/*.json rule-group document
// (recursively, since a path like "oal/endpoint" nests under a
// subdirectory) and indexes its MAL/LAL/OAL content for the lazy-load and
// instantiation steps that follow.
func (l *Loader) loadConfigData(ctx context.Context) error {
	var oalFiles []*model.OALFile
	root := url.Join(l.base, "config-data")
	visitor := func(ctx context.Context, baseURL, parent string, info os.FileInfo, reader io.Reader) (bool, error) {
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".json") || info.Name() == "scope-declarations.json" {
			return true, nil
		}
		raw, err := io.ReadAll(reader)
		if err != nil {
			return false, err
		}
		var doc model.ConfigDataDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			return false, fmt.Errorf("decoding %s: %w", url.Join(baseURL, parent, info.Name()), err)
		}
		if doc.OAL != nil {
			oalFiles = append(oalFiles, doc.OAL)
		}
		if doc.MAL != nil {
			l.mu.Lock()
			for _, exp := range doc.MAL.Rule.MetricsRules {
				l.malRulesByMetric[exp.Name] = malRuleEntry{rule: doc.MAL.Rule, exp: exp}
			}
			l.mu.Unlock()
		}
		if doc.LAL != nil {
			l.mu.Lock()
			for _, rule := range doc.LAL.Rules {
				l.lalRulesByHash[rule.Hash()] = lalRuleEntry{ruleName: rule.RuleName, dsl: rule.Canonical()}
				l.lalDSLByName[rule.RuleName] = rule.Canonical()
			}
			l.mu.Unlock()
		}
		return true, nil
	}
	if err := l.fs.Walk(ctx, root, visitor); err != nil {
		return err
	}

	if len(oalFiles) > 0 {
		result, diags := oal.Emit(oalFiles, l.malCompiler)
		if diags != nil {
			return diags
		}
		l.oal = result
	}
	return nil
}

// step 3: verify the OAL metric/dispatcher classes reconstructed from
// config-data match the manifest's recorded order exactly.
func (l *Loader) verifyOALInstantiation(ctx context.Context) error {
	wantMetrics, err := l.downloadLines(ctx, "oal-metrics-classes.txt")
	if err != nil {
		return err
	}
	wantDispatchers, err := l.downloadLines(ctx, "oal-dispatcher-classes.txt")
	if err != nil {
		return err
	}
	if l.oal == nil {
		if len(wantMetrics) > 0 || len(wantDispatchers) > 0 {
			return fmt.Errorf("manifest lists OAL classes but no OAL rule data was found in config-data")
		}
		return nil
	}
	gotMetrics := make([]string, 0, len(l.oal.Metrics))
	for _, m := range l.oal.Metrics {
		gotMetrics = append(gotMetrics, m.FQN)
	}
	gotDispatchers := make([]string, 0, len(l.oal.Dispatchers))
	for _, d := range l.oal.Dispatchers {
		gotDispatchers = append(gotDispatchers, d.FQN)
	}
	// wantMetrics/wantDispatchers are already sorted (lineList sorts before
	// writing); sort the re-derived side the same way since "in order
	// listed" refers to the manifest's own deterministic ordering, not the
	// transient in-memory emission order.
	sort.Strings(gotMetrics)
	sort.Strings(gotDispatchers)
	if !sameSorted(wantMetrics, gotMetrics) {
		return fmt.Errorf("metric classes reconstructed from config-data do not match oal-metrics-classes.txt")
	}
	if !sameSorted(wantDispatchers, gotDispatchers) {
		return fmt.Errorf("dispatcher classes reconstructed from config-data do not match oal-dispatcher-classes.txt")
	}
	return nil
}

// loadFilterExpressions reads the strict filter-literal table.
func (l *Loader) loadFilterExpressions(ctx context.Context) error {
	pairs, err := l.downloadProperties(ctx, "mal-filter-expressions.properties")
	if err != nil {
		return err
	}
	l.mu.Lock()
	for literal, fqn := range pairs {
		l.filterFQNs[literal] = fqn
	}
	l.mu.Unlock()
	return nil
}

// LookupFilter resolves a filter literal to its compiled FQN; an unknown
// literal is a fatal configuration error.
func (l *Loader) LookupFilter(literal string) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	fqn, ok := l.filterFQNs[literal]
	if !ok {
		return "", fmt.Errorf("loader: unknown filter literal %q", literal)
	}
	return fqn, nil
}

// ParseMetric is the loader's first entry point: dispatch is by
// metricName; composedExpression is accepted only for diagnostics. The first lookup for a metric name compiles and caches it.
func (l *Loader) ParseMetric(metricName, composedExpression string) (*compilemal.CompiledExpression, error) {
	l.mu.RLock()
	if cached, ok := l.malCache[metricName]; ok {
		l.mu.RUnlock()
		return cached, nil
	}
	entry, ok := l.malRulesByMetric[metricName]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("loader: unknown metric %q (composed expression %q)", metricName, composedExpression)
	}

	compiled, diags := l.malCompiler.CompileMetric(entry.rule, entry.exp)
	if diags != nil {
		return nil, diags
	}
	l.mu.Lock()
	l.malCache[metricName] = compiled
	l.mu.Unlock()
	return compiled, nil
}

// LoadLogScript is the loader's second entry point: dispatch is by the
// SHA-256 of dslText.
func (l *Loader) LoadLogScript(dslText string) (*compilelal.CompiledScript, error) {
	sum := sha256.Sum256([]byte(strings.TrimSpace(dslText)))
	hash := hex.EncodeToString(sum[:])

	l.mu.RLock()
	if cached, ok := l.lalCache[hash]; ok {
		l.mu.RUnlock()
		return cached, nil
	}
	entry, ok := l.lalRulesByHash[hash]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("loader: unknown LAL script hash %q", hash)
	}

	file, diags := lal.Parse(entry.ruleName, entry.dsl)
	if diags != nil {
		return nil, diags
	}
	script := compilelal.Compile(entry.dsl, file, l.lalCtx, l.limiter, 0)
	l.mu.Lock()
	l.lalCache[hash] = script
	l.mu.Unlock()
	return script, nil
}

// ScriptForRule resolves a LAL rule by the human name it was declared
// under (lal-scripts.txt's key), for operator tooling that knows which
// named rule to run rather than the raw DSL hash the dispatch table uses.
func (l *Loader) ScriptForRule(ruleName string) (*compilelal.CompiledScript, error) {
	l.mu.RLock()
	dsl, ok := l.lalDSLByName[ruleName]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("loader: unknown LAL rule name %q", ruleName)
	}
	return l.LoadLogScript(dsl)
}

// Dispatch is the OAL dispatch(source) runtime operation: it invokes every
// metric class registered for source.SourceName, building each metric's
// environment from source's raw fields the way readMetricFeed builds one
// from a JSONL feed, and returns the non-empty results. A source name with
// no registered dispatcher yields no results rather than an error, since
// an OAL deployment is never required to cover every possible source.
func (l *Loader) Dispatch(source model.SourceRecord) ([]model.SampleFamily, error) {
	l.mu.RLock()
	oalResult := l.oal
	l.mu.RUnlock()
	if oalResult == nil {
		return nil, nil
	}

	var disp *oal.DispatcherClass
	for i := range oalResult.Dispatchers {
		if oalResult.Dispatchers[i].SourceName == source.SourceName {
			disp = &oalResult.Dispatchers[i]
			break
		}
	}
	if disp == nil {
		return nil, nil
	}

	env := family.Env{}
	for _, fieldKey := range disp.Fields {
		field := strings.TrimPrefix(fieldKey, source.SourceName+".")
		env[fieldKey] = model.NewSampleFamily(fieldKey, []model.Sample{{
			Name:      fieldKey,
			Labels:    source.Labels,
			Value:     source.Fields[field],
			Timestamp: source.Timestamp,
		}})
	}

	wanted := make(map[string]bool, len(disp.Metrics))
	for _, m := range disp.Metrics {
		wanted[m] = true
	}
	var out []model.SampleFamily
	for _, mc := range oalResult.Metrics {
		if !wanted[mc.MetricName] {
			continue
		}
		f, err := mc.Compiled.Eval(env)
		if err != nil {
			return nil, fmt.Errorf("dispatching %s to metric %s: %w", source.SourceName, mc.MetricName, err)
		}
		if !f.IsEmpty() {
			out = append(out, f)
		}
	}
	return out, nil
}

func (l *Loader) download(ctx context.Context, path string) ([]byte, error) {
	return l.fs.DownloadWithURL(ctx, url.Join(l.base, path))
}

func (l *Loader) downloadLines(ctx context.Context, path string) ([]string, error) {
	raw, err := l.download(ctx, path)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}

func (l *Loader) downloadProperties(ctx context.Context, path string) (map[string]string, error) {
	raw, err := l.download(ctx, path)
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		idx := unescapedEquals(line)
		if idx < 0 {
			continue
		}
		key := unescapePropertyKey(line[:idx])
		out[key] = line[idx+1:]
	}
	return out, nil
}

// unescapedEquals finds the first '=' not preceded by a backslash escape.
func unescapedEquals(line string) int {
	for i := 0; i < len(line); i++ {
		if line[i] == '=' && (i == 0 || line[i-1] != '\\') {
			return i
		}
	}
	return -1
}

func unescapePropertyKey(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			default:
				b.WriteByte(s[i])
			}
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func sameSorted(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
