package manifest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/url"

	"github.com/viant/obsdsl/model"
)

// Writer renders a Manifest to a destination URL (local path, or any afs-
// supported scheme) via github.com/viant/afs, skipping files whose content
// digest has not changed since the writer's last run against the same
// destination.
type Writer struct {
	fs afs.Service

	mu    sync.Mutex
	cache map[string]uint64 // destination path -> last-written content hash
}

func NewWriter(fs afs.Service) *Writer {
	return &Writer{fs: fs, cache: map[string]uint64{}}
}

// Write renders every distribution file under dest. Every file is rendered
// before any is written, so a render failure writes nothing. A failure
// while writing stops at that file: files already written in this call are
// not rolled back, and files it never reached keep their previous content.
func (w *Writer) Write(ctx context.Context, m Manifest, dest string) error {
	metrics := m.allMetrics()
	filters := m.distinctFilters()

	metricFQNs := make([]string, 0, len(metrics))
	meterClasses := map[string]string{}
	exprHashes := map[string]string{}
	for _, c := range metrics {
		metricFQNs = append(metricFQNs, c.FQN)
		meterClasses[c.MetricName] = c.FQN
		exprHashes[c.MetricName] = c.Hash
	}

	filterProps := map[string]string{}
	for _, f := range filters {
		filterProps[escapePropertyKey(f.Literal)] = f.FQN
	}

	oalMetricFQNs := make([]string, 0, len(m.OAL.Metrics))
	for _, mc := range m.OAL.Metrics {
		oalMetricFQNs = append(oalMetricFQNs, mc.FQN)
	}

	dispatcherFQNs := make([]string, 0, len(m.OAL.Dispatchers))
	for _, d := range m.OAL.Dispatchers {
		dispatcherFQNs = append(dispatcherFQNs, d.FQN)
	}

	lalScripts := map[string]string{}
	lalExpressions := map[string]string{}
	for _, r := range m.LALRules {
		lalScripts[r.RuleName] = r.Script.FQN
		lalExpressions[r.Script.Hash] = r.Script.FQN
	}

	scopeFQNs := make([]string, 0, len(m.ScopeDecls))
	for _, d := range m.ScopeDecls {
		scopeFQNs = append(scopeFQNs, d.Name)
	}

	files := map[string][]byte{
		"oal-metrics-classes.txt":               lineList(oalMetricFQNs),
		"oal-dispatcher-classes.txt":             lineList(dispatcherFQNs),
		"oal-disabled-sources.txt":               lineList(m.OAL.Disabled),
		"mal-meter-classes.txt":                  keyValueList(meterClasses),
		"mal-groovy-expression-hashes.txt":        keyValueList(exprHashes),
		"mal-expressions.txt":                    lineList(metricFQNs),
		"mal-filter-expressions.properties":       properties(filterProps),
		"lal-scripts.txt":                        keyValueList(lalScripts),
		"lal-expressions.txt":                    keyValueList(lalExpressions),
		"annotation-scan/ScopeDeclaration.txt":   lineList(scopeFQNs),
	}

	for kind, fqns := range m.AnnotationScan {
		files["annotation-scan/"+kind+".txt"] = lineList(fqns)
	}
	if len(m.MeterFunctions) > 0 {
		files["annotation-scan/MeterFunction.txt"] = keyValueList(m.MeterFunctions)
	}

	scopeEncoded, err := model.CanonicalJSON(m.ScopeDecls)
	if err != nil {
		return fmt.Errorf("manifest: config-data/scope-declarations: %w", err)
	}
	files["config-data/scope-declarations.json"] = scopeEncoded

	for path, payload := range m.ConfigData {
		encoded, err := model.CanonicalJSON(payload)
		if err != nil {
			return fmt.Errorf("manifest: config-data/%s: %w", path, err)
		}
		files["config-data/"+path+".json"] = encoded
	}

	for path, content := range files {
		if err := w.writeIfChanged(ctx, url.Join(dest, path), content); err != nil {
			return fmt.Errorf("manifest: writing %s: %w", path, err)
		}
	}
	return nil
}

func (w *Writer) writeIfChanged(ctx context.Context, dest string, content []byte) error {
	digest, err := contentHash(content)
	if err != nil {
		return err
	}
	w.mu.Lock()
	prior, known := w.cache[dest]
	w.mu.Unlock()
	if known && prior == digest {
		return nil
	}
	if err := w.fs.Upload(ctx, dest, os.FileMode(0644), bytes.NewReader(content)); err != nil {
		return err
	}
	w.mu.Lock()
	w.cache[dest] = digest
	w.mu.Unlock()
	return nil
}
