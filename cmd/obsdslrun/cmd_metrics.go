package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/viant/afs"
	"go.uber.org/zap"

	compilelal "github.com/viant/obsdsl/compile/lal"
	compilemal "github.com/viant/obsdsl/compile/mal"
	"github.com/viant/obsdsl/model"
	"github.com/viant/obsdsl/runtime/family"
	"github.com/viant/obsdsl/runtime/family/promsink"
	"github.com/viant/obsdsl/runtime/loader"
)

var (
	metricName string
	inputPath  string
)

// metricRecord is one line of the JSONL feed format: a raw sample
// a compiled expression's Env can be built from.
type metricRecord struct {
	MetricName string            `json:"metricName"`
	Labels     map[string]string `json:"labels"`
	Value      float64           `json:"value"`
	Timestamp  int64             `json:"timestamp"`
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Replay a JSONL sample feed through one compiled metric",
	RunE:  runMetrics,
}

func init() {
	metricsCmd.Flags().StringVar(&metricName, "metric", "", "the compiled metric to evaluate (required)")
	metricsCmd.Flags().StringVar(&inputPath, "input", "", "path to a JSONL sample feed (required)")
	metricsCmd.MarkFlagRequired("metric")
	metricsCmd.MarkFlagRequired("input")
}

func runMetrics(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	fs := afs.New()
	malCompiler := compilemal.NewCompiler(&compilemal.Context{Counters: family.NewCounterWindow(0)})
	lalCtx := &compilemal.Context{Counters: family.NewCounterWindow(0)}
	ld := loader.New(fs, distDir, malCompiler, lalCtx, compilelal.NewRateLimiter())
	if err := ld.Start(ctx); err != nil {
		return fmt.Errorf("loading distribution %s: %w", distDir, err)
	}

	env, err := readMetricFeed(inputPath)
	if err != nil {
		return err
	}

	compiled, err := ld.ParseMetric(metricName, "")
	if err != nil {
		return err
	}
	result, err := compiled.Eval(env)
	if err != nil {
		return fmt.Errorf("evaluating %s: %w", metricName, err)
	}

	sink := promsink.New(nil)
	if err := sink.Observe(result); err != nil {
		return fmt.Errorf("publishing %s: %w", metricName, err)
	}

	for _, s := range result.Samples {
		logger.Info("sample",
			zap.String("name", s.Name),
			zap.Float64("value", s.Value),
			zap.Int64("timestamp", s.Timestamp),
		)
	}
	return nil
}

// readMetricFeed groups a JSONL sample feed into a family.Env, one
// SampleFamily per distinct metricName.
func readMetricFeed(path string) (family.Env, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	byName := map[string][]model.Sample{}
	order := []string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec metricRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		pairs := make([][2]string, 0, len(rec.Labels))
		for k, v := range rec.Labels {
			pairs = append(pairs, [2]string{k, v})
		}
		sample := model.Sample{
			Name:      rec.MetricName,
			Labels:    model.NewLabels(pairs...),
			Value:     rec.Value,
			Timestamp: rec.Timestamp,
		}
		if _, ok := byName[rec.MetricName]; !ok {
			order = append(order, rec.MetricName)
		}
		byName[rec.MetricName] = append(byName[rec.MetricName], sample)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	env := family.Env{}
	for _, name := range order {
		env[name] = model.NewSampleFamily(name, byName[name])
	}
	return env, nil
}
