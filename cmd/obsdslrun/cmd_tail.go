package main

import (
	"context"
	"fmt"
	"io"

	"github.com/nxadm/tail"
	"github.com/spf13/cobra"
	"github.com/viant/afs"
	"go.uber.org/zap"

	compilelal "github.com/viant/obsdsl/compile/lal"
	compilemal "github.com/viant/obsdsl/compile/mal"
	"github.com/viant/obsdsl/runtime/family"
	"github.com/viant/obsdsl/runtime/loader"
)

var (
	ruleName     string
	logPath      string
	seekStrategy string
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Tail a log file through a compiled LAL rule",
	RunE:  runTail,
}

func init() {
	tailCmd.Flags().StringVar(&ruleName, "rule", "", "the LAL rule name to run each line through (required)")
	tailCmd.Flags().StringVar(&logPath, "file", "", "path to the log file to tail (required)")
	tailCmd.Flags().StringVar(&seekStrategy, "seek", "end", "where to start reading from: end, beginning")
	tailCmd.MarkFlagRequired("rule")
	tailCmd.MarkFlagRequired("file")
}

func runTail(cmd *cobra.Command, args []string) error {
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

	script, err := ld.ScriptForRule(ruleName)
	if err != nil {
		return err
	}

	tailConfig := tail.Config{
		Follow:   true,
		ReOpen:   true,
		Location: determineSeekPosition(seekStrategy),
		Poll:     false,
	}
	t, err := tail.TailFile(logPath, tailConfig)
	if err != nil {
		return fmt.Errorf("tailing %s: %w", logPath, err)
	}
	logger.Info("tailing", zap.String("file", logPath), zap.String("rule", ruleName))

	for {
		select {
		case <-ctx.Done():
			return t.Stop()
		case line, ok := <-t.Lines:
			if !ok {
				return nil
			}
			if line.Err != nil {
				logger.Error("tail read error", zap.Error(line.Err))
				continue
			}
			outcome, err := script.Run(line.Text)
			if err != nil {
				logger.Error("script run error", zap.Error(err), zap.String("line", line.Text))
				continue
			}
			if outcome.Aborted {
				continue
			}
			logger.Info("line processed",
				zap.Bool("sampled", outcome.Sampled),
				zap.Any("tags", outcome.Tags),
				zap.Any("metricFields", outcome.MetricFields),
			)
		}
	}
}

func determineSeekPosition(strategy string) *tail.SeekInfo {
	switch strategy {
	case "beginning":
		return &tail.SeekInfo{Offset: 0, Whence: io.SeekStart}
	case "end":
		fallthrough
	default:
		return &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd}
	}
}
