package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/viant/afs"
	"go.uber.org/zap"

	"github.com/viant/obsdsl/internal/build"
	"github.com/viant/obsdsl/internal/config"
	"github.com/viant/obsdsl/internal/diag"
	"github.com/viant/obsdsl/internal/watch"
	"github.com/viant/obsdsl/manifest"
)

var (
	configPath string
	watchFlag  bool
)

// buildCmd runs the parse -> transpile -> manifest pipeline: it exits
// non-zero and prints the full diagnostic list on any parse/transpile
// error, and never partially writes a manifest.
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Compile rule sources into a distribution directory",
	RunE:  runBuild,
}

func init() {
	buildCmd.Flags().StringVarP(&configPath, "config", "c", "build.yaml", "path to the build configuration")
	buildCmd.Flags().BoolVar(&watchFlag, "watch", false, "rebuild on every rule-file change")
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	root := filepath.Dir(configPath)
	fs := afs.New()
	writer := manifest.NewWriter(fs)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := buildOnce(ctx, fs, writer, root, cfg); err != nil {
		return err
	}
	logger.Info("build complete", zap.String("output", cfg.Output))

	if !cfg.Watch && !watchFlag {
		return nil
	}
	return runWatch(ctx, fs, writer, root, cfg)
}

func buildOnce(ctx context.Context, fs afs.Service, writer *manifest.Writer, root string, cfg *config.BuildConfig) error {
	result, err := build.Run(ctx, fs, root, cfg)
	if err != nil {
		if diags, ok := err.(diag.List); ok {
			for _, d := range diags.All() {
				fmt.Fprintln(os.Stderr, d.String())
			}
		}
		return fmt.Errorf("build: %w", err)
	}
	if err := writer.Write(ctx, result.Manifest, cfg.Output); err != nil {
		return fmt.Errorf("build: writing manifest: %w", err)
	}
	return nil
}

// runWatch rebuilds on every rule-file change under root until the process
// receives an interrupt/termination signal.
func runWatch(ctx context.Context, fs afs.Service, writer *manifest.Writer, root string, cfg *config.BuildConfig) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	onError := func(err error) { logger.Error("watch error", zap.Error(err)) }
	onChange := func() {
		if err := buildOnce(ctx, fs, writer, root, cfg); err != nil {
			logger.Error("rebuild failed", zap.Error(err))
			return
		}
		logger.Info("rebuild complete", zap.String("output", cfg.Output))
	}

	w, err := watch.New(root, 300*time.Millisecond, onChange, onError)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}
	w.Start(ctx)
	logger.Info("watching for rule changes", zap.String("root", root))

	<-ctx.Done()
	w.Stop()
	return nil
}
