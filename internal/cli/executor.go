package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/davidrichards/ram/internal/compressor"
	"github.com/davidrichards/ram/internal/config"
	"github.com/davidrichards/ram/internal/core"
	"github.com/davidrichards/ram/internal/packager"
	"github.com/davidrichards/ram/internal/server"
	"github.com/davidrichards/ram/internal/trace"
)

type CLIResult struct {
	ExitCode int
	Result   *packager.Result
	Report   trace.BuildReport
}

// Execute is the default entrypoint for running a canonical invocation.
func Execute(ctx context.Context, inv CLIInvocation) (CLIResult, error) {
	return ExecuteWithOutput(ctx, inv, os.Stdout, os.Stderr)
}

// ExecuteWithOutput maps a canonical CLIInvocation to a packaging pass or a
// development server.
//
// Responsibilities:
//   - Load the manifest for the selected environment.
//   - Write the build report when --trace is set, even when the pass fails.
//   - Translate packaging outcomes to semantic exit codes.
func ExecuteWithOutput(ctx context.Context, inv CLIInvocation, stdout, stderr io.Writer) (res CLIResult, execErr error) {
	res.ExitCode = ExitInternalError

	switch inv.Command {
	case CommandHelp:
		_, err := io.WriteString(stdout, inv.Usage)
		res.ExitCode = ExitSuccess
		return res, err
	case CommandVersion:
		_, err := fmt.Fprintf(stdout, "ram %s\n", Version)
		res.ExitCode = ExitSuccess
		return res, err
	}

	logger := newLogger(stderr, inv.Verbose)

	defer func() {
		if r := recover(); r != nil {
			res.ExitCode = ExitInternalError
			execErr = fmt.Errorf("panic: %v", r)
		}
	}()

	loadOpts := config.Options{
		AssetRoot:   inv.WorkDir,
		PublicRoot:  inv.PublicRoot,
		Environment: inv.Environment,
	}

	if inv.Command == CommandServe {
		return serve(ctx, inv, loadOpts, logger)
	}

	settings, err := config.Load(inv.ConfigPath, loadOpts)
	if err != nil {
		res.ExitCode = ExitConfigError
		return res, err
	}

	rec := trace.NewRecorder()
	p, err := packager.New(settings, compressor.FromSettings(settings), trace.Multi{rec, trace.NewLogSink(logger)}, packager.Options{
		Force:        inv.Force,
		PackageNames: inv.PackageNames,
	})
	if err != nil {
		res.ExitCode = ExitConfigError
		return res, err
	}

	result, runErr := p.PrecacheAll(ctx, inv.OutputDir, inv.BaseURL)
	res.Result = result
	res.Report = rec.Report()
	res.ExitCode = translateOutcomeToExitCode(result, runErr)

	if inv.Trace.Enabled {
		if err := writeReport(inv.Trace.Path, res.Report); err != nil {
			logger.WithError(err).Error("writing build report")
			if runErr == nil {
				res.ExitCode = ExitInternalError
				return res, err
			}
		}
	}

	if result != nil {
		logger.WithFields(logrus.Fields{
			"built":  len(result.InState(packager.StatePersisted)),
			"fresh":  len(result.InState(packager.StateFresh)),
			"failed": len(result.InState(packager.StateFailed)),
			"output": result.OutputDir,
		}).Info("packaging complete")
	}
	return res, runErr
}

func serve(ctx context.Context, inv CLIInvocation, loadOpts config.Options, logger *logrus.Logger) (CLIResult, error) {
	res := CLIResult{ExitCode: ExitInternalError}
	holder := packager.NewHolder(packager.HolderConfig{
		ConfigPath:    inv.ConfigPath,
		Load:          loadOpts,
		Sink:          trace.NewLogSink(logger),
		NewCompressor: compressor.FromSettings,
	})
	// Fail fast on a broken manifest instead of on the first request.
	if _, err := holder.Get(); err != nil {
		res.ExitCode = ExitConfigError
		return res, err
	}

	reload := inv.Reload || inv.Environment == config.Development
	srv := server.New(holder, logger, server.Options{ReloadEachRequest: reload})
	if err := srv.Run(ctx, inv.Addr); err != nil {
		return res, err
	}
	res.ExitCode = ExitSuccess
	return res, nil
}

func newLogger(w io.Writer, verbose bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	logger.SetLevel(logrus.InfoLevel)
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

func translateOutcomeToExitCode(result *packager.Result, err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, core.ErrMissingConfiguration), errors.Is(err, core.ErrDeprecated):
		return ExitConfigError
	case errors.Is(err, core.ErrPackageNotFound) && (result == nil || len(result.BuildOrder) == 0):
		return ExitInvalidInvocation
	case errors.Is(err, core.ErrOutputNotWritable), errors.Is(err, core.ErrTransform):
		return ExitPackageFailure
	case result != nil && len(result.InState(packager.StateFailed)) > 0:
		return ExitPackageFailure
	default:
		return ExitInternalError
	}
}

func writeReport(path string, report trace.BuildReport) error {
	if path == "" {
		return fmt.Errorf("trace enabled but path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create trace dir: %w", err)
	}
	b, err := report.CanonicalJSON()
	if err != nil {
		return err
	}
	return core.WriteFileAtomic(path, b, 0o644, time.Time{})
}
