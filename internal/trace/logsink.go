package trace

import (
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// LogSink writes events to a logrus logger as structured entries.
//
// Glob misses are warnings, builds are info, fresh skips are debug and
// package failures are errors.
type LogSink struct {
	Logger *logrus.Logger
}

// NewLogSink returns a LogSink using logger, or the logrus standard logger when nil.
func NewLogSink(logger *logrus.Logger) *LogSink {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogSink{Logger: logger}
}

func (s *LogSink) Record(event Event) {
	if s == nil || s.Logger == nil {
		return
	}
	fields := logrus.Fields{}
	if event.Type != "" {
		fields["type"] = event.Type
	}
	if event.Package != "" {
		fields["package"] = event.Package
	}
	if event.Variant != "" {
		fields["variant"] = event.Variant
	}
	if event.Reason != "" {
		fields["reason"] = event.Reason
	}
	entry := s.Logger.WithFields(fields)

	switch event.Kind {
	case EventGlobEmpty:
		entry.Warnf("no assets match '%s'", event.Pattern)
	case EventPackageFresh:
		entry.Debug("package is up to date")
	case EventPackageStale:
		entry.Debug("package needs rebuild")
	case EventVariantWritten:
		entry.WithFields(logrus.Fields{
			"bytes": humanize.Bytes(uint64(event.Bytes)),
			"files": len(event.Files),
		}).Info("wrote package variant")
	case EventPackageBuilt:
		entry.Info("package built")
	case EventPackageFailed:
		if event.Err != nil {
			entry = entry.WithError(event.Err)
		}
		entry.Error("package build failed")
	default:
		entry.Debug(string(event.Kind))
	}
}
