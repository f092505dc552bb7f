package errors

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// CLIErrorAdapter handles error presentation and exit code determination for CLI applications.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{
		verbose: verbose,
		logger:  logger,
	}
}

// ExitCodeFor determines the appropriate exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}

	if bve, ok := As(err); ok {
		return a.exitCodeFor(bve)
	}

	return 1
}

// exitCodeFor maps BookVersionsError categories to exit codes.
func (a *CLIErrorAdapter) exitCodeFor(err *BookVersionsError) int {
	switch err.Category {
	case CategoryValidation:
		return 2 // Invalid usage
	case CategoryNotFound:
		return 4
	case CategoryPermission:
		return 5
	case CategoryConfig:
		return 7
	case CategoryStorage:
		return 8
	case CategoryCycle, CategoryResolution:
		return 11 // Collection data error
	case CategoryRuntime:
		return 12
	case CategoryInternal:
		return 10 // Internal error
	default:
		return 1 // General error
	}
}

// FormatError formats an error for user-friendly display.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}

	if bve, ok := As(err); ok {
		return a.formatStructured(bve)
	}

	return fmt.Sprintf("Error: %v", err)
}

// formatStructured formats a BookVersionsError for display.
func (a *CLIErrorAdapter) formatStructured(err *BookVersionsError) string {
	if a.verbose {
		return err.Error()
	}

	switch err.Category {
	case CategoryConfig, CategoryValidation, CategoryPermission, CategoryNotFound:
		return err.Message
	default:
		return fmt.Sprintf("%s: %s", err.Category, err.Message)
	}
}

// HandleError processes an error and exits the program with appropriate code.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}

	exitCode := a.ExitCodeFor(err)
	message := a.FormatError(err)

	if a.shouldLog(err) {
		a.logError(err)
	}

	fmt.Fprintf(os.Stderr, "%s\n", message)
	os.Exit(exitCode)
}

// shouldLog determines if an error should be logged.
func (a *CLIErrorAdapter) shouldLog(err error) bool {
	if a.verbose {
		return true
	}

	if bve, ok := As(err); ok {
		return bve.Category == CategoryInternal ||
			bve.Category == CategoryRuntime ||
			bve.Severity == SeverityFatal
	}

	return true
}

// logError logs an error with appropriate level and context.
func (a *CLIErrorAdapter) logError(err error) {
	if bve, ok := As(err); ok {
		level := a.slogLevel(bve.Severity)
		attrs := []slog.Attr{
			slog.String("category", string(bve.Category)),
		}
		for k, v := range bve.Context {
			attrs = append(attrs, slog.Any(k, v))
		}
		if bve.Retryable {
			attrs = append(attrs, slog.Bool("retryable", true))
		}

		a.logger.LogAttrs(context.Background(), level, bve.Message, attrs...)
		return
	}

	a.logger.Error("Unclassified error", "error", err)
}

// slogLevel converts error severity to an slog level.
func (a *CLIErrorAdapter) slogLevel(severity ErrorSeverity) slog.Level {
	switch severity {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	case SeverityFatal:
		return slog.LevelError
	default:
		return slog.LevelError
	}
}
