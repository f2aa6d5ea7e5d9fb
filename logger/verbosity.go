package logger

import "go.uber.org/zap/zapcore"

// Verbosity level constants for CLI flag counts
const (
	VerbosityUser  = 0 // no flags: lifecycle, warnings, errors
	VerbosityDebug = 1 // -v: + debug detail (probe results, lock cleanup, broadcasts)
)

// VerbosityToLevel maps -v flag counts to zap log levels.
//
// The supervisor's lifecycle output is its primary product, so the default
// level is Info rather than Warn; any -v enables debug detail.
func VerbosityToLevel(verbosity int) zapcore.Level {
	if verbosity >= VerbosityDebug {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}
