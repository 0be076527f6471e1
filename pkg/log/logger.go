package log

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const serviceName = "firesync"

//nolint:gochecknoglobals
var Logger zerolog.Logger

// Init replaces the global logger once the configuration is known. Unknown
// levels fall back to info.
func Init(appID string, levelStr string) {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(levelStr)))
	if err != nil || levelStr == "" {
		level = zerolog.InfoLevel
	}
	if isTestSilentMode() {
		level = zerolog.Disabled
	}
	zerolog.SetGlobalLevel(level)

	Logger = zerolog.New(output()).With().
		Timestamp().
		Str("service", serviceName).
		Str("app_id", appID).
		Logger()
}

// Component returns a sub-logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

func output() io.Writer {
	if isTestSilentMode() {
		return io.Discard
	}
	return os.Stdout
}

//nolint:gochecknoinits
func init() {
	if isTestSilentMode() {
		Logger = zerolog.New(io.Discard)
		zerolog.SetGlobalLevel(zerolog.Disabled)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	Logger = zerolog.New(os.Stdout).With().Timestamp().Str("service", serviceName).Logger()
}

func isTestSilentMode() bool {
	if isTestMode() &&
		(os.Getenv("TEST_SILENT") == "1" || os.Getenv("TEST_SILENT") == "true") {
		return true
	}

	return false
}

func isTestMode() bool {
	for _, arg := range os.Args {
		if strings.Contains(arg, "test") || strings.HasSuffix(arg, ".test") {
			return true
		}
	}
	return false
}
