// Package pkglog provides the standard hclog configuration shared by the
// builder, extractor and CLI.
package pkglog

import (
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
)

// New creates a logger with pkgar's standard settings: UTC timestamps, the
// given level (see Level for the environment-derived default), JSON output
// when PKGAR_JSON_LOG is "1", and otherwise output prefixed with name.
func New(name string, level string, output io.Writer) hclog.Logger {
	if output == nil {
		output = os.Stderr
	}

	jsonFormat := os.Getenv("PKGAR_JSON_LOG") == "1"
	if !jsonFormat {
		output = NewPrefixWriter(name+": ", output)
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      hclog.LevelFromString(level),
		JSONFormat: jsonFormat,
		Output:     output,
		TimeFormat: "2006-01-02T15:04:05Z",
		TimeFn: func() time.Time {
			return time.Now().UTC()
		},
	})
}

// Level resolves the active log level from the environment, defaulting to
// warn for production safety.
func Level() string {
	if level := os.Getenv("PKGAR_LOG_LEVEL"); level != "" {
		return level
	}
	return "warn"
}
