package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/turbot/pipe-fittings/constants"
	"github.com/turbot/pipe-fittings/sanitize"
	localconstants "github.com/turbot/tailpipe-source-aws-s3-sqs/constants"
)

func Initialize(name string) {
	slog.SetDefault(NewLogger(name, os.Stderr, getLogLevel(os.Getenv(localconstants.EnvLogLevel))))
}

// NewLogger returns a JSON logger writing to w which sanitizes log entries
func NewLogger(name string, w io.Writer, level slog.Leveler) *slog.Logger {
	if level == constants.LogLevelOff {
		return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	}

	handlerOptions := &slog.HandlerOptions{
		Level: level,

		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			sanitized := sanitize.Instance.SanitizeKeyValue(a.Key, a.Value.Any())

			return slog.Attr{
				Key:   a.Key,
				Value: slog.AnyValue(sanitized),
			}
		},
	}
	return slog.New(slog.NewJSONHandler(w, handlerOptions)).With("source", fmt.Sprintf("tailpipe-source-%s", name))
}

func getLogLevel(levelEnv string) slog.Leveler {
	switch strings.ToLower(levelEnv) {
	case "trace", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return constants.LogLevelOff
	}
}
