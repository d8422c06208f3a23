package zerolog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/goterm/term"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// Config describes how log entries are rendered
type Config struct {
	Level      string
	TimeFormat string
	Colored    bool
	JSON       bool
	Output     io.Writer
}

// New creates a zerolog logger rendering to the configured output. JSON mode
// writes raw zerolog events; otherwise a colored console layout is used.
func New(cfg Config) (*zerolog.Logger, error) {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	if !cfg.JSON {
		console := zerolog.ConsoleWriter{
			Out:             out,
			NoColor:         !cfg.Colored,
			TimeFormat:      cfg.TimeFormat,
			FormatLevel:     formatLevel,
			FormatMessage:   formatMessage,
			FormatCaller:    formatCaller,
			FormatTimestamp: func(i any) string { return formatTimestamp(i, cfg.TimeFormat) },
		}
		out = console
	}

	logger := zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		CallerWithSkipFrameCount(3).
		Logger()

	return &logger, nil
}

func formatLevel(i any) string {
	level, _ := i.(string)

	switch level {
	case zerolog.LevelTraceValue, zerolog.LevelDebugValue:
		return term.Cyanf("[%s]", strings.ToUpper(level[:3]))
	case zerolog.LevelInfoValue:
		return term.Greenf("[INF]")
	case zerolog.LevelWarnValue:
		return term.Yellowf("[WRN]")
	case zerolog.LevelErrorValue, zerolog.LevelFatalValue, zerolog.LevelPanicValue:
		return term.Redf("[%s]", strings.ToUpper(level[:3]))
	default:
		return term.Whitef("[???]")
	}
}

func formatMessage(i any) string {
	const width = 72

	msg, ok := i.(string)
	if !ok || msg == "" {
		return ">"
	}

	if len(msg) < width {
		msg += strings.Repeat(" ", width-len(msg))
	}

	return term.Whitef("> %s", msg)
}

func formatCaller(i any) string {
	const fileWidth = 16

	caller, ok := i.(string)
	if !ok || caller == "" {
		return ""
	}

	file, line, found := strings.Cut(filepath.Base(caller), ":")
	if !found {
		return term.Yellowf("[%s]", file)
	}

	if len(file) > fileWidth {
		file = file[:fileWidth]
	}

	return term.Yellowf("[%-*s:%4s]", fileWidth, file, line)
}

func formatTimestamp(i any, layout string) string {
	raw, ok := i.(string)
	if !ok {
		return term.Cyanf("[%v]", i)
	}

	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		raw = ts.Local().Format(layout)
	}

	return term.Cyanf("[%s]", raw)
}
