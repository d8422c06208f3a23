package zerolog

import (
	"fmt"

	"github.com/raykavin/tonpairs/pkg/logger"
	"github.com/rs/zerolog"
)

// Adapter exposes a zerolog.Logger through logger.Logger
type Adapter struct {
	log *zerolog.Logger
}

func NewAdapter(log *zerolog.Logger) *Adapter {
	return &Adapter{log: log}
}

// Nop returns an adapter that discards everything, handy in tests
func Nop() *Adapter {
	log := zerolog.Nop()
	return &Adapter{log: &log}
}

func (a *Adapter) with(ctx zerolog.Context) logger.Logger {
	log := ctx.Logger()
	return &Adapter{log: &log}
}

// WithField implements logger.Logger.
func (a *Adapter) WithField(key string, value any) logger.Logger {
	return a.with(a.log.With().Interface(key, value))
}

// WithFields implements logger.Logger.
func (a *Adapter) WithFields(fields logger.Fields) logger.Logger {
	return a.with(a.log.With().Fields(fields))
}

// WithError implements logger.Logger.
func (a *Adapter) WithError(err error) logger.Logger {
	return a.with(a.log.With().Err(err))
}

func (a *Adapter) Trace(args ...any) { a.log.Trace().Msg(fmt.Sprint(args...)) }
func (a *Adapter) Debug(args ...any) { a.log.Debug().Msg(fmt.Sprint(args...)) }
func (a *Adapter) Info(args ...any)  { a.log.Info().Msg(fmt.Sprint(args...)) }
func (a *Adapter) Warn(args ...any)  { a.log.Warn().Msg(fmt.Sprint(args...)) }
func (a *Adapter) Error(args ...any) { a.log.Error().Msg(fmt.Sprint(args...)) }
func (a *Adapter) Fatal(args ...any) { a.log.Fatal().Msg(fmt.Sprint(args...)) }

func (a *Adapter) Tracef(format string, args ...any) { a.log.Trace().Msgf(format, args...) }
func (a *Adapter) Debugf(format string, args ...any) { a.log.Debug().Msgf(format, args...) }
func (a *Adapter) Infof(format string, args ...any)  { a.log.Info().Msgf(format, args...) }
func (a *Adapter) Warnf(format string, args ...any)  { a.log.Warn().Msgf(format, args...) }
func (a *Adapter) Errorf(format string, args ...any) { a.log.Error().Msgf(format, args...) }
func (a *Adapter) Fatalf(format string, args ...any) { a.log.Fatal().Msgf(format, args...) }

// SetLevel implements logger.Logger. It changes the level of this adapter only.
func (a *Adapter) SetLevel(level logger.Level) {
	log := a.log.Level(toZerologLevel(level))
	a.log = &log
}

// GetLevel implements logger.Logger.
func (a *Adapter) GetLevel() logger.Level {
	return toLevel(a.log.GetLevel())
}

func toLevel(level zerolog.Level) logger.Level {
	switch level {
	case zerolog.Disabled:
		return logger.Disabled
	case zerolog.TraceLevel:
		return logger.TraceLevel
	case zerolog.DebugLevel:
		return logger.DebugLevel
	case zerolog.InfoLevel:
		return logger.InfoLevel
	case zerolog.WarnLevel:
		return logger.WarnLevel
	case zerolog.ErrorLevel:
		return logger.ErrorLevel
	case zerolog.FatalLevel:
		return logger.FatalLevel
	case zerolog.PanicLevel:
		return logger.PanicLevel
	default:
		return logger.NoLevel
	}
}

func toZerologLevel(level logger.Level) zerolog.Level {
	switch level {
	case logger.Disabled:
		return zerolog.Disabled
	case logger.TraceLevel:
		return zerolog.TraceLevel
	case logger.DebugLevel:
		return zerolog.DebugLevel
	case logger.InfoLevel:
		return zerolog.InfoLevel
	case logger.WarnLevel:
		return zerolog.WarnLevel
	case logger.ErrorLevel:
		return zerolog.ErrorLevel
	case logger.FatalLevel:
		return zerolog.FatalLevel
	case logger.PanicLevel:
		return zerolog.PanicLevel
	default:
		return zerolog.NoLevel
	}
}
