package sinks

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"quickdraw/server/logging"
)

// ZapSink renders events through a zap logger so deployments that already
// ship zap output get duel events in the same structured stream.
type ZapSink struct {
	logger *zap.Logger
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger}
}

func (s *ZapSink) Write(event logging.Event) error {
	if s.logger == nil {
		return nil
	}

	fields := []zap.Field{
		zap.String("actor", formatEntity(event.Actor)),
		zap.String("category", event.Category),
	}
	if len(event.Targets) > 0 {
		targets := make([]string, 0, len(event.Targets))
		for _, target := range event.Targets {
			targets = append(targets, formatEntity(target))
		}
		fields = append(fields, zap.Strings("targets", targets))
	}
	if event.Payload != nil {
		fields = append(fields, zap.Any("payload", event.Payload))
	}
	for k, v := range event.Extra {
		fields = append(fields, zap.Any(k, v))
	}

	if ce := s.logger.Check(zapLevel(event.Severity), string(event.Type)); ce != nil {
		ce.Time = event.Time
		ce.Write(fields...)
	}
	return nil
}

func (s *ZapSink) Close(context.Context) error {
	if s.logger == nil {
		return nil
	}
	// Sync can fail on stderr; the events already left the buffer.
	_ = s.logger.Sync()
	return nil
}

func zapLevel(sev logging.Severity) zapcore.Level {
	switch sev {
	case logging.SeverityDebug:
		return zapcore.DebugLevel
	case logging.SeverityWarn:
		return zapcore.WarnLevel
	case logging.SeverityError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
