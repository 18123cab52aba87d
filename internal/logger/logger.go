// Package logger configures the process-wide zap logger and exposes
// context-aware retrieval that carries trace correlation fields.
package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/veeville2011/try-this-look-sub005/internal/config"
)

// New builds the root logger. Production settings emit JSON; everything else
// gets the development console encoder.
func New(production bool) (*zap.Logger, error) {
	if production {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// FromContext returns the global logger enriched with trace_id and span_id
// when the context carries a sampled span.
func FromContext(ctx context.Context) *zap.Logger {
	log := zap.L()
	if ctx == nil {
		return log
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return log
	}
	return log.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

// Module provides the root *zap.Logger and installs it as the global.
var Module = fx.Module("logger",
	fx.Provide(func(lc fx.Lifecycle, cfg config.Config) (*zap.Logger, error) {
		log, err := New(cfg.IsProduction())
		if err != nil {
			return nil, err
		}
		restore := zap.ReplaceGlobals(log)
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				restore()
				_ = log.Sync()
				return nil
			},
		})
		return log, nil
	}),
)
