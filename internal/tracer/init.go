package tracer

import (
	"context"

	"catalog-lens/internal/config"
	"catalog-lens/internal/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

const tracerModule = "Tracer"

// InitTracer installs a global OTLP HTTP tracer provider for the kiosk and
// returns its shutdown func. Tracing stays off unless cfg.Tracing.Enabled, and
// a failing exporter only disables tracing.
func InitTracer(cfg *config.Config, log logger.ILogger) func(context.Context) error {
	noop := func(context.Context) error { return nil }
	tc := cfg.Tracing
	if !tc.Enabled {
		log.Debug(tracerModule, "Tracing disabled (set OTEL_ENABLED=true to enable)", nil)
		return noop
	}

	exporter, err := otlptracehttp.New(context.Background(),
		otlptracehttp.WithEndpoint(tc.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		log.Warn(tracerModule, "Failed to create OTLP exporter, tracing disabled", map[string]interface{}{"error": err.Error()})
		return noop
	}

	tp := newProvider(cfg, sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	log.Info(tracerModule, "Tracer initialized", map[string]interface{}{
		"service":      tc.ServiceName,
		"endpoint":     tc.Endpoint,
		"sample_ratio": tc.SampleRatio,
	})
	return tp.Shutdown
}

// newProvider tags spans with the service and deployment and samples root
// spans at the configured ratio; child spans follow their parent.
func newProvider(cfg *config.Config, export sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		export,
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Tracing.SampleRatio))),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.Tracing.ServiceName),
			semconv.DeploymentEnvironment(cfg.App.Environment),
		)),
	)
}
