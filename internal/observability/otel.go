package observability

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/logger"
)

// OtelConfig is filled from OTEL_* variables by the app config.
type OtelConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Environment string  `yaml:"environment"`
	Version     string  `yaml:"-"`
	Endpoint    string  `yaml:"endpoint"`
	Headers     string  `yaml:"headers"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

const tracerName = "github.com/uw-ssec/ca-biositing-sub000"

var (
	otelOnce     sync.Once
	otelShutdown func(context.Context) error
)

// InitOTel installs a global tracer provider once. The returned shutdown
// func is never nil.
func InitOTel(ctx context.Context, log *logger.Logger, cfg OtelConfig) func(context.Context) error {
	otelOnce.Do(func() {
		if !cfg.Enabled {
			return
		}
		serviceName := strings.TrimSpace(cfg.ServiceName)
		if serviceName == "" {
			serviceName = "biositing"
		}
		res, err := resource.New(ctx, resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(strings.TrimSpace(cfg.Version)),
			attribute.String("deployment.environment", strings.TrimSpace(cfg.Environment)),
		))
		if err != nil && log != nil {
			log.Warn("otel resource init failed (continuing)", "error", err)
		}

		opts := []sdktrace.TracerProviderOption{
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio(cfg.SampleRatio)))),
			sdktrace.WithResource(res),
		}
		exporter, expErr := buildTraceExporter(ctx, log, cfg)
		if expErr != nil && log != nil {
			log.Warn("otel exporter init failed (continuing)", "error", expErr)
		}
		if exporter != nil {
			opts = append(opts, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)))
		}
		tp := sdktrace.NewTracerProvider(opts...)
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
		otelShutdown = tp.Shutdown
		if log != nil {
			log.Info("otel tracing initialized", "service", serviceName, "endpoint", cfg.Endpoint)
		}
	})
	if otelShutdown == nil {
		return func(context.Context) error { return nil }
	}
	return otelShutdown
}

func sampleRatio(v float64) float64 {
	switch {
	case v <= 0:
		return 0.1
	case v > 1:
		return 1
	default:
		return v
	}
}

// parseHeaders reads "k1=v1,k2=v2".
func parseHeaders(raw string) map[string]string {
	headers := map[string]string{}
	for _, part := range strings.Split(raw, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		key, val := strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])
		if key == "" || val == "" {
			continue
		}
		headers[key] = val
	}
	if len(headers) == 0 {
		return nil
	}
	return headers
}

func buildTraceExporter(ctx context.Context, log *logger.Logger, cfg OtelConfig) (sdktrace.SpanExporter, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint != "" {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if headers := parseHeaders(cfg.Headers); headers != nil {
			opts = append(opts, otlptracehttp.WithHeaders(headers))
		}
		return otlptracehttp.New(ctx, opts...)
	}
	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	if log != nil {
		log.Warn("otel using stdout exporter (no OTLP endpoint configured)")
	}
	return exp, nil
}

// StartSpan starts a span on the global tracer provider; before InitOTel it
// yields a no-op span.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// TraceID returns the hex trace id carried by ctx, or "".
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
