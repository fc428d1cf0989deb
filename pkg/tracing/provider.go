package tracing

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"github.com/warptools/sedar/pkg/logging"
	"github.com/warptools/sedar/sdapi"
)

// Version is reported as the otel service version.
var Version = "devel"

// ProviderConfig selects the span exporters.
// With neither a file nor HTTP export enabled, NewProvider returns nil.
type ProviderConfig struct {
	File         string // Spans are pretty-printed into this file when set.
	HTTP         bool   // Export over OTLP/HTTP; the endpoint comes from the standard OTEL_EXPORTER_OTLP_* variables.
	HTTPInsecure bool
}

// mergeResources takes all the open telemetry resources and merges them in order.
// If resources is empty then an an empty resource is returned
func mergeResources(resources ...*resource.Resource) (*resource.Resource, error) {
	if len(resources) == 0 {
		return resource.Empty(), nil
	}
	var err error
	result := resources[0]
	for _, r := range resources[1:] {
		result, err = resource.Merge(result, r)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func newResource() (*resource.Resource, error) {
	defaultResource := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(ServiceName),
		semconv.ServiceVersionKey.String(Version),
	)
	return mergeResources(
		resource.Default(),
		defaultResource,
		resource.Environment(),
	)
}

// NewProvider creates a tracer provider from cfg.
// A nil provider with a nil error means tracing is off.
//
// Errors:
//
//    - sedar-error-initialization -- an exporter could not be created
func NewProvider(ctx context.Context, cfg ProviderConfig) (_ *sdktrace.TracerProvider, retErr error) {
	logger := logging.Ctx(ctx)
	if cfg.File == "" && !cfg.HTTP {
		return nil, nil
	}
	res, err := newResource()
	if err != nil {
		return nil, sdapi.ErrorInitialization("tracing resource", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}
	exporters := []sdktrace.TracerProviderOption{}
	fileExporter, err := newFileSpanExporter(ctx, cfg.File)
	if err != nil {
		return nil, sdapi.ErrorInitialization("trace file exporter", err)
	}
	defer func() {
		if retErr != nil {
			fileExporter.Shutdown(ctx)
		}
	}()
	if fileExporter != nil {
		exporters = append(exporters, sdktrace.WithBatcher(fileExporter))
	}

	if cfg.HTTP {
		logger.Debug("", "trace http export enabled, insecure: %t", cfg.HTTPInsecure)
		httpOpts := []otlptracehttp.Option{}
		if cfg.HTTPInsecure {
			httpOpts = append(httpOpts, otlptracehttp.WithInsecure())
		}
		client := otlptracehttp.NewClient(httpOpts...)
		httpExporter, err := otlptrace.New(ctx, client)
		if err != nil {
			return nil, sdapi.ErrorInitialization("trace http exporter", err)
		}
		exporters = append(exporters, sdktrace.WithBatcher(httpExporter))
	}
	opts = append(opts, exporters...)
	return sdktrace.NewTracerProvider(opts...), nil
}

// fileSpanExporter calls Close() during Shutdown, simplifying the
// implementation for file handling
type fileSpanExporter struct {
	sdktrace.SpanExporter
	io.Closer
}

// Shutdown handles cleaning up the span exporter
//
// Errors:
//
//    - sedar-error-internal -- when an error occurs during tracing shutdown
func (e *fileSpanExporter) Shutdown(ctx context.Context) error {
	if e == nil {
		return nil
	}
	defer e.Closer.Close()
	if err := e.SpanExporter.Shutdown(ctx); err != nil {
		return sdapi.ErrorInternal("tracing shutdown failed", err)
	}
	return nil
}

// newFileSpanExporter creates or truncates the named file and uses the file with a console exporter.
func newFileSpanExporter(ctx context.Context, name string) (*fileSpanExporter, error) {
	logger := logging.Ctx(ctx)
	if name == "" {
		return nil, nil
	}
	logger.Debug("", "trace file path: %s", name)
	f, err := os.Create(name)
	if err != nil {
		return nil, err
	}

	exp, err := stdouttrace.New(
		stdouttrace.WithWriter(f),
		stdouttrace.WithPrettyPrint(),
		stdouttrace.WithoutTimestamps(),
	)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &fileSpanExporter{exp, f}, nil
}
