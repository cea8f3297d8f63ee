package logger

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// SetupOTelLogExport installs a global OTLP log provider. Call before
// NewWithOTel(true). The returned function flushes and shuts the exporter
// down; call it during graceful shutdown.
func SetupOTelLogExport(ctx context.Context, endpoint string) (func(context.Context) error, error) {
	opts := []otlploghttp.Option{}
	if endpoint != "" {
		opts = append(opts, otlploghttp.WithEndpointURL(endpoint))
	}

	exporter, err := otlploghttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName("dataroom-rag"),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to build OTel resource: %w", err)
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
		sdklog.WithResource(res),
	)
	global.SetLoggerProvider(provider)

	return provider.Shutdown, nil
}
