package logging

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
)

// ExportConfig holds the OTLP log export settings.
type ExportConfig struct {
	Endpoint       string // host:port of the OTLP HTTP collector
	Insecure       bool
	ServiceName    string
	ServiceVersion string
}

// NewExportProvider creates an OTLP logger provider that batches log
// records towards the configured collector. Pass the result to Config's
// LoggerProvider and shut it down on exit to flush pending records.
func NewExportProvider(ctx context.Context, cfg ExportConfig) (*log.LoggerProvider, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	opts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlploghttp.WithInsecure())
	}
	exporter, err := otlploghttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}

	return log.NewLoggerProvider(
		log.WithResource(res),
		log.WithProcessor(log.NewBatchProcessor(exporter)),
	), nil
}

// ShutdownProvider flushes and stops the logger provider, bounded so a
// stuck collector cannot hang process exit.
func ShutdownProvider(ctx context.Context, provider *log.LoggerProvider) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return provider.Shutdown(shutdownCtx)
}
