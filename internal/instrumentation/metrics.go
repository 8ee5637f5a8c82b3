package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrResult    = "result"
	attrDomain    = "domain"
)

// Metrics records inboxfleet metrics. The zero value is a no-op recorder.
type Metrics struct {
	// Google API metrics
	googleAPIOperationsTotal   metric.Int64Counter
	googleAPIOperationDuration metric.Float64Histogram

	// OAuth metrics
	oauthAuthTotal         metric.Int64Counter
	oauthTokenRefreshTotal metric.Int64Counter

	// Registry metrics
	registryOperationsTotal metric.Int64Counter

	// detailedLabels adds the account domain to Google API metrics
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all instruments initialized.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	m.googleAPIOperationsTotal, err = meter.Int64Counter(
		"google_api_operations_total",
		metric.WithDescription("Total number of Google API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google_api_operations_total counter: %w", err)
	}

	m.googleAPIOperationDuration, err = meter.Float64Histogram(
		"google_api_operation_duration_seconds",
		metric.WithDescription("Google API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google_api_operation_duration_seconds histogram: %w", err)
	}

	m.oauthAuthTotal, err = meter.Int64Counter(
		"oauth_auth_total",
		metric.WithDescription("Total number of OAuth authorization attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_auth_total counter: %w", err)
	}

	m.oauthTokenRefreshTotal, err = meter.Int64Counter(
		"oauth_token_refresh_total",
		metric.WithDescription("Total number of OAuth token refresh attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_token_refresh_total counter: %w", err)
	}

	m.registryOperationsTotal, err = meter.Int64Counter(
		"registry_operations_total",
		metric.WithDescription("Total number of account registry operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create registry_operations_total counter: %w", err)
	}

	return m, nil
}

// RecordGoogleAPIOperation records a Google API operation with service,
// operation, status and duration. account only contributes its domain, and
// only when detailed labels are enabled.
func (m *Metrics) RecordGoogleAPIOperation(ctx context.Context, service, operation, status, account string, duration time.Duration) {
	if m.googleAPIOperationsTotal == nil || m.googleAPIOperationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}
	if m.detailedLabels && account != "" {
		attrs = append(attrs, attribute.String(attrDomain, ExtractUserDomain(account)))
	}

	m.googleAPIOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.googleAPIOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordOAuthAuth records an OAuth authorization attempt.
// Result should be one of: "success", "failure"
func (m *Metrics) RecordOAuthAuth(ctx context.Context, result string) {
	if m.oauthAuthTotal == nil {
		return // Instrumentation not initialized
	}

	m.oauthAuthTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordOAuthTokenRefresh records an OAuth token refresh attempt.
// Result should be one of: "success", "failure", "expired"
func (m *Metrics) RecordOAuthTokenRefresh(ctx context.Context, result string) {
	if m.oauthTokenRefreshTotal == nil {
		return // Instrumentation not initialized
	}

	m.oauthTokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordRegistryOperation records an account registry operation.
func (m *Metrics) RecordRegistryOperation(ctx context.Context, operation, status string) {
	if m.registryOperationsTotal == nil {
		return // Instrumentation not initialized
	}

	m.registryOperationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	))
}

// Status maps an error to StatusSuccess or StatusError.
func Status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}
