// Package instrumentation provides OpenTelemetry metrics, tracing and audit
// logging for inboxfleet.
//
// Instrumentation is off by default. When enabled, metrics and traces are
// exported when the command finishes (Provider.Shutdown flushes them).
//
// # Metrics
//
//   - google_api_operations_total: Counter of Google API operations by service, operation, status
//   - google_api_operation_duration_seconds: Histogram of Google API operation durations
//   - oauth_auth_total: Counter of browser authorizations by result
//   - oauth_token_refresh_total: Counter of token refresh attempts by result
//   - registry_operations_total: Counter of account registry operations by operation, status
//
// # Tracing
//
// Spans are created for authorizations (google.oauth.authorize), token
// refreshes (google.oauth.refresh) and sends (google.gmail.send).
//
// # Configuration
//
// Instrumentation is configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable instrumentation (default: false)
//   - METRICS_EXPORTER: Metrics exporter type (otlp, stdout, default: stdout)
//   - TRACING_EXPORTER: Tracing exporter type (otlp, stdout, none, default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_EXPORTER_OTLP_INSECURE: Use plain HTTP for OTLP
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 1.0)
//   - OTEL_SERVICE_NAME: Service name (default: inboxfleet)
//
// Stdout exporters write to stderr so command output stays parseable.
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	provider.Metrics().RecordGoogleAPIOperation(ctx, "gmail", "send", "success", email, time.Since(start))
package instrumentation
