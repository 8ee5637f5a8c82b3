package instrumentation

import (
	"os"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	for _, key := range []string{"OTEL_SERVICE_NAME", "INSTRUMENTATION_ENABLED", "METRICS_EXPORTER", "TRACING_EXPORTER", "OTEL_TRACES_SAMPLER_ARG"} {
		t.Setenv(key, "")
	}

	config := DefaultConfig()

	if config.ServiceName != "inboxfleet" {
		t.Errorf("expected ServiceName 'inboxfleet', got %q", config.ServiceName)
	}
	if config.Enabled {
		t.Error("expected Enabled to be false by default")
	}
	if config.MetricsExporter != ExporterStdout {
		t.Errorf("expected MetricsExporter 'stdout', got %q", config.MetricsExporter)
	}
	if config.TracingExporter != ExporterNone {
		t.Errorf("expected TracingExporter 'none', got %q", config.TracingExporter)
	}
	if config.TraceSamplingRate != 1.0 {
		t.Errorf("expected TraceSamplingRate 1.0, got %f", config.TraceSamplingRate)
	}
	if config.Output != os.Stderr {
		t.Error("expected stdout exporters to write to stderr")
	}
	if !config.AuditLogging.Enabled || config.AuditLogging.IncludePII {
		t.Errorf("unexpected audit defaults: %+v", config.AuditLogging)
	}
}

func TestDefaultConfig_FromEnv(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "test-service")
	t.Setenv("INSTRUMENTATION_ENABLED", "true")
	t.Setenv("METRICS_EXPORTER", "otlp")
	t.Setenv("TRACING_EXPORTER", "stdout")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.5")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")

	config := DefaultConfig()

	if config.ServiceName != "test-service" {
		t.Errorf("expected ServiceName 'test-service', got %q", config.ServiceName)
	}
	if !config.Enabled {
		t.Error("expected Enabled to be true")
	}
	if config.MetricsExporter != ExporterOTLP {
		t.Errorf("expected MetricsExporter 'otlp', got %q", config.MetricsExporter)
	}
	if config.TracingExporter != ExporterStdout {
		t.Errorf("expected TracingExporter 'stdout', got %q", config.TracingExporter)
	}
	if config.TraceSamplingRate != 0.5 {
		t.Errorf("expected TraceSamplingRate 0.5, got %f", config.TraceSamplingRate)
	}
	if config.OTLPEndpoint != "localhost:4318" || !config.OTLPInsecure {
		t.Errorf("unexpected OTLP settings: %q insecure=%v", config.OTLPEndpoint, config.OTLPInsecure)
	}
}

func TestDefaultConfig_InvalidEnvFallsBack(t *testing.T) {
	t.Setenv("INSTRUMENTATION_ENABLED", "maybe")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "lots")

	config := DefaultConfig()

	if config.Enabled {
		t.Error("expected invalid bool to fall back to false")
	}
	if config.TraceSamplingRate != 1.0 {
		t.Errorf("expected invalid float to fall back to 1.0, got %f", config.TraceSamplingRate)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"stdout", Config{MetricsExporter: ExporterStdout, TracingExporter: ExporterNone, TraceSamplingRate: 1}, false},
		{"otlp with endpoint", Config{MetricsExporter: ExporterOTLP, TracingExporter: ExporterOTLP, OTLPEndpoint: "localhost:4318"}, false},
		{"sampling rate too high", Config{TraceSamplingRate: 1.5}, true},
		{"sampling rate negative", Config{TraceSamplingRate: -0.1}, true},
		{"prometheus is not supported", Config{MetricsExporter: "prometheus"}, true},
		{"unknown tracing exporter", Config{TracingExporter: "jaeger"}, true},
		{"otlp metrics without endpoint", Config{MetricsExporter: ExporterOTLP}, true},
		{"otlp tracing without endpoint", Config{TracingExporter: ExporterOTLP}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
