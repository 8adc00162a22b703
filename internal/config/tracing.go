package config

// TracingConfig configures OpenTelemetry export.  Tracing is disabled when
// Endpoint is empty.
type TracingConfig struct {
	ServiceName string
	Endpoint    string // host:port of an OTLP/HTTP collector
	Insecure    bool
	SampleRatio float64
}

func LoadTracingConfig(service string) TracingConfig {
	loadDotEnv()
	ratio := float64(envInt("OTEL_SAMPLE_PERCENT", 100)) / 100
	return TracingConfig{
		ServiceName: envStr("OTEL_SERVICE_NAME", service),
		Endpoint:    envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		Insecure:    envBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		SampleRatio: ratio,
	}
}
