package types

import "time"

// ErrorType represents the type of error that occurred
type ErrorType string

const (
	ErrorTypeNetworkTimeout ErrorType = "network_timeout"
	ErrorTypeTimeout        ErrorType = "timeout"
	ErrorTypeRateLimit      ErrorType = "rate_limit"
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeAuthentication ErrorType = "authentication"
	ErrorTypeCanceled       ErrorType = "canceled"
	ErrorTypeUnknown        ErrorType = "unknown"
	// Backing source specific error types
	ErrorTypeSourceConnection ErrorType = "source_connection"
	ErrorTypeSourceQuery      ErrorType = "source_query"
	ErrorTypeSourceResponse   ErrorType = "source_response"
)

// Config represents the leakscope configuration
type Config struct {
	Env      string `json:"env" env:"LEAKSCOPE_ENV,default=local"`
	LogLevel string `json:"log_level" env:"LOG_LEVEL"`

	// Backing source declarations
	SourcesFile string `json:"sources_file" env:"SOURCES_FILE,default=sources.yaml"`

	// Query engine configuration
	SearchDefaultDeadline time.Duration `json:"search_default_deadline" env:"SEARCH_DEFAULT_DEADLINE,default=10s"`
	SearchPerSourceLimit  int           `json:"search_per_source_limit" env:"SEARCH_PER_SOURCE_LIMIT,default=100"`
	SearchWorkers         int           `json:"search_workers" env:"SEARCH_WORKERS,default=8"`

	// Scorer configuration
	ScoreCoverageWeight float64 `json:"score_coverage_weight" env:"SCORE_COVERAGE_WEIGHT,default=0.7"`
	ScoreFieldBonus     float64 `json:"score_field_bonus" env:"SCORE_FIELD_BONUS,default=0.1"`
	ScoreNativeWeight   float64 `json:"score_native_weight" env:"SCORE_NATIVE_WEIGHT,default=0.3"`
	HighlightWidth      int     `json:"highlight_width" env:"HIGHLIGHT_WIDTH,default=150"`
	HighlightMax        int     `json:"highlight_max" env:"HIGHLIGHT_MAX,default=5"`

	// OpenSearch configuration
	OpenSearchEndpoint          string        `json:"opensearch_endpoint" env:"OPENSEARCH_ENDPOINT"`
	OpenSearchRegion            string        `json:"opensearch_region" env:"OPENSEARCH_REGION"`
	OpenSearchUsername          string        `json:"opensearch_username" env:"OPENSEARCH_USERNAME"`
	OpenSearchPassword          string        `json:"-" env:"OPENSEARCH_PASSWORD"`
	OpenSearchInsecureSkipTLS   bool          `json:"opensearch_insecure_skip_tls" env:"OPENSEARCH_INSECURE_SKIP_TLS,default=false"`
	OpenSearchRateLimit         float64       `json:"opensearch_rate_limit" env:"OPENSEARCH_RATE_LIMIT,default=10.0"`
	OpenSearchRateBurst         int           `json:"opensearch_rate_burst" env:"OPENSEARCH_RATE_BURST,default=20"`
	OpenSearchConnectionTimeout time.Duration `json:"opensearch_connection_timeout" env:"OPENSEARCH_CONNECTION_TIMEOUT,default=30s"`
	OpenSearchRequestTimeout    time.Duration `json:"opensearch_request_timeout" env:"OPENSEARCH_REQUEST_TIMEOUT,default=30s"`
	OpenSearchMaxRetries        int           `json:"opensearch_max_retries" env:"OPENSEARCH_MAX_RETRIES,default=2"`
	OpenSearchRetryDelay        time.Duration `json:"opensearch_retry_delay" env:"OPENSEARCH_RETRY_DELAY,default=500ms"`
	OpenSearchMaxConnections    int           `json:"opensearch_max_connections" env:"OPENSEARCH_MAX_CONNECTIONS,default=100"`
	OpenSearchMaxIdleConns      int           `json:"opensearch_max_idle_conns" env:"OPENSEARCH_MAX_IDLE_CONNS,default=10"`
	OpenSearchIdleConnTimeout   time.Duration `json:"opensearch_idle_conn_timeout" env:"OPENSEARCH_IDLE_CONN_TIMEOUT,default=90s"`

	// RediSearch / Valkey Search configuration
	RediSearchAddrsStr string   `json:"-" env:"REDISEARCH_ADDRS"`
	RediSearchAddrs    []string `json:"redisearch_addrs"`
	RediSearchUsername string   `json:"redisearch_username" env:"REDISEARCH_USERNAME"`
	RediSearchPassword string   `json:"-" env:"REDISEARCH_PASSWORD"`

	// HTTP API configuration
	HTTPHost            string        `json:"http_host" env:"HTTP_HOST,default=127.0.0.1"`
	HTTPPort            int           `json:"http_port" env:"HTTP_PORT,default=8080"`
	HTTPReadTimeout     time.Duration `json:"http_read_timeout" env:"HTTP_READ_TIMEOUT,default=30s"`
	HTTPWriteTimeout    time.Duration `json:"http_write_timeout" env:"HTTP_WRITE_TIMEOUT,default=60s"`
	HTTPShutdownTimeout time.Duration `json:"http_shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT,default=10s"`
	HTTPAllowedIPsStr   string        `json:"-" env:"HTTP_ALLOWED_IPS"`
	HTTPAllowedIPs      []string      `json:"http_allowed_ips"`
	HTTPTrustedProxies  []string      `json:"http_trusted_proxies"`
	HTTPTrustedStr      string        `json:"-" env:"HTTP_TRUSTED_PROXIES"`
	HTTPAPIKeysStr      string        `json:"-" env:"HTTP_API_KEYS"`
	HTTPAPIKeys         []string      `json:"-"`

	// Export artifacts written to or read from s3:// paths
	ExportS3Region   string `json:"export_s3_region" env:"EXPORT_S3_REGION"`
	ExportS3Endpoint string `json:"export_s3_endpoint" env:"EXPORT_S3_ENDPOINT"`

	// Invocation statistics
	MetricsDBPath string `json:"metrics_db_path" env:"METRICS_DB_PATH"`

	// OpenTelemetry configuration
	OTelEnabled              bool          `json:"otel_enabled" env:"OTEL_ENABLED,default=false"`
	OTelServiceName          string        `json:"otel_service_name" env:"OTEL_SERVICE_NAME,default=leakscope"`
	OTelExporterOTLPEndpoint string        `json:"otel_exporter_otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelExporterOTLPProtocol string        `json:"otel_exporter_otlp_protocol" env:"OTEL_EXPORTER_OTLP_PROTOCOL,default=http/protobuf"`
	OTelResourceAttributes   string        `json:"otel_resource_attributes" env:"OTEL_RESOURCE_ATTRIBUTES"`
	OTelTracesSampler        string        `json:"otel_traces_sampler" env:"OTEL_TRACES_SAMPLER,default=always_on"`
	OTelTracesSamplerArg     float64       `json:"otel_traces_sampler_arg" env:"OTEL_TRACES_SAMPLER_ARG,default=1.0"`
	OTelMetricInterval       time.Duration `json:"otel_metric_interval" env:"OTEL_METRIC_EXPORT_INTERVAL,default=60s"`
}
