package config

// Base URL of the remote compute service (e.g., http://10.0.0.5:5000)
const COMPUTE_URL = "compute.url"

// Timeout (in ms) for remote task invocations
const COMPUTE_TIMEOUT_MS = "compute.timeout"

// Base URL of the prediction oracle
const ORACLE_URL = "oracle.url"

// Timeout (in ms) for prediction requests
const ORACLE_TIMEOUT_MS = "oracle.timeout"

// Base URL of the benchmark/telemetry sink
const TELEMETRY_URL = "telemetry.url"

// Enables reporting of features and timings to the telemetry sink (true/false)
const TELEMETRY_ENABLED = "telemetry.enabled"

// Timeout (in ms) for a single telemetry post
const TELEMETRY_TIMEOUT_MS = "telemetry.timeout"

// Timeout (in ms) for the latency probe (GET /ping)
const PROBE_TIMEOUT_MS = "probe.timeout"

// Latency (in ms) assumed when the probe fails
const PROBE_DEFAULT_LATENCY_MS = "probe.default.latency"

// Fetch real server load from GET /status instead of sending placeholders (true/false)
const SERVER_STATUS_ENABLED = "server.status.enabled"

// Device model reported when the host cannot be identified
const DEVICE_MODEL = "device.model"

// Decision policy to use
// Possible values: "rules", "oracle"
const DECISION_POLICY = "decision.policy"

// Per-task pinning (Map: task id -> "local" | "remote")
const DECISION_OVERRIDES = "decision.overrides"

// Minimum matrix order worth offloading
const DECISION_MATRIX_THRESHOLD = "decision.threshold.matrix"

// Minimum image size (KB) worth offloading
const DECISION_IMAGE_THRESHOLD_KB = "decision.threshold.image"

// exposed port for the compute service APIs
const API_PORT = "api.port"

// echo log level for the compute service ("debug", "info", "warn", "error")
const API_LOG_LEVEL = "api.log.level"

// enable metrics system
const METRICS_ENABLED = "metrics.enabled"

// Pushgateway URL the client CLI pushes its metrics to before exiting
const METRICS_PUSHGATEWAY_URL = "metrics.pushgateway"

// Enables tracing
const TRACING_ENABLED = "tracing.enabled"

// Custom output file for traces
const TRACING_OUTFILE = "tracing.outfile"

// Max number of tasks the compute service executes concurrently (0 = unbounded)
const API_MAX_INFLIGHT = "api.max.inflight"

// Max number of open connections accepted by the compute service (0 = unbounded)
const API_MAX_CONNS = "api.max.conns"
