package client

// MatrixTaskRequest is the body of POST /task/matrix_multiply
type MatrixTaskRequest struct {
	MatrixA [][]float64 `json:"matrixA"`
	MatrixB [][]float64 `json:"matrixB"`
}

// ServerTelemetry is optionally attached by the compute service to task responses.
type ServerTelemetry struct {
	CPULoad       *float64 `json:"server_cpu_load,omitempty"`
	MemoryPercent *float64 `json:"server_memory_percent,omitempty"`
	ComputeTimeMs *float64 `json:"server_compute_time_ms,omitempty"`
}

// MatrixTaskResponse is returned by POST /task/matrix_multiply
type MatrixTaskResponse struct {
	Result [][]float64 `json:"result"`
	ServerTelemetry
}

// ImageTaskResponse is returned by image tasks; ProcessedImage is base64-encoded JPEG.
type ImageTaskResponse struct {
	ProcessedImage string `json:"processed_image"`
	ServerTelemetry
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// ServerStatus is returned by GET /status
type ServerStatus struct {
	Node          string    `json:"node"`
	CPULoad       float64   `json:"server_cpu_load"`
	MemoryPercent float64   `json:"server_memory_percent"`
	LoadAvg       []float64 `json:"load_avg"`
	BusySlots     int       `json:"busy_slots"`
	TotalSlots    int       `json:"total_slots"`
}

// PredictionRequest is the feature vector posted to /predict_offload
type PredictionRequest struct {
	TaskName            string  `json:"task_name"`
	MatrixSize          int     `json:"matrix_size"`
	ImageSizeKB         float64 `json:"image_size_kb"`
	BatteryLevel        float64 `json:"battery_level"`
	IsCharging          int     `json:"is_charging"`
	DeviceModelName     string  `json:"device_model_name"`
	NetworkType         string  `json:"network_type"`
	LatencyMs           float64 `json:"latency_ms"`
	ServerCPULoad       float64 `json:"server_cpu_load"`
	ServerMemoryPercent float64 `json:"server_memory_percent"`
}

// PredictionResponse is returned by /predict_offload
type PredictionResponse struct {
	Prediction  string   `json:"prediction"`
	Probability *float64 `json:"probability"`
}

// BenchmarkOutputs are the measured outcomes of an execution.
type BenchmarkOutputs struct {
	RanOn               string   `json:"ran_on,omitempty"`
	Success             bool     `json:"success"`
	ElapsedMs           int64    `json:"elapsed_ms,omitempty"`
	LocalTimeMs         *int64   `json:"local_time_ms,omitempty"`
	RemoteTimeMs        *int64   `json:"remote_time_ms,omitempty"`
	ServerCPULoad       *float64 `json:"server_cpu_load,omitempty"`
	ServerMemoryPercent *float64 `json:"server_memory_percent,omitempty"`
	ServerComputeTimeMs *float64 `json:"server_compute_time_ms,omitempty"`
}

// BenchmarkLog is the body of POST /benchmark/log
type BenchmarkLog struct {
	RequestID string            `json:"request_id,omitempty"`
	Device    string            `json:"device,omitempty"`
	Inputs    PredictionRequest `json:"inputs"`
	Outputs   BenchmarkOutputs  `json:"outputs"`
}
