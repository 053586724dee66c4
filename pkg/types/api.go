package types

// StartRequest is the body of POST /{slot}/start.
type StartRequest struct {
	// Model file; relative names resolve against local_model_directory.
	// example: Meta-Llama-3-8B-Instruct.Q4_K_M.gguf
	ModelPath string `json:"model_path" example:"Meta-Llama-3-8B-Instruct.Q4_K_M.gguf"`
	// GPU layers to offload; omitted uses the slot default.
	// example: 35
	GPULayers *int `json:"gpu_layers,omitempty" example:"35"`
}

// MessageResponse is returned by start and stop.
type MessageResponse struct {
	// example: Server started
	Message string `json:"message" example:"Server started"`
	// Normalized model path, or the external model id.
	Model string `json:"model,omitempty"`
	// example: 12345
	PID            int  `json:"pid,omitempty" example:"12345"`
	AlreadyRunning bool `json:"already_running,omitempty"`
	External       bool `json:"external,omitempty"`
}

// StatusResponse is returned by GET /{slot}/status.
type StatusResponse struct {
	// example: true
	IsRunning bool `json:"isRunning" example:"true"`
}

// LastModelResponse is returned by GET /{slot}/lastModel.
type LastModelResponse struct {
	// example: /home/user/models/Meta-Llama-3-8B-Instruct.Q4_K_M.gguf
	LastModel string `json:"lastModel" example:"/home/user/models/Meta-Llama-3-8B-Instruct.Q4_K_M.gguf"`
}

// SlotStatus summarizes one slot for GET /slots.
type SlotStatus struct {
	// example: chat
	Name string `json:"name" example:"chat"`
	// Lifecycle state: idle, starting, ready or stopping.
	// example: ready
	State       string `json:"state" example:"ready"`
	PID         int    `json:"pid,omitempty" example:"12345"`
	ActiveModel string `json:"active_model,omitempty"`
	LastModel   string `json:"last_model,omitempty"`
	// example: 1700000000
	StartedAtUnix int64 `json:"started_at_unix,omitempty" example:"1700000000"`
	// example: 1700000012
	ReadyAtUnix int64  `json:"ready_at_unix,omitempty" example:"1700000012"`
	LastError   string `json:"last_error,omitempty"`
	// Total processes spawned by this slot since the daemon started.
	// example: 1
	Spawns int `json:"spawns" example:"1"`
}

// SlotsResponse is returned by GET /slots.
type SlotsResponse struct {
	Slots []SlotStatus `json:"slots"`
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}

// ModelsResponse is returned by GET /{slot}/models.
type ModelsResponse struct {
	// example: chat
	Slot string `json:"slot" example:"chat"`
	// Directory that was scanned.
	Dir    string  `json:"dir"`
	Models []Model `json:"models"`
}

// UsageResponse is returned by GET /{slot}/usage.
type UsageResponse struct {
	// example: chat
	Slot    string `json:"slot" example:"chat"`
	Running bool   `json:"running"`
	PID     int    `json:"pid,omitempty"`
	// Resident set size of the process tree.
	// example: 5368709120
	RSSBytes uint64 `json:"rss_bytes" example:"5368709120"`
	// example: 212.5
	CPUPercent float64 `json:"cpu_percent" example:"212.5"`
	// example: 9
	NumThreads int32 `json:"num_threads" example:"9"`
	// Number of processes in the tree (server plus its children).
	// example: 1
	Processes int `json:"processes" example:"1"`
	// Host-wide memory usage percentage.
	// example: 61.2
	SystemMemoryPercent float64 `json:"system_memory_percent" example:"61.2"`
}
