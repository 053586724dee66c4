package types

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// Model is a model file found under the model directory.
type Model struct {
	// File name, used as the identifier passed to /{slot}/start.
	// example: Meta-Llama-3-8B-Instruct.Q4_K_M.gguf
	ID string `json:"id" example:"Meta-Llama-3-8B-Instruct.Q4_K_M.gguf"`
	// Absolute path to the model file on disk.
	// example: /home/user/models/Meta-Llama-3-8B-Instruct.Q4_K_M.gguf
	Path string `json:"path" example:"/home/user/models/Meta-Llama-3-8B-Instruct.Q4_K_M.gguf"`
	// File size in bytes.
	// example: 4920734048
	SizeBytes int64 `json:"size_bytes" example:"4920734048"`
	// Companion config file, when the slot needs one (piper voices).
	ConfigPath string `json:"config_path,omitempty"`
}
