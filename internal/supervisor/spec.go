package supervisor

import (
	"strconv"
	"strings"
	"time"
)

// DefaultChatGPULayers is the GPU offload used by the chat slot when a start
// request does not carry one.
const DefaultChatGPULayers = 35

// LaunchParams are the resolved inputs to a slot's argument builder.
type LaunchParams struct {
	ModelPath     string
	GPULayers     int
	ContextLength int
	ChatTemplate  string
	Host          string
	Port          int
}

// ArgBuilder renders the command-line for a model server.
type ArgBuilder func(LaunchParams) []string

// SlotSpec describes how one slot launches its model server.
type SlotSpec struct {
	Name string
	// Tool is the install directory name used by the binary locator.
	Tool   string
	Binary string
	// ReadyMarker is the substring in the child's output that signals readiness.
	// An empty marker treats the process as ready as soon as it has spawned.
	ReadyMarker      string
	Host             string
	Port             int
	DefaultGPULayers int
	// UsesParams enables chat template and context length resolution.
	UsesParams bool
	ExtraArgs  []string
	// Extensions lists model file extensions accepted by this slot.
	Extensions   []string
	StartTimeout time.Duration
	StopTimeout  time.Duration
	Args         ArgBuilder
}

// DefaultSpecs returns the built-in slot specs in registry order.
func DefaultSpecs() []SlotSpec {
	return []SlotSpec{
		{
			Name:             SlotChat,
			Tool:             "llama.cpp",
			Binary:           "llama-server",
			ReadyMarker:      "all slots are idle",
			Host:             "127.0.0.1",
			Port:             8080,
			DefaultGPULayers: DefaultChatGPULayers,
			UsesParams:       true,
			Extensions:       []string{".gguf"},
			Args:             ChatArgs,
		},
		{
			Name:        SlotImage,
			Tool:        "stable-diffusion.cpp",
			Binary:      "sd-server",
			ReadyMarker: "listening on",
			Host:        "127.0.0.1",
			Port:        7860,
			Extensions:  []string{".safetensors", ".gguf", ".ckpt"},
			Args:        ImageArgs,
		},
		{
			Name:        SlotTTS,
			Tool:        "piper",
			Binary:      "piper-server",
			ReadyMarker: "Running on",
			Host:        "127.0.0.1",
			Port:        5000,
			Extensions:  []string{".onnx"},
			Args:        TTSArgs,
		},
		{
			Name:        SlotSTT,
			Tool:        "whisper.cpp",
			Binary:      "whisper-server",
			ReadyMarker: "whisper server listening",
			Host:        "127.0.0.1",
			Port:        8178,
			Extensions:  []string{".bin"},
			Args:        STTArgs,
		},
	}
}

// SpecFor returns the built-in spec with the given name.
func SpecFor(name string) (SlotSpec, bool) {
	for _, s := range DefaultSpecs() {
		if s.Name == name {
			return s, true
		}
	}
	return SlotSpec{}, false
}

// ChatArgs builds llama-server arguments. The chat template flag is only
// emitted when a template was resolved.
func ChatArgs(p LaunchParams) []string {
	args := []string{
		"--model", p.ModelPath,
		"--n-gpu-layers", strconv.Itoa(p.GPULayers),
		"-c", strconv.Itoa(p.ContextLength),
	}
	if t := strings.TrimSpace(p.ChatTemplate); t != "" {
		args = append(args, "--chat-template", t)
	}
	return appendListen(args, p)
}

// ImageArgs builds sd-server arguments.
func ImageArgs(p LaunchParams) []string {
	args := []string{"--model", p.ModelPath}
	if p.GPULayers == 0 {
		args = append(args, "--clip-on-cpu", "--vae-on-cpu")
	}
	return appendListen(args, p)
}

// TTSArgs builds piper-server arguments. Piper reads the voice config from
// <model>.json next to the onnx file.
func TTSArgs(p LaunchParams) []string {
	args := []string{"--model", p.ModelPath}
	if p.GPULayers > 0 {
		args = append(args, "--cuda")
	}
	return appendListen(args, p)
}

// STTArgs builds whisper-server arguments.
func STTArgs(p LaunchParams) []string {
	args := []string{"--model", p.ModelPath}
	if p.GPULayers == 0 {
		args = append(args, "-ng")
	}
	return appendListen(args, p)
}

// GenericArgs is used for configured slots without a dedicated builder.
func GenericArgs(p LaunchParams) []string {
	return appendListen([]string{"--model", p.ModelPath}, p)
}

func appendListen(args []string, p LaunchParams) []string {
	if h := strings.TrimSpace(p.Host); h != "" {
		args = append(args, "--host", h)
	}
	if p.Port > 0 {
		args = append(args, "--port", strconv.Itoa(p.Port))
	}
	return args
}
