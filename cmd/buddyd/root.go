package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"buddyd/internal/config"
)

type rootOptions struct {
	configPath string
	addr       string
	logLevel   string
	logFormat  string
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "buddyd",
		Short:         "Supervise local chat, image, tts and stt model servers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", envOr("BUDDYD_CONFIG", ""), "Config file (yaml, json or toml)")
	pf.StringVar(&opts.addr, "addr", envOr("BUDDYD_ADDR", ""), "HTTP listen address for serve; daemon address for client commands")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug|info|warn|error")
	pf.StringVar(&opts.logFormat, "log-format", "", "Log format: auto|console|json")

	root.AddCommand(
		newServeCmd(opts),
		newSlotsCmd(opts),
		newStartCmd(opts),
		newStopCmd(opts),
		newStatusCmd(opts),
		newModelsCmd(opts),
		newUsageCmd(opts),
		newSettingsCmd(opts),
	)
	return root
}

// loadConfig reads the config file and applies flag overrides.
func (o *rootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.LoadOrDefault(o.configPath)
	if err != nil {
		return cfg, err
	}
	if o.addr != "" {
		cfg.Addr = o.addr
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.logFormat != "" {
		cfg.LogFormat = o.logFormat
	}
	return cfg, cfg.Validate()
}
