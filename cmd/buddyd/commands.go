package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"buddyd/internal/client"
	"buddyd/internal/config"
	"buddyd/pkg/types"
)

// clientFor returns a client for the daemon address from flags or config.
func (o *rootOptions) clientFor() (*client.Client, error) {
	if o.addr != "" {
		return client.New(o.addr), nil
	}
	cfg, err := config.LoadOrDefault(o.configPath)
	if err != nil {
		return nil, err
	}
	return client.New(cfg.Addr), nil
}

func newSlotsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "slots",
		Short: "Show every slot's state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.clientFor()
			if err != nil {
				return err
			}
			resp, err := c.Slots(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderSlots(resp))
			return nil
		},
	}
}

func newStartCmd(opts *rootOptions) *cobra.Command {
	var gpuLayers int
	cmd := &cobra.Command{
		Use:     "start <slot> <model>",
		Short:   "Start a slot's model server and wait until it is ready",
		Example: "  buddyd start chat Meta-Llama-3-8B-Instruct.Q4_K_M.gguf\n  buddyd start stt ggml-base.en.bin --gpu-layers 0",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.clientFor()
			if err != nil {
				return err
			}
			var layers *int
			if cmd.Flags().Changed("gpu-layers") {
				layers = &gpuLayers
			}
			out, err := c.Start(cmd.Context(), args[0], args[1], layers)
			if err != nil {
				return err
			}
			printMessage(cmd.OutOrStdout(), args[0], out)
			return nil
		},
	}
	cmd.Flags().IntVar(&gpuLayers, "gpu-layers", 0, "GPU layers to offload (slot default when unset)")
	return cmd
}

func newStopCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <slot>",
		Short: "Stop a slot's model server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.clientFor()
			if err != nil {
				return err
			}
			out, err := c.Stop(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printMessage(cmd.OutOrStdout(), args[0], out)
			return nil
		},
	}
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <slot>",
		Short: "Report whether a slot is running and its last model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.clientFor()
			if err != nil {
				return err
			}
			running, err := c.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			last, err := c.LastModel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			state := "stopped"
			if running {
				state = "running"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], state)
			if last != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "last model: %s\n", last)
			}
			return nil
		},
	}
}

func newModelsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "models <slot>",
		Short: "List model files usable by a slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.clientFor()
			if err != nil {
				return err
			}
			resp, err := c.Models(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if resp.Dir == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "no model directory configured (set local_model_directory)")
				return nil
			}
			rows := make([][]string, 0, len(resp.Models))
			for _, m := range resp.Models {
				rows = append(rows, []string{m.ID, humanBytes(uint64(m.SizeBytes))})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Model", "Size"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
}

func newUsageCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "usage <slot>",
		Short: "Show resource usage of a slot's process tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.clientFor()
			if err != nil {
				return err
			}
			u, err := c.Usage(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !u.Running {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: not running\n", args[0])
				return nil
			}
			rows := [][]string{{
				strconv.Itoa(u.PID),
				humanBytes(u.RSSBytes),
				strconv.FormatFloat(u.CPUPercent, 'f', 1, 64),
				strconv.Itoa(int(u.NumThreads)),
				strconv.Itoa(u.Processes),
			}}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"PID", "RSS", "CPU %", "Threads", "Procs"}, rows,
				[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}
}

func newSettingsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read or update daemon settings",
	}
	get := &cobra.Command{
		Use:   "get [key...]",
		Short: "Print settings (all when no keys are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.clientFor()
			if err != nil {
				return err
			}
			vals, err := c.Settings(cmd.Context(), args...)
			if err != nil {
				return err
			}
			printSettings(cmd.OutOrStdout(), vals)
			return nil
		},
	}
	set := &cobra.Command{
		Use:     "set key=value...",
		Short:   "Update settings",
		Example: "  buddyd settings set selected_provider_chat=external external_api_key=sk-...",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vals, err := parseAssignments(args)
			if err != nil {
				return err
			}
			c, err := opts.clientFor()
			if err != nil {
				return err
			}
			out, err := c.SetSettings(cmd.Context(), vals)
			if err != nil {
				return err
			}
			printSettings(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.AddCommand(get, set)
	return cmd
}

func parseAssignments(args []string) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("expected key=value, got %q", a)
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, nil
}

func printMessage(w io.Writer, slot string, m types.MessageResponse) {
	line := fmt.Sprintf("%s: %s", slot, m.Message)
	if m.PID > 0 {
		line += fmt.Sprintf(" (pid %d)", m.PID)
	}
	if m.Model != "" {
		line += " " + m.Model
	}
	fmt.Fprintln(w, line)
}

func printSettings(w io.Writer, vals map[string]string) {
	keys := make([]string, 0, len(vals))
	for k := range vals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := vals[k]
		if k == "external_api_key" && v != "" {
			v = "********"
		}
		fmt.Fprintf(w, "%s=%s\n", k, v)
	}
}

func renderSlots(resp types.SlotsResponse) string {
	rows := make([][]string, 0, len(resp.Slots))
	for _, s := range resp.Slots {
		pid := ""
		if s.PID > 0 {
			pid = strconv.Itoa(s.PID)
		}
		since := ""
		if s.ReadyAtUnix > 0 {
			since = time.Since(time.Unix(s.ReadyAtUnix, 0)).Truncate(time.Second).String()
		}
		model := s.ActiveModel
		if model == "" {
			model = s.LastModel
		}
		rows = append(rows, []string{s.Name, s.State, pid, since, model, s.LastError})
	}
	return renderTable(
		[]string{"Slot", "State", "PID", "Up", "Model", "Last error"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
	)
}

func humanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
