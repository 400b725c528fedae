package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/gogpu/gputypes"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/softgpu"
	"github.com/gogpu/softgpu/backend/software"
	"github.com/gogpu/softgpu/engine"
	"github.com/gogpu/softgpu/internal/config"
)

var (
	cfgFile string
	cfg     = config.DefaultConfig()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "softgpu",
	Short: "Run WGSL compute shaders on a software WebGPU device",
	Long: `softgpu compiles, inspects and runs WGSL compute shaders without a GPU.

Shaders are compiled by a pluggable shader engine; the default "software"
engine parses WGSL with naga and interprets the resulting SPIR-V.`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	def := config.DefaultConfig()
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.softgpu/config.yaml)")
	flags.String("log-level", def.Log.Level, "log level: debug, info, warn or error")
	flags.String("engine", def.Engine.Name, "shader engine name")
	flags.Int("cache-size", def.Engine.CacheSize, "compiled program cache size")
	flags.StringP("output", "o", def.Output.Format, "output format: text or json")
}

// loadConfig resolves configuration and installs the logger before any
// subcommand runs.
func loadConfig(cmd *cobra.Command, _ []string) error {
	c, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	cfg = c

	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.SlogLevel()})
	softgpu.SetLogger(slog.New(handler))
	return nil
}

// newEngine builds the configured shader engine. The software engine gets
// the configured cache size; other engines come from the registry.
func newEngine(c config.EngineConfig) (engine.Engine, error) {
	if c.Name == software.Name {
		return software.New(software.WithCacheSize(c.CacheSize)), nil
	}
	return engine.Lookup(c.Name)
}

// openDevice creates an instance, adapter and device for the configured engine.
func openDevice() (*softgpu.Device, error) {
	e, err := newEngine(cfg.Engine)
	if err != nil {
		return nil, err
	}
	inst, err := softgpu.New(softgpu.WithEngine(e))
	if err != nil {
		return nil, err
	}
	adapter, err := inst.RequestAdapter(nil)
	if err != nil {
		return nil, err
	}
	return adapter.RequestDevice(&gputypes.DeviceDescriptor{Label: "softgpu"})
}

// printer formats numbers with digit grouping.
func printer() *message.Printer {
	return message.NewPrinter(language.English)
}

func jsonOutput() bool {
	return cfg.Output.Format == config.FormatJSON
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
