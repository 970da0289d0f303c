package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/gomcpgo/media_predict/pkg/config"
	"github.com/gomcpgo/media_predict/pkg/logger"
	"github.com/gomcpgo/media_predict/pkg/telemetry"
)

// Version information (set by build script)
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
)

const serviceName = "media_predict"

// Config keys bound to persistent flags
var flagKeys = map[string]string{
	"apiKey":       "api-key",
	"baseUrl":      "base-url",
	"model":        "model",
	"logLevel":     "log-level",
	"otlpEndpoint": "otlp-endpoint",
}

// Environment names AutomaticEnv can't derive from the camelCase keys
var envKeys = map[string]string{
	"apiKey":             config.APIKeyEnv,
	"baseUrl":            "MEDIA_PREDICT_BASE_URL",
	"resultsRoot":        "MEDIA_PREDICT_RESULTS_ROOT",
	"httpTimeoutSeconds": "MEDIA_PREDICT_HTTP_TIMEOUT_SECONDS",
	"logLevel":           "LOG_LEVEL",
	"logFormat":          "LOG_FORMAT",
	"debug":              "DEBUG_MODE",
	"otlpEndpoint":       "OTEL_EXPORTER_OTLP_ENDPOINT",
}

type ui struct {
	title func(a ...interface{}) string
	ok    func(a ...interface{}) string
	info  func(a ...interface{}) string
	warn  func(a ...interface{}) string
	err   func(a ...interface{}) string
	dim   func(a ...interface{}) string
}

func newUI() *ui {
	return &ui{
		title: color.New(color.FgHiCyan, color.Bold).SprintFunc(),
		ok:    color.New(color.FgGreen, color.Bold).SprintFunc(),
		info:  color.New(color.FgCyan).SprintFunc(),
		warn:  color.New(color.FgYellow).SprintFunc(),
		err:   color.New(color.FgRed, color.Bold).SprintFunc(),
		dim:   color.New(color.FgHiBlack).SprintFunc(),
	}
}

var (
	cfg             *config.Config
	shutdownTracing func(context.Context) error
	consoleUI       = newUI()
)

var rootCmd = &cobra.Command{
	Use:           "media_predict",
	Short:         "Classify images and videos with trained prediction models",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig(cmd.Flags())
		if err != nil {
			return err
		}
		logger.Init(cfg.LogLevel, cfg.LogFormat)

		shutdownTracing, err = telemetry.Setup(cmd.Context(), cfg.OTLPEndpoint, serviceName)
		if err != nil {
			return fmt.Errorf("failed to set up tracing: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if shutdownTracing != nil {
			// The command context may already be cancelled by Ctrl+C
			if err := shutdownTracing(context.Background()); err != nil {
				logger.L.Warn("failed to flush traces", "error", err)
			}
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Media Predict\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
	},
}

func init() {
	addGlobalFlags(rootCmd.PersistentFlags())

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	rootCmd.AddCommand(versionCmd)
}

func addGlobalFlags(flags *pflag.FlagSet) {
	flags.String("config", config.DefaultConfigPath(), "Path to the YAML config file")
	flags.String("api-key", "", "API key (default: $"+config.APIKeyEnv+")")
	flags.String("base-url", "", "Prediction service base URL")
	flags.String("model", "", "Model name (default: model from config)")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("otlp-endpoint", "", "OTLP/HTTP trace endpoint (default: $OTEL_EXPORTER_OTLP_ENDPOINT)")
}

// loadConfig resolves settings from flags, then environment, then the config
// file, then defaults
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	d := config.Defaults()
	v.SetDefault("baseUrl", d.BaseURL)
	v.SetDefault("resultsRoot", d.ResultsRoot)
	v.SetDefault("httpTimeout", d.HTTPTimeout)
	v.SetDefault("logLevel", d.LogLevel)
	v.SetDefault("logFormat", d.LogFormat)

	v.SetEnvPrefix("MEDIA_PREDICT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}
	for key, name := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return nil, fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}

	if path, _ := flags.GetString("config"); strings.TrimSpace(path) != "" {
		v.SetConfigFile(strings.TrimSpace(path))
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	c := &config.Config{
		APIKey:       strings.TrimSpace(v.GetString("apiKey")),
		BaseURL:      strings.TrimSpace(v.GetString("baseUrl")),
		Model:        strings.TrimSpace(v.GetString("model")),
		ResultsRoot:  strings.TrimSpace(v.GetString("resultsRoot")),
		HTTPTimeout:  v.GetDuration("httpTimeout"),
		LogLevel:     strings.TrimSpace(v.GetString("logLevel")),
		LogFormat:    strings.TrimSpace(v.GetString("logFormat")),
		DebugMode:    v.GetBool("debug"),
		OTLPEndpoint: strings.TrimSpace(v.GetString("otlpEndpoint")),
	}

	// The environment carries whole seconds; the file carries a duration.
	if raw := v.GetString("httpTimeoutSeconds"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid MEDIA_PREDICT_HTTP_TIMEOUT_SECONDS: %w", err)
		}
		c.HTTPTimeout = time.Duration(secs) * time.Second
	}
	return c, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", consoleUI.err("Error:"), err)
		os.Exit(1)
	}
}
