package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/branchout/cmd"
	"github.com/smazurov/branchout/internal/api"
	"github.com/smazurov/branchout/internal/config"
	"github.com/smazurov/branchout/internal/events"
	"github.com/smazurov/branchout/internal/led"
	"github.com/smazurov/branchout/internal/logging"
	"github.com/smazurov/branchout/internal/metrics/exporters"
	"github.com/smazurov/branchout/internal/node"
	"github.com/smazurov/branchout/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port        string `help:"Address to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`
	AllowOrigin string `help:"CORS allowed origin" default:"*" toml:"server.allow_origin" env:"SERVER_ALLOW_ORIGIN"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Filter settings
	FilterName      string `help:"Name of the branch output filter" default:"Branch Output" toml:"filter.name" env:"FILTER_NAME"`
	SettingsDir     string `help:"Directory for the filter settings file" default:"." toml:"filter.settings_dir" env:"FILTER_SETTINGS_DIR"`
	WatchDebounceMs int    `help:"Reload the settings file on change after this many ms, 0 disables" default:"250" toml:"filter.watch_debounce_ms" env:"FILTER_WATCH_DEBOUNCE_MS"`

	// Simulated host settings
	SourceName      string `help:"Name of the filtered source" default:"Camera" toml:"host.source_name" env:"HOST_SOURCE_NAME"`
	SourceWidth     int    `help:"Filtered source width" default:"1920" toml:"host.source_width" env:"HOST_SOURCE_WIDTH"`
	SourceHeight    int    `help:"Filtered source height" default:"1080" toml:"host.source_height" env:"HOST_SOURCE_HEIGHT"`
	AudioSourceName string `help:"Name of an extra audio-only source, empty for none" default:"Microphone" toml:"host.audio_source_name" env:"HOST_AUDIO_SOURCE_NAME"`
	TickIntervalMs  int    `help:"Video tick interval in ms" default:"33" toml:"host.tick_interval_ms" env:"HOST_TICK_INTERVAL_MS"`
	ConnectDelayMs  int    `help:"Simulated output connect delay in ms" default:"500" toml:"host.connect_delay_ms" env:"HOST_CONNECT_DELAY_MS"`

	// Features settings
	FeaturesTally bool   `help:"Drive an on-air tally LED from the output state" default:"false" toml:"features.tally_enabled" env:"FEATURES_TALLY"`
	TallyLED      string `help:"sysfs LED used as tally, empty picks the board default" toml:"features.tally_led" env:"FEATURES_TALLY_LED"`

	// Metrics settings
	MetricsPrometheus bool `help:"Serve Prometheus metrics on /metrics" default:"true" toml:"metrics.prometheus_enabled" env:"METRICS_PROMETHEUS_ENABLED"`
	MetricsIntervalMs int  `help:"Audio metrics event interval in ms, 0 disables" default:"1000" toml:"metrics.sse_interval_ms" env:"METRICS_SSE_INTERVAL_MS"`

	// Logging settings
	LoggingLevel      string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat     string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingBufferSize int    `help:"Log entries kept for the log stream" default:"1000" toml:"logging.buffer_size" env:"LOGGING_BUFFER_SIZE"`
	LoggingOutput     string `help:"Output lifecycle logging level" toml:"logging.output" env:"LOGGING_OUTPUT"`
	LoggingAudio      string `help:"Audio routing logging level" toml:"logging.audio" env:"LOGGING_AUDIO"`
	LoggingHostsim    string `help:"Simulated host logging level" toml:"logging.hostsim" env:"LOGGING_HOSTSIM"`
	LoggingNode       string `help:"Node logging level" toml:"logging.node" env:"LOGGING_NODE"`
	LoggingAPI        string `help:"API logging level" toml:"logging.api" env:"LOGGING_API"`
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// [logging.modules] may name modules without a flag of their own.
		loggingConfig := config.LoadLoggingConfig(opts.Config)
		loggingConfig.Level = opts.LoggingLevel
		loggingConfig.Format = opts.LoggingFormat
		loggingConfig.BufferSize = opts.LoggingBufferSize
		if loggingConfig.Modules == nil {
			loggingConfig.Modules = make(map[string]string)
		}
		for module, level := range map[string]string{
			"output":  opts.LoggingOutput,
			"audio":   opts.LoggingAudio,
			"hostsim": opts.LoggingHostsim,
			"node":    opts.LoggingNode,
			"api":     opts.LoggingAPI,
		} {
			if level != "" {
				loggingConfig.Modules[module] = level
			}
		}
		logging.Initialize(loggingConfig)

		logger := logging.GetLogger("main")
		logger.Info("Starting", "version", version.String())

		eventBus := events.New()
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(api.ToLogEntryEvent(entry))
		})

		n := node.New(node.Config{
			FilterName:      opts.FilterName,
			SourceName:      opts.SourceName,
			SourceWidth:     uint32(max(opts.SourceWidth, 0)),
			SourceHeight:    uint32(max(opts.SourceHeight, 0)),
			AudioSourceName: opts.AudioSourceName,
			SettingsDir:     opts.SettingsDir,
			TickInterval:    time.Duration(opts.TickIntervalMs) * time.Millisecond,
			ConnectDelay:    time.Duration(opts.ConnectDelayMs) * time.Millisecond,
			WatchDebounce:   time.Duration(opts.WatchDebounceMs) * time.Millisecond,
		}, eventBus)

		apiOpts := &api.Options{
			AuthUsername: opts.AuthUsername,
			AuthPassword: opts.AuthPassword,
			CORSOrigin:   opts.AllowOrigin,
			Controller:   n,
			EventBus:     eventBus,
		}
		if opts.MetricsPrometheus {
			apiOpts.PrometheusHandler = exporters.HTTPHandler()
		}
		server := api.NewServer(apiOpts)

		var tally *led.Tally
		if opts.FeaturesTally {
			ledLogger := logging.GetLogger("led")
			tally = led.NewTally(led.New(opts.TallyLED, ledLogger), eventBus, ledLogger)
		}

		var sseExporter *exporters.SSEExporter
		if opts.MetricsIntervalMs > 0 {
			sseExporter = exporters.NewSSEExporter(eventBus, time.Duration(opts.MetricsIntervalMs)*time.Millisecond)
		}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})

		hooks.OnStart(func() {
			var cleanups []func()
			if sseExporter != nil {
				sseExporter.Start(ctx)
				cleanups = append(cleanups, sseExporter.Stop)
			}
			if tally != nil {
				tally.Start()
				cleanups = append(cleanups, tally.Stop)
			}

			err := serve(ctx, n, server, opts.Port, logger, cleanups...)
			close(done)
			if err != nil {
				logger.Error("Node stopped with error", "error", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			cancel()
			select {
			case <-done:
			case <-time.After(5 * time.Second):
				logger.Warn("Shutdown timed out")
			}
		})
	})

	cli.Root().Version = version.String()
	cli.Root().AddCommand(cmd.CreateSettingsCmd())
	cli.Root().AddCommand(cmd.CreateProbeCmd())

	cli.Run()
}
