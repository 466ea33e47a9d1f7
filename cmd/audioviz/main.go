package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"syscall"
	"time"

	"github.com/petems/audioviz/internal/app"
	"github.com/petems/audioviz/internal/audio"
	"github.com/petems/audioviz/internal/config"
	"github.com/petems/audioviz/internal/hotkey"
	"github.com/petems/audioviz/internal/logging"
	"github.com/petems/audioviz/internal/permissions"
	"github.com/petems/audioviz/internal/record"
	"github.com/petems/audioviz/internal/tray"
	"github.com/petems/audioviz/internal/tui"
	"github.com/petems/audioviz/internal/viz"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
	// Commit is set via ldflags at build time
	Commit = "unknown"
)

var (
	cfgFile  string
	backend  string
	device   int
	uiMode   string
	fps      uint
	recordTo string
	logLevel string
)

const shutdownTimeout = 5 * time.Second

var rootCmd = &cobra.Command{
	Use:   "audioviz",
	Short: "Live audio visualizer",
	Long:  `audioviz captures an audio input device and draws its spectrum in the terminal or the system tray`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVisualizer(cmd)
	},
	SilenceUsage: true,
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List capture devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listDevices(cmd)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("audioviz %s (%s)\n", Version, Commit)
	},
}

func init() {
	// The tray event loop has to own the main OS thread on macOS.
	runtime.LockOSThread()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is the platform config dir)")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "audio backend: portaudio, miniaudio or sdl")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error, none)")
	rootCmd.Flags().IntVar(&device, "device", -1, "capture device index (-1 for the system default)")
	rootCmd.Flags().StringVar(&uiMode, "ui", "", "front-end: tui or tray")
	rootCmd.Flags().UintVar(&fps, "fps", config.DefaultFPS, "target frames per second (0 for uncapped)")
	rootCmd.Flags().StringVar(&recordTo, "record", "", "also write the captured audio to this WAV file")

	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Audio.Backend = backend
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("device") {
		cfg.Audio.DeviceIndex = device
	}
	if flags.Changed("ui") {
		cfg.UI = uiMode
	}
	if flags.Changed("fps") {
		cfg.Visualizer.FPS = fps
	}
	if flags.Changed("record") {
		cfg.Record.Path = recordTo
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newCapture(cfg *config.Config, log zerolog.Logger) (*audio.AudioCapture, error) {
	platform, err := audio.NewPlatform(cfg.Audio.Backend, log)
	if err != nil {
		return nil, err
	}
	return audio.New(platform, audio.Options{
		TargetFPS:       cfg.Visualizer.FPS,
		MaxSamples:      viz.MaxSamples,
		IncludeMonitors: cfg.Audio.IncludeMonitors,
	}, log)
}

func listDevices(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logging.NewWithLevel(cfg.LogLevel, true)

	capture, err := newCapture(cfg, log)
	if err != nil {
		return err
	}
	defer capture.Close()

	devices := capture.ListDevices()
	indices := make([]int, 0, len(devices))
	for idx := range devices {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	out := cmd.OutOrStdout()
	for _, idx := range indices {
		fmt.Fprintf(out, "%3d  %s\n", idx, devices[idx])
	}
	return nil
}

func runVisualizer(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// The terminal UI owns stdout, so only the tray logs to the console.
	log := logging.NewWithLevel(cfg.LogLevel, cfg.UI == config.UITray)

	// macOS requires explicit microphone approval before capture works
	if err := permissions.EnsureMicrophone(); err != nil {
		log.Error().Err(err).Msg("Required permissions not granted")
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	capture, err := newCapture(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize audio")
		return err
	}

	engine := viz.New()
	sinks := []audio.Sink{engine}

	if cfg.Record.Path != "" {
		tap, err := record.New(cfg.Record.Path, audio.SampleFrequency, log)
		if err != nil {
			log.Error().Err(err).Msg("Failed to start recording")
			capture.Close()
			return err
		}
		defer tap.Close()
		sinks = append(sinks, tap)
	}

	var (
		status   app.StatusUpdater
		trayUI   *tray.UI
		tuiState *tui.Status
	)
	if cfg.UI == config.UITray {
		// App reference set below
		trayUI = tray.New(nil, engine, Version, Commit, log)
		status = trayUI
	} else {
		tuiState = tui.NewStatus()
		status = tuiState
	}

	application := app.New(app.Config{
		Capture:       capture,
		Sink:          audio.MultiSink(sinks...),
		Config:        cfg,
		Logger:        log,
		StatusUpdater: status,
	})

	hkManager := registerHotkey(cfg, application, log)
	if hkManager != nil {
		defer hkManager.Close()
	}

	log.Info().Str("version", Version).Str("ui", cfg.UI).Str("backend", cfg.Audio.Backend).Msg("audioviz starting...")
	application.Start()

	if trayUI != nil {
		// Set app reference in tray
		trayUI.SetApp(application)
		// Start tray UI - MUST run on main thread
		err = trayUI.Run(ctx)
	} else {
		err = tui.Run(ctx, tui.NewModel(application, engine, tuiState, cfg.Visualizer.Bands, cfg.Visualizer.FPS))
	}
	if err != nil {
		log.Error().Err(err).Msg("UI error")
	}

	log.Info().Msg("Shutting down...")
	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if serr := application.Shutdown(shutdownCtx); serr != nil {
		log.Error().Err(serr).Msg("Shutdown error")
	}
	return err
}

// registerHotkey binds the next-device accelerator. Failures are logged and
// the keyboard and menu controls keep working.
func registerHotkey(cfg *config.Config, application *app.App, log zerolog.Logger) hotkey.Manager {
	accel := cfg.PlatformHotkey()
	if accel == "" {
		return nil
	}

	if err := permissions.EnsureHotkeyAccess(); err != nil {
		log.Warn().Err(err).Msg("Global hotkey disabled")
		return nil
	}

	hkManager, err := hotkey.New()
	if err != nil {
		log.Warn().Err(err).Msg("Global hotkey disabled")
		return nil
	}

	if err := hkManager.Register(accel, hotkey.OnPress(application.NextDevice)); err != nil {
		log.Warn().Err(err).Str("hotkey", accel).Msg("Failed to register hotkey")
		hkManager.Close()
		return nil
	}

	log.Info().Str("hotkey", accel).Msg("Registered next-device hotkey")
	return hkManager
}
