package main

import (
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/KorsanSoftware/camview/cmd"
	"github.com/KorsanSoftware/camview/internal/camconfig"
	"github.com/KorsanSoftware/camview/internal/camview"
	"github.com/KorsanSoftware/camview/internal/config"
	"github.com/KorsanSoftware/camview/internal/logging"
	"github.com/KorsanSoftware/camview/internal/server"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Camera settings
	SettingsFile  string `help:"Camera settings file" default:"camera.toml" toml:"camera.settings_file" env:"CAMERA_SETTINGS_FILE"`
	AutoStart     bool   `help:"Open the camera at startup" default:"false" toml:"camera.auto_start" env:"CAMERA_AUTO_START"`
	PicturesDir   string `help:"Directory for captured pictures" default:"pictures" toml:"camera.pictures_dir" env:"CAMERA_PICTURES_DIR"`
	RecordingsDir string `help:"Directory for video recordings" default:"recordings" toml:"camera.recordings_dir" env:"CAMERA_RECORDINGS_DIR"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingCamera  string `help:"Camera backend logging level" default:"info" toml:"logging.camera" env:"LOGGING_CAMERA"`
	LoggingCamview string `help:"Widget logging level" default:"info" toml:"logging.camview" env:"LOGGING_CAMVIEW"`
	LoggingDevices string `help:"Devices logging level" default:"info" toml:"logging.devices" env:"LOGGING_DEVICES"`
	LoggingServer  string `help:"API server logging level" default:"info" toml:"logging.server" env:"LOGGING_SERVER"`
	LoggingHTTP    string `help:"HTTP request logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
}

func main() {
	// Create Huma CLI
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, nil); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// Initialize logging system. The [logging] table may carry levels
		// for modules that have no dedicated flag; flag-backed modules win.
		loggingConfig := config.LoadLoggingConfig(opts.Config)
		loggingConfig.Level = opts.LoggingLevel
		loggingConfig.Format = opts.LoggingFormat
		loggingConfig.Modules["camera"] = opts.LoggingCamera
		loggingConfig.Modules["camview"] = opts.LoggingCamview
		loggingConfig.Modules["devices"] = opts.LoggingDevices
		loggingConfig.Modules["server"] = opts.LoggingServer
		loggingConfig.Modules["http"] = opts.LoggingHTTP
		logging.Initialize(loggingConfig)

		logger := logging.GetLogger("main")

		// Load persisted camera settings. A missing file yields defaults;
		// a malformed file is a startup error worth surfacing, not hiding.
		var state *camconfig.Snapshot
		snapshot, loadErr := config.LoadSettings(opts.SettingsFile)
		if loadErr != nil {
			logger.Warn("Failed to load camera settings, using defaults",
				"path", opts.SettingsFile, "error", loadErr)
		} else {
			state = &snapshot
		}

		view, err := camview.New(camview.Options{
			Logger:  logging.GetLogger("camview"),
			Enabled: true,
			State:   state,
		})
		if err != nil {
			logger.Error("Failed to construct camera widget", "error", err)
			os.Exit(1)
		}

		settingsManager := config.NewSettingsManager(opts.SettingsFile)

		srv := server.NewServer(&server.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			View:              view,
			Settings:          settingsManager,
			PicturesDir:       opts.PicturesDir,
			RecordingsDir:     opts.RecordingsDir,
			PrometheusHandler: promhttp.Handler(),
		})

		// Reload camera settings when the file changes on disk. Edits made
		// through the API also land in the file, but Field.Set is idempotent
		// so replaying them is harmless.
		watcher := config.NewConfigWatcher(opts.SettingsFile, config.LoadSettings, logger)
		watcher.OnReload(func(s camconfig.Snapshot) {
			logger.Info("Camera settings file changed, applying", "path", opts.SettingsFile)
			view.RestoreState(s)
		})

		hooks.OnStart(func() {
			if opts.AutoStart {
				if startErr := view.Start(); startErr != nil {
					logger.Error("Failed to open camera at startup", "error", startErr)
				}
			}

			if watchErr := watcher.Start(); watchErr != nil {
				logger.Warn("Settings file watcher unavailable", "error", watchErr)
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := srv.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			if stopErr := srv.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Error("Error stopping settings watcher", "error", stopErr)
			}

			// Tears down the scope tree and closes the backend.
			view.Destroy()
		})
	})

	// Add devices command
	cli.Root().AddCommand(cmd.CreateDevicesCmd())

	// Add capture command
	cli.Root().AddCommand(cmd.CreateCaptureCmd())

	// Run the CLI
	cli.Run()
}
