package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/KorsanSoftware/camview/internal/camconfig"
	"github.com/KorsanSoftware/camview/internal/camview"
	"github.com/KorsanSoftware/camview/internal/config"
	"github.com/KorsanSoftware/camview/internal/logging"
	"github.com/spf13/cobra"
)

// CreateCaptureCmd creates the capture command.
func CreateCaptureCmd() *cobra.Command {
	var output string
	var settingsFile string
	var front bool
	var timeout time.Duration
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Take a single still picture",
		Long: `Opens the camera, takes one picture and writes it to a file. ` +
			`The backend tier is chosen from the device's capabilities, falling back ` +
			`to the legacy backend when the modern one cannot start.`,
		Run: func(_ *cobra.Command, _ []string) {
			// Initialize minimal logging
			loggingConfig := logging.Config{
				Level:  "info",
				Format: "text",
			}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)
			logger := logging.GetLogger("capture")

			var state *camconfig.Snapshot
			if settingsFile != "" {
				snapshot, err := config.LoadSettings(settingsFile)
				if err != nil {
					logger.Error("Failed to load camera settings", "path", settingsFile, "error", err)
					os.Exit(1)
				}
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
			defer view.Destroy()

			if front {
				view.SetFacing(camconfig.FacingFront)
			}

			pictureCh := make(chan []byte, 1)
			view.OnPictureTaken(func(data []byte) {
				select {
				case pictureCh <- data:
				default:
				}
			})

			if startErr := view.Start(); startErr != nil {
				logger.Error("Failed to open camera", "error", startErr)
				os.Exit(1)
			}
			defer func() { _ = view.Stop() }()

			if capErr := view.Capture(); capErr != nil {
				logger.Error("Failed to take picture", "error", capErr)
				os.Exit(1)
			}

			var data []byte
			select {
			case data = <-pictureCh:
			case <-time.After(timeout):
				logger.Error("Timed out waiting for picture", "timeout", timeout)
				os.Exit(1)
			}

			if output == "" {
				output = time.Now().Format("20060102-150405") + ".jpg"
			}
			if writeErr := os.WriteFile(output, data, 0o644); writeErr != nil {
				logger.Error("Failed to write picture", "path", output, "error", writeErr)
				os.Exit(1)
			}

			fmt.Printf("Wrote %s (%d bytes, %s backend)\n", output, len(data), view.Generation())
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: timestamped .jpg)")
	cmd.Flags().StringVar(&settingsFile, "settings", "", "Camera settings file to apply")
	cmd.Flags().BoolVar(&front, "front", false, "Prefer the front-facing camera")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "How long to wait for the picture")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")

	return cmd
}
