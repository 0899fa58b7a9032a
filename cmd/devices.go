package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/KorsanSoftware/camview/internal/camera"
	"github.com/KorsanSoftware/camview/internal/devices"
	"github.com/KorsanSoftware/camview/internal/logging"
	"github.com/spf13/cobra"
)

// CreateDevicesCmd creates the devices command.
func CreateDevicesCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List video capture devices",
		Long: `Enumerates /dev/video* nodes that offer video capture, probes their ` +
			`capabilities and prints the backend tier each device qualifies for.`,
		Run: func(_ *cobra.Command, _ []string) {
			// Initialize minimal logging
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})
			logger := logging.GetLogger("devices")

			infos, err := devices.List()
			if err != nil {
				logger.Error("Failed to enumerate devices", "error", err)
				os.Exit(1)
			}
			if len(infos) == 0 {
				fmt.Println("No video capture devices found")
				return
			}

			fmt.Printf("%-14s %-28s %-16s %-8s %s\n", "PATH", "NAME", "TIER", "ZOOM", "LARGEST")
			for _, info := range infos {
				largest := "-"
				if len(info.FrameSizes) > 0 {
					fs := info.FrameSizes[0]
					largest = fmt.Sprintf("%dx%d", fs.Width, fs.Height)
				}
				fmt.Printf("%-14s %-28s %-16s %-8.1f %s\n",
					info.Path, info.Name, camera.Classify(info), info.MaxZoom(), largest)

				if verbose {
					printControls(info)
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print supported controls per device")

	return cmd
}

func printControls(info devices.Info) {
	names := make([]string, 0, len(info.Controls))
	for _, ctrl := range info.Controls {
		names = append(names, fmt.Sprintf("%s [%d..%d]", ctrl.Name, ctrl.Min, ctrl.Max))
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("    %s\n", name)
	}
}
