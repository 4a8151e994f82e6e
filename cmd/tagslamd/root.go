// Package main implements tagslamd, a small command-line harness for
// the tagslam pose-graph engine, grounded on rotblauer-catd/cmd's cobra
// command-tree shape (a package-level rootCmd, one file per subcommand,
// each subcommand's own pflag.FlagSet).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "tagslamd",
	Short: "2D fiducial-marker pose-graph SLAM engine",
	Long: `tagslamd drives the tagslam pose-graph engine from a recorded
odometry/detection session, for local testing and demonstration without
a live transport.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "tagslam.yaml", "path to the engine configuration file")
}

// Execute runs the command tree; main.go's only job is to call this.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
