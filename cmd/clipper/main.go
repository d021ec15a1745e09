package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clipper/clipper-server/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "clipper",
	Short: "Local server for the Clipper video clipping studio",
	Long: `Clipper serves the browser studio's API on the loopback interface.
It forwards analysis and render requests to the video worker, keeps the
project history on disk and mirrors it to the remote store for signed-in users.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("clipper %s (commit %s, built %s)\n", config.Version, config.GitCommit, config.BuildTime)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
