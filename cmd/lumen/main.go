package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lumengallery/lumen/internal/config"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "lumen",
	Short: "Personal image gallery backend",
	Long: `Lumen watches a photo directory, keeps searchable metadata for every
image, and enriches records with OCR text and AI-generated tags.`,
	SilenceUsage: true,
}

func loadConfig() *config.Config {
	return config.Load()
}

func main() {
	rootCmd.AddCommand(serveCmd, scanCmd, clearCmd, versionCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
