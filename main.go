package main

import (
	"fmt"
	"os"

	"github.com/combust-labs/smartmob-agent/cmd/serve"
	"github.com/spf13/cobra"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:     "smartmob-agent",
	Short:   "smartmob-agent",
	Long:    ``,
	Version: version,
	Run:     serve.Run,
}

func init() {
	// spec §6: --version prints exactly the version string and exits 0.
	rootCmd.SetVersionTemplate("{{.Version}}\n")
	serve.AddFlags(rootCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
