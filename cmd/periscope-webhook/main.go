// Package main provides the periscope-webhook server binary.
//
// The webhook mutates matching pod-creation requests to inject profiler
// bootstrap material; the profiling controller linked into workloads does
// the rest.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/periscope-mesh/periscope/pkg/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "periscope-webhook",
		Short:         "Periscope admission webhook - injects profiler bootstrap into pods",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("Periscope webhook version %s\n", version.Version)
			cmd.Printf("Git commit: %s\n", version.GitCommit)
			cmd.Printf("Build date: %s\n", version.BuildDate)
			cmd.Printf("Go version: %s\n", version.GoVersion)
		},
	}
}
