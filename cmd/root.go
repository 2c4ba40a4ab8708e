/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "apiserver",
	Short: "Space Biology knowledge-base backend",
	Long: `Backend for the Space Biology knowledge app: user identity with
email-OTP verification and dual-token sessions, plus a proxy to the
inference service.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
