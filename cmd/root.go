package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-login",
	Short: "Face descriptor login service",
	Long: `Face Login identifies users from 128-dimensional face descriptors
produced by a capture front-end. It stores one descriptor per user and
accepts a login when the closest enrolled descriptor is within a fixed
Euclidean distance of the query.

Configuration is read from the environment, optionally from a .env file.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
