package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "facekiosk",
	Short: "A face recognition attendance terminal for restaurants",
	Long: `Facekiosk is an attendance terminal that recognizes staff faces from a
camera feed and toggles their daily check-in and check-out. It works fully
offline and syncs attendance with the central restaurant backend whenever
the connection allows.`,
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
