package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-attendance",
	Short: "Webcam face recognition that keeps a daily attendance ledger",
	Long: `Face Attendance captures labeled face images from a webcam, trains face
encodings from them and runs live recognition that records each known
person once per day.

Typical flow:
  face-attendance capture alice
  face-attendance train
  face-attendance attend
  face-attendance ledger show --date today`,
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
