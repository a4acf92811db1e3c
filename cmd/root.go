package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kozaktomas/face-checkin/internal/log"
)

var (
	captureDir string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "face-checkin",
	Short: "Live face check-in against an attendance server",
	Long: `Face Check-in runs the live capture loop of an attendance kiosk. It samples
a camera at a fixed cadence, sends stills to the attendance server for face
recognition, and reports who was checked in.

Attendees check themselves in with "checkin", hosts scan a room with "scan",
and "serve" hosts a browser kiosk that streams frames from a webcam.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&captureDir, "capture", "", "Directory to save API responses for testing")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); defaults to LOG_LEVEL")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()

	log.Configure(log.Config{
		Level:  logLevel,
		Pretty: term.IsTerminal(int(os.Stderr.Fd())),
	})
}
