package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-checkin/internal/checkin"
)

var checkinCmd = &cobra.Command{
	Use:   "checkin <event-id>",
	Short: "Check yourself in to an event with the camera",
	Long: `Run a self check-in for one event. The camera is sampled every interval and
each still is sent to the attendance server until your face is recognized,
a fatal error occurs, or you press Ctrl+C.

The event must be live and you must be enrolled in it with a registered face.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheckin,
}

func init() {
	rootCmd.AddCommand(checkinCmd)
	addCameraFlags(checkinCmd)
}

func runCheckin(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	setup, err := newCLISession(context.WithoutCancel(ctx), cmd, checkin.ModeSingle)
	if err != nil {
		return err
	}
	defer setup.cleanup()

	return runSession(ctx, setup.ctrl, args[0], os.Stdout, mustGetBool(cmd, "json"))
}
