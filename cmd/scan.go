package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-checkin/internal/checkin"
	"github.com/kozaktomas/face-checkin/internal/log"
)

var scanCmd = &cobra.Command{
	Use:   "scan <event-id>",
	Short: "Scan a room and mark everyone recognized as present",
	Long: `Run a host batch scan for one event. Every still may recognize several
attendees; confirmed attendees accumulate until you press Ctrl+C.

With --start the event's live session is started first. With --end-on-exit
the live session is ended on the server when scanning stops, which closes
attendance for the event.`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	addCameraFlags(scanCmd)
	scanCmd.Flags().Bool("start", false, "Start the event's live session before scanning")
	scanCmd.Flags().Bool("end-on-exit", false, "End the event's live session when scanning stops")
}

func runScan(cmd *cobra.Command, args []string) error {
	eventID := args[0]
	logger := log.WithComponent("scan")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	setup, err := newCLISession(context.WithoutCancel(ctx), cmd, checkin.ModeBatch)
	if err != nil {
		return err
	}
	defer setup.cleanup()

	if mustGetBool(cmd, "start") {
		if err := setup.client.StartSession(ctx, eventID); err != nil {
			return fmt.Errorf("starting live session: %w", err)
		}
		logger.Info().Str("event", eventID).Msg("live session started")
	}

	runErr := runSession(ctx, setup.ctrl, eventID, os.Stdout, mustGetBool(cmd, "json"))

	if mustGetBool(cmd, "end-on-exit") {
		endCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := setup.ctrl.EndSession(endCtx); err != nil {
			if runErr == nil {
				runErr = err
			}
			logger.Error().Err(err).Str("event", eventID).Msg("failed to end live session")
		}
	}
	return runErr
}
