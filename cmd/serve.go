package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/face-checkin/internal/attendance"
	"github.com/kozaktomas/face-checkin/internal/checkin"
	"github.com/kozaktomas/face-checkin/internal/config"
	"github.com/kozaktomas/face-checkin/internal/log"
	"github.com/kozaktomas/face-checkin/internal/web"
	"github.com/kozaktomas/face-checkin/internal/web/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the kiosk web server",
	Long: `Start the Face Check-in kiosk web server.
The kiosk page captures stills from the browser webcam and streams them to a
capture session; the server verifies them against the attendance API and
pushes state changes back over server-sent events.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("port", "", "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
}

// resolveServeHostPort applies flag overrides to the web config.
func resolveServeHostPort(cmd *cobra.Command, cfg *config.Config) {
	if port := mustGetString(cmd, "port"); port != "" {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
}

// newServeBackend wires the kiosk session backend to the attendance API.
// Room scans run with ATTENDANCE_API_TOKEN; self check-ins run with the
// token of the attendee in front of the camera.
func newServeBackend(cfg *config.Config, client *attendance.Client, classifier *checkin.Classifier) handlers.Backend {
	logger := log.WithComponent("kiosk")
	return handlers.Backend{
		Attendee: func(token string) (checkin.Verifier, checkin.ContextChecker) {
			attendee := client.WithToken(token)
			return attendance.SelfVerifier{Client: attendee}, attendee
		},
		BatchVerifier: attendance.BatchVerifier{Client: client},
		Checker:       client,
		Ender:         client,
		Classifier:    classifier,
		Interval:      cfg.CheckIn.Interval,
		CallTimeout:   cfg.CheckIn.CallTimeout,
		MaxFrameSize:  cfg.Camera.MaxSize,
		Logger:        &logger,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	resolveServeHostPort(cmd, cfg)
	logger := log.WithComponent("serve")

	client, err := newAttendanceClient(cfg)
	if err != nil {
		return err
	}
	classifier, err := loadClassifier(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := openJournal(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	backend := newServeBackend(cfg, client, classifier)
	backend.Store = store
	server := web.NewServer(cfg, backend)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		return nil
	})

	fmt.Printf("Face Check-in kiosk on http://%s\n", server.Addr())
	fmt.Println("Press Ctrl+C to stop")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
