package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-checkin/internal/attendance"
	"github.com/kozaktomas/face-checkin/internal/checkin"
	"github.com/kozaktomas/face-checkin/internal/config"
	"github.com/kozaktomas/face-checkin/internal/database"
	"github.com/kozaktomas/face-checkin/internal/database/postgres"
	"github.com/kozaktomas/face-checkin/internal/frame"
	"github.com/kozaktomas/face-checkin/internal/log"
)

// newAttendanceClient builds the attendance API client from config and the
// --capture flag.
func newAttendanceClient(cfg *config.Config) (*attendance.Client, error) {
	if cfg.Attendance.URL == "" {
		return nil, errors.New("ATTENDANCE_API_URL environment variable is required")
	}

	client, err := attendance.NewClient(cfg.Attendance.URL, cfg.Attendance.Token)
	if err != nil {
		return nil, fmt.Errorf("creating attendance client: %w", err)
	}
	client.SetLocation(cfg.Attendance.Location())
	client.SetLogger(log.WithComponent("attendance"))

	dir := captureDir
	if dir == "" {
		dir = cfg.Attendance.CaptureDir
	}
	if dir != "" {
		if err := client.SetCaptureDir(dir); err != nil {
			return nil, fmt.Errorf("setting capture directory: %w", err)
		}
	}
	return client, nil
}

// loadClassifier returns the classifier for CHECKIN_RULES_FILE, or the
// embedded table when unset.
func loadClassifier(cfg *config.Config) (*checkin.Classifier, error) {
	if cfg.CheckIn.RulesFile == "" {
		return checkin.DefaultClassifier(), nil
	}
	rules, err := checkin.LoadRulesFile(cfg.CheckIn.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("loading classification rules: %w", err)
	}
	return checkin.NewClassifier(rules), nil
}

// openJournal connects PostgreSQL when DATABASE_URL is set and returns the
// active confirmation store.
func openJournal(ctx context.Context, cfg *config.Config) (database.ConfirmationStore, func(), error) {
	logger := log.WithComponent("journal")
	cleanup := func() {}

	if cfg.Database.URL != "" {
		if err := postgres.Initialize(ctx, &cfg.Database); err != nil {
			return nil, cleanup, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		cleanup = func() {
			if err := postgres.GetGlobalPool().Close(); err != nil {
				logger.Warn().Err(err).Msg("failed to close database pool")
			}
		}
		logger.Info().Msg("recording confirmations in PostgreSQL")
	} else {
		logger.Debug().Msg("DATABASE_URL not set, confirmations kept in memory")
	}

	store, err := database.GetConfirmationStore(ctx)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	return store, cleanup, nil
}

// newFrameSource picks the camera from flags, falling back to config.
func newFrameSource(cmd *cobra.Command, cfg *config.Config) (frame.Source, error) {
	snapshotURL := mustGetString(cmd, "snapshot-url")
	framesDir := mustGetString(cmd, "frames-dir")
	if snapshotURL == "" && framesDir == "" {
		snapshotURL = cfg.Camera.SnapshotURL
		framesDir = cfg.Camera.FramesDir
	}

	switch {
	case snapshotURL != "" && framesDir != "":
		return nil, errors.New("set either a snapshot URL or a frames directory, not both")
	case snapshotURL != "":
		return frame.NewSnapshotSource(snapshotURL, cfg.Camera.MaxSize), nil
	case framesDir != "":
		return frame.NewDirSource(framesDir, cfg.Camera.MaxSize), nil
	}
	return nil, errors.New("no camera configured: set CAMERA_SNAPSHOT_URL or CAMERA_FRAMES_DIR, or pass --snapshot-url / --frames-dir")
}

// sessionSetup is everything a CLI session needs.
type sessionSetup struct {
	client  *attendance.Client
	ctrl    *checkin.Controller
	cleanup func()
}

// newCLISession wires a controller for mode from config and flags.
func newCLISession(ctx context.Context, cmd *cobra.Command, mode checkin.Mode) (*sessionSetup, error) {
	cfg := config.Load()

	client, err := newAttendanceClient(cfg)
	if err != nil {
		return nil, err
	}
	classifier, err := loadClassifier(cfg)
	if err != nil {
		return nil, err
	}
	source, err := newFrameSource(cmd, cfg)
	if err != nil {
		return nil, err
	}
	store, cleanup, err := openJournal(ctx, cfg)
	if err != nil {
		return nil, err
	}

	interval := cfg.CheckIn.Interval
	if v := mustGetDuration(cmd, "interval"); v > 0 {
		interval = v
	}
	callTimeout := cfg.CheckIn.CallTimeout
	if v := mustGetDuration(cmd, "timeout"); v > 0 {
		callTimeout = v
	}

	opts := checkin.Options{
		Source:      source,
		Checker:     client,
		Journal:     store,
		Classifier:  classifier,
		Interval:    interval,
		CallTimeout: callTimeout,
	}

	var ctrl *checkin.Controller
	if mode == checkin.ModeBatch {
		opts.Verifier = attendance.BatchVerifier{Client: client}
		opts.Ender = client
		ctrl, err = checkin.NewBatchScan(opts)
	} else {
		opts.Verifier = attendance.SelfVerifier{Client: client}
		ctrl, err = checkin.NewSelfCheckIn(opts)
	}
	if err != nil {
		cleanup()
		return nil, err
	}

	return &sessionSetup{client: client, ctrl: ctrl, cleanup: cleanup}, nil
}
