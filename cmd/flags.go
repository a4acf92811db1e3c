package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// mustGetBool gets a bool flag value or panics if the flag doesn't exist.
// This is appropriate for flags defined in init() - errors indicate programming bugs.
func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetString gets a string flag value or panics if the flag doesn't exist.
func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetDuration gets a duration flag value or panics if the flag doesn't exist.
func mustGetDuration(cmd *cobra.Command, name string) time.Duration {
	val, err := cmd.Flags().GetDuration(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// addCameraFlags registers the frame source and pacing flags shared by
// checkin and scan.
func addCameraFlags(cmd *cobra.Command) {
	cmd.Flags().String("snapshot-url", "", "HTTP still-image URL of the camera (overrides CAMERA_SNAPSHOT_URL)")
	cmd.Flags().String("frames-dir", "", "Directory of images replayed as frames (overrides CAMERA_FRAMES_DIR)")
	cmd.Flags().Duration("interval", 0, "Capture interval (overrides CHECKIN_INTERVAL)")
	cmd.Flags().Duration("timeout", 0, "Per-call verification timeout (overrides CHECKIN_CALL_TIMEOUT)")
	cmd.Flags().Bool("json", false, "Print session events as JSON lines")
}
