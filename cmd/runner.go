package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/kozaktomas/face-checkin/internal/checkin"
)

// stateLabels is the terminal rendering of each session state.
var stateLabels = map[checkin.State]string{
	checkin.StateInitializing:     "Starting camera...",
	checkin.StateScanning:         "Scanning... look at the camera",
	checkin.StateProcessing:       "Checking...",
	checkin.StateRecoverableError: "Retrying...",
	checkin.StateMatchedFinal:     "Checked in",
	checkin.StateStopped:          "Stopped",
}

// sessionPrinter renders session events for a terminal or as JSON lines.
type sessionPrinter struct {
	out     io.Writer
	json    bool
	spinner *progressbar.ProgressBar
}

func newSessionPrinter(out io.Writer, jsonOutput bool) *sessionPrinter {
	p := &sessionPrinter{out: out, json: jsonOutput}
	if !jsonOutput {
		p.spinner = progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription(stateLabels[checkin.StateInitializing]),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionClearOnFinish(),
		)
	}
	return p
}

// spin keeps the spinner moving until ctx is done.
func (p *sessionPrinter) spin(ctx context.Context) {
	if p.spinner == nil {
		return
	}
	t := time.NewTicker(100 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_ = p.spinner.Add(1)
		}
	}
}

func (p *sessionPrinter) event(e checkin.Event) {
	if p.json {
		data, _ := json.Marshal(e)
		fmt.Fprintln(p.out, string(data))
		return
	}

	switch e.Type {
	case checkin.EventState:
		if label, ok := stateLabels[e.State]; ok {
			if e.State == checkin.StateRecoverableError && e.Reason != "" {
				label = "Retrying: " + e.Reason
			}
			p.spinner.Describe(label)
		}
	case checkin.EventConfirmed:
		p.println(confirmationLine(e.Match))
	case checkin.EventFatal:
		p.println("Error: " + e.Reason)
	}
}

// println writes a line above the spinner.
func (p *sessionPrinter) println(line string) {
	if p.spinner != nil {
		_ = p.spinner.Clear()
	}
	fmt.Fprintln(p.out, line)
}

func (p *sessionPrinter) finish(snap checkin.Snapshot) {
	if p.json {
		data, _ := json.Marshal(snap)
		fmt.Fprintln(p.out, string(data))
		return
	}
	_ = p.spinner.Finish()
	if snap.Mode == checkin.ModeBatch {
		fmt.Fprintf(p.out, "%d present after %d attempts\n", len(snap.Matched), snap.Attempts)
		for _, subject := range snap.Matched {
			fmt.Fprintf(p.out, "  %s\n", subject)
		}
	}
}

func confirmationLine(m *checkin.Match) string {
	if m == nil {
		return "Checked in"
	}
	line := "Checked in: " + m.Subject
	if m.Already {
		line = m.Subject + " was already checked in"
	}
	if m.ConfirmedAt != "" {
		line += " at " + m.ConfirmedAt
	}
	if m.Confidence != nil {
		line += fmt.Sprintf(" (%.0f%%)", *m.Confidence*100)
	}
	return line
}

// runSession starts ctrl against contextID, prints its events until it
// closes, and returns an error if it ended fatally. Cancelling ctx stops the
// session and releases the camera.
func runSession(ctx context.Context, ctrl *checkin.Controller, contextID string, out io.Writer, jsonOutput bool) error {
	printer := newSessionPrinter(out, jsonOutput)
	events := ctrl.Subscribe()

	spinCtx, stopSpin := context.WithCancel(ctx)
	defer stopSpin()
	go printer.spin(spinCtx)

	startErr := ctrl.Start(ctx, contextID)

	for e := range events {
		printer.event(e)
	}
	ctrl.Wait()
	stopSpin()

	snap := ctrl.Snapshot()
	printer.finish(snap)

	if startErr != nil {
		return startErr
	}
	if snap.State == checkin.StateFatalError {
		return checkin.NewError(snap.Category, snap.Reason, nil)
	}
	return nil
}
