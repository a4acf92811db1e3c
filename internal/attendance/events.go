package attendance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/face-checkin/internal/checkin"
)

// DefaultGracePeriod applies when an event carries no grace period.
const DefaultGracePeriod = 15 * time.Minute

// Event is an attendance event as returned by the API.
type Event struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	// Date is YYYY-MM-DD and Time is HH:MM[:SS], both naive local values.
	Date string `json:"date"`
	Time string `json:"time"`
	// Duration is a Django duration, "[DD ]HH:MM:SS[.ffffff]".
	Duration string `json:"duration"`
	// GracePeriod is in minutes.
	GracePeriod *int `json:"grace_period"`
	IsLive      bool `json:"is_live"`
}

// Window is the period during which an event accepts check-ins.
type Window struct {
	Start time.Time
	// End is the scheduled end. Check-ins are still accepted until GraceEnd.
	End      time.Time
	GraceEnd time.Time
}

// Window computes the check-in window in loc.
func (e *Event) Window(loc *time.Location) (Window, error) {
	clock := e.Time
	if strings.Count(clock, ":") == 1 {
		clock += ":00"
	}
	start, err := time.ParseInLocation("2006-01-02 15:04:05", e.Date+" "+clock, loc)
	if err != nil {
		return Window{}, fmt.Errorf("invalid event start %q %q: %w", e.Date, e.Time, err)
	}

	var dur time.Duration
	if e.Duration != "" {
		dur, err = ParseDuration(e.Duration)
		if err != nil {
			return Window{}, err
		}
	}

	grace := DefaultGracePeriod
	if e.GracePeriod != nil {
		grace = time.Duration(*e.GracePeriod) * time.Minute
	}

	end := start.Add(dur)
	return Window{Start: start, End: end, GraceEnd: end.Add(grace)}, nil
}

// ParseDuration parses the Django DurationField wire format: "HH:MM:SS",
// "D HH:MM:SS" or either with a fractional second.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty duration")
	}

	var total time.Duration
	if days, rest, ok := strings.Cut(s, " "); ok {
		d, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		total += time.Duration(d) * 24 * time.Hour
		s = rest
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid duration hours %q: %w", parts[0], err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid duration minutes %q: %w", parts[1], err)
	}
	sec, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration seconds %q: %w", parts[2], err)
	}

	total += time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec*float64(time.Second))
	return total, nil
}

// GetEvent fetches an event.
func (c *Client) GetEvent(ctx context.Context, eventID string) (*Event, error) {
	ev, err := doGetJSON[Event](ctx, c, "events", eventID)
	if err != nil {
		return nil, fmt.Errorf("fetching event %s: %w", eventID, err)
	}
	return ev, nil
}

// CheckContext verifies that the event exists and is inside its check-in
// window. Failures carry the same wording the server would use when marking.
func (c *Client) CheckContext(ctx context.Context, eventID string) error {
	ev, err := c.GetEvent(ctx, eventID)
	if err != nil {
		if IsNotFound(err) {
			return checkin.NewError(checkin.CategoryInvalidContext, "Event not found", err)
		}
		return err
	}

	w, err := ev.Window(c.location)
	if err != nil {
		return checkin.NewError(checkin.CategoryInvalidContext, "Event has no valid schedule.", err)
	}

	now := c.now().In(c.location)
	switch {
	case now.Before(w.Start):
		reason := fmt.Sprintf("Event has not started yet. It begins at %s on %s.",
			w.Start.Format("03:04 PM"), w.Start.Format("January 02, 2006"))
		return checkin.NewError(checkin.CategoryNotOpen, reason, nil)
	case now.After(w.GraceEnd):
		return checkin.NewError(checkin.CategoryNotOpen, "Event has ended. The grace period has expired.", nil)
	}

	c.logger.Debug().Str("event", eventID).Time("start", w.Start).Time("grace_end", w.GraceEnd).Msg("event open for check-in")
	return nil
}

type sessionResponse struct {
	Message string `json:"message"`
}

// StartSession moves an event into its live session.
func (c *Client) StartSession(ctx context.Context, eventID string) error {
	if _, err := doPostJSON[sessionResponse](ctx, c, struct{}{}, "events", eventID, "start_session"); err != nil {
		return fmt.Errorf("starting session for event %s: %w", eventID, err)
	}
	return nil
}

// EndSession closes the live session of an event.
func (c *Client) EndSession(ctx context.Context, eventID string) error {
	if _, err := doPostJSON[sessionResponse](ctx, c, struct{}{}, "events", eventID, "end_session"); err != nil {
		return fmt.Errorf("ending session for event %s: %w", eventID, err)
	}
	return nil
}
