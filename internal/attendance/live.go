package attendance

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/kozaktomas/face-checkin/internal/checkin"
	"github.com/kozaktomas/face-checkin/internal/frame"
)

// Attendance statuses returned by the recognition endpoints.
const (
	StatusMarked        = "marked"
	StatusAlreadyMarked = "already_marked"
	StatusFailed        = "failed"
)

type recognizeRequest struct {
	EventID int    `json:"event_id"`
	Image   string `json:"image"`
}

// LiveResponse is the body of a successful live check-in.
type LiveResponse struct {
	Status     string   `json:"status"`
	Student    string   `json:"student"`
	Time       string   `json:"time"`
	Confidence *float64 `json:"confidence"`
}

// BatchResult is one recognized student in a room scan.
type BatchResult struct {
	Student    string   `json:"student"`
	Status     string   `json:"status"`
	Time       string   `json:"time"`
	Confidence *float64 `json:"confidence"`
}

// BatchResponse is the body of a room scan.
type BatchResponse struct {
	MatchesCount int           `json:"matches_count"`
	Results      []BatchResult `json:"results"`
}

func newRecognizeRequest(eventID string, f *frame.Frame) (recognizeRequest, error) {
	id, err := strconv.Atoi(eventID)
	if err != nil {
		return recognizeRequest{}, checkin.NewError(checkin.CategoryInvalidContext, "Invalid event id.", err)
	}
	ct := f.ContentType
	if ct == "" {
		ct = "image/jpeg"
	}
	return recognizeRequest{EventID: id, Image: "data:" + ct + ";base64," + f.Base64()}, nil
}

// MarkLive submits one frame of the signed-in attendee.
func (c *Client) MarkLive(ctx context.Context, eventID string, f *frame.Frame) (*LiveResponse, error) {
	body, err := newRecognizeRequest(eventID, f)
	if err != nil {
		return nil, err
	}
	resp, err := doPostJSON[LiveResponse](ctx, c, body, "attendance", "mark_live")
	if err != nil {
		return nil, fmt.Errorf("marking attendance: %w", err)
	}
	return resp, nil
}

// BatchRecognize submits one room frame on behalf of the host.
func (c *Client) BatchRecognize(ctx context.Context, eventID string, f *frame.Frame) (*BatchResponse, error) {
	body, err := newRecognizeRequest(eventID, f)
	if err != nil {
		return nil, err
	}
	resp, err := doPostJSON[BatchResponse](ctx, c, body, "attendance", "batch_recognize")
	if err != nil {
		return nil, fmt.Errorf("recognizing room: %w", err)
	}
	return resp, nil
}

// SelfVerifier adapts MarkLive to the capture loop.
type SelfVerifier struct {
	Client *Client
}

// Verify implements checkin.Verifier.
func (v SelfVerifier) Verify(ctx context.Context, eventID string, f *frame.Frame) (*checkin.Outcome, error) {
	resp, err := v.Client.MarkLive(ctx, eventID, f)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Failed() {
			return &checkin.Outcome{Kind: checkin.OutcomeNoMatch}, nil
		}
		return nil, err
	}

	match := &checkin.Match{Subject: resp.Student, ConfirmedAt: resp.Time, Confidence: resp.Confidence}
	switch resp.Status {
	case StatusMarked:
		return &checkin.Outcome{Kind: checkin.OutcomeMatched, Match: match}, nil
	case StatusAlreadyMarked:
		match.Already = true
		return &checkin.Outcome{Kind: checkin.OutcomeAlreadyMatched, Match: match}, nil
	case StatusFailed:
		return &checkin.Outcome{Kind: checkin.OutcomeNoMatch}, nil
	}
	return nil, fmt.Errorf("%w: status %q", checkin.ErrMalformedOutcome, resp.Status)
}

// BatchVerifier adapts BatchRecognize to the capture loop.
type BatchVerifier struct {
	Client *Client
}

// Verify implements checkin.Verifier. Students the server had already marked
// count as present in the scan.
func (v BatchVerifier) Verify(ctx context.Context, eventID string, f *frame.Frame) (*checkin.Outcome, error) {
	resp, err := v.Client.BatchRecognize(ctx, eventID, f)
	if err != nil {
		return nil, err
	}

	out := &checkin.Outcome{Kind: checkin.OutcomeBatch}
	for _, r := range resp.Results {
		switch r.Status {
		case StatusMarked, StatusAlreadyMarked:
			out.Matches = append(out.Matches, checkin.Match{
				Subject:     r.Student,
				ConfirmedAt: r.Time,
				Confidence:  r.Confidence,
				Already:     r.Status == StatusAlreadyMarked,
			})
		}
	}
	return out, nil
}
