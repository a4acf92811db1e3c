package checkin

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanning(mode Mode) Machine {
	return NewMachine(mode).Begin().Processing()
}

func matched(subject string) Result {
	return Result{Outcome: &Outcome{Kind: OutcomeMatched, Match: &Match{Subject: subject}}}
}

func batch(subjects ...string) Result {
	matches := make([]Match, 0, len(subjects))
	for _, s := range subjects {
		matches = append(matches, Match{Subject: s})
	}
	return Result{Outcome: &Outcome{Kind: OutcomeBatch, Matches: matches}}
}

func kinds(effects []Effect) []EffectKind {
	out := make([]EffectKind, 0, len(effects))
	for _, e := range effects {
		out = append(out, e.Kind)
	}
	return out
}

func TestReduceSingleMatch(t *testing.T) {
	r := NewReducer(nil)

	next, effects := r.Reduce(scanning(ModeSingle), matched("S1"))

	assert.Equal(t, StateMatchedFinal, next.State)
	assert.Equal(t, []string{"S1"}, next.Matched.List())
	assert.Equal(t, []EffectKind{EffectConfirm, EffectStop}, kinds(effects))
	assert.Equal(t, "S1", effects[0].Match.Subject)
}

func TestReduceSingleAlreadyMatched(t *testing.T) {
	r := NewReducer(nil)
	res := Result{Outcome: &Outcome{Kind: OutcomeAlreadyMatched, Match: &Match{Subject: "S1", ConfirmedAt: "09:01"}}}

	next, effects := r.Reduce(scanning(ModeSingle), res)

	assert.Equal(t, StateMatchedFinal, next.State)
	require.Equal(t, []EffectKind{EffectConfirm, EffectStop}, kinds(effects))
	assert.True(t, effects[0].Match.Already)
	assert.Equal(t, "09:01", effects[0].Match.ConfirmedAt)
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	r := NewReducer(nil)
	start := scanning(ModeBatch)

	next, _ := r.Reduce(start, batch("S1"))
	_, _ = r.Reduce(next.Processing(), batch("S2"))

	assert.Equal(t, StateProcessing, start.State)
	assert.Equal(t, 0, start.Matched.Len())
	assert.Equal(t, []string{"S1"}, next.Matched.List())
}

func TestReduceBatchAccumulates(t *testing.T) {
	r := NewReducer(nil)
	m := scanning(ModeBatch)

	var confirmed []string
	for _, res := range []Result{batch("S1"), batch("S1", "S2"), batch()} {
		var effects []Effect
		m, effects = r.Reduce(m.Processing(), res)
		require.Equal(t, StateScanning, m.State)
		for _, e := range effects {
			require.Equal(t, EffectConfirm, e.Kind)
			confirmed = append(confirmed, e.Match.Subject)
		}
	}

	assert.Equal(t, []string{"S1", "S2"}, confirmed)
	assert.Equal(t, []string{"S1", "S2"}, m.Matched.List())
}

func TestReduceBatchDuplicatesWithinOneResponse(t *testing.T) {
	r := NewReducer(nil)

	next, effects := r.Reduce(scanning(ModeBatch), batch("S1", "S1", "", "S2"))

	assert.Equal(t, []EffectKind{EffectConfirm, EffectConfirm}, kinds(effects))
	assert.Equal(t, 2, next.Matched.Len())
}

func TestReduceSingleMatchInBatchMode(t *testing.T) {
	r := NewReducer(nil)

	next, effects := r.Reduce(scanning(ModeBatch), matched("S9"))

	assert.Equal(t, StateScanning, next.State)
	assert.Equal(t, []EffectKind{EffectConfirm}, kinds(effects))
}

func TestReduceNoMatch(t *testing.T) {
	r := NewReducer(nil)

	next, effects := r.Reduce(scanning(ModeSingle), Result{Outcome: &Outcome{Kind: OutcomeNoMatch}})

	assert.Equal(t, StateRecoverableError, next.State)
	assert.Equal(t, CategoryRecognitionMiss, next.Category)
	assert.Equal(t, []EffectKind{EffectLog}, kinds(effects))
	assert.Equal(t, StateScanning, next.Resume().State)
}

func TestReduceErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		state    State
		category Category
		effects  []EffectKind
	}{
		{
			name:     "not enrolled is fatal",
			err:      errors.New("Face not enrolled. Please enroll your face first."),
			state:    StateFatalError,
			category: CategoryNotEnrolled,
			effects:  []EffectKind{EffectFatal, EffectStop},
		},
		{
			name:     "event ended is fatal",
			err:      errors.New("Event has ended. The grace period has expired."),
			state:    StateFatalError,
			category: CategoryNotOpen,
			effects:  []EffectKind{EffectFatal, EffectStop},
		},
		{
			name:     "network timeout is transient",
			err:      errors.New("network timeout"),
			state:    StateRecoverableError,
			category: CategoryTransient,
			effects:  []EffectKind{EffectLog},
		},
		{
			name:     "no face is a miss",
			err:      errors.New("No face detected in image"),
			state:    StateRecoverableError,
			category: CategoryRecognitionMiss,
			effects:  []EffectKind{EffectLog},
		},
		{
			name:     "camera failure is fatal",
			err:      NewError(CategoryCameraUnavailable, "", errors.New("device gone")),
			state:    StateFatalError,
			category: CategoryCameraUnavailable,
			effects:  []EffectKind{EffectFatal, EffectStop},
		},
	}

	r := NewReducer(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, effects := r.Reduce(scanning(ModeSingle), Result{Err: tt.err})
			assert.Equal(t, tt.state, next.State)
			assert.Equal(t, tt.category, next.Category)
			assert.Equal(t, tt.effects, kinds(effects))
		})
	}
}

func TestReduceFatalKeepsReasonVerbatim(t *testing.T) {
	r := NewReducer(nil)
	msg := "Event has not started yet. It begins at 10:00."

	next, effects := r.Reduce(scanning(ModeSingle), Result{Err: errors.New(msg)})

	assert.Equal(t, msg, next.Reason)
	assert.Equal(t, msg, effects[0].Reason)
}

func TestReduceMalformed(t *testing.T) {
	tests := []struct {
		name string
		mode Mode
		res  Result
	}{
		{name: "nil outcome", mode: ModeSingle, res: Result{}},
		{name: "matched without subject", mode: ModeSingle, res: Result{Outcome: &Outcome{Kind: OutcomeMatched}}},
		{name: "unknown kind", mode: ModeSingle, res: Result{Outcome: &Outcome{Kind: "weird"}}},
		{name: "batch in single mode", mode: ModeSingle, res: batch("S1")},
	}

	r := NewReducer(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, effects := r.Reduce(scanning(tt.mode), tt.res)
			assert.Equal(t, StateRecoverableError, next.State)
			assert.Equal(t, CategoryTransient, next.Category)
			assert.Equal(t, []EffectKind{EffectLog}, kinds(effects))
			assert.Equal(t, 0, next.Matched.Len())
		})
	}
}

func TestReduceTerminalAbsorbs(t *testing.T) {
	r := NewReducer(nil)

	for _, state := range []State{StateMatchedFinal, StateFatalError, StateStopped} {
		t.Run(string(state), func(t *testing.T) {
			m := NewMachine(ModeBatch)
			m.State = state
			next, effects := r.Reduce(m, batch("S1"))
			assert.Equal(t, state, next.State)
			assert.Empty(t, effects)
			assert.Equal(t, 0, next.Matched.Len())
		})
	}
}

func TestMachineTransitionsIgnoreWrongStates(t *testing.T) {
	m := NewMachine(ModeSingle)
	assert.Equal(t, StateInitializing, m.Processing().State)
	assert.Equal(t, StateInitializing, m.Resume().State)

	failed := m.Fail(CategoryNotOpen, "closed")
	assert.Equal(t, StateFatalError, failed.State)
	assert.Equal(t, StateFatalError, failed.Begin().State)
	assert.Equal(t, StateFatalError, failed.stop().State)
	assert.Equal(t, StateStopped, m.Begin().stop().State)
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{
		"single": ModeSingle, "self": ModeSingle, "single-subject": ModeSingle,
		"batch": ModeBatch, "room": ModeBatch, "host": ModeBatch,
	} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseMode("other")
	assert.Error(t, err)
}
