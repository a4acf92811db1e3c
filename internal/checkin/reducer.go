package checkin

// EffectKind tags a side effect requested by the reducer.
type EffectKind string

// EffectKind values.
const (
	// EffectConfirm records a newly confirmed subject and emits one
	// confirmation event.
	EffectConfirm EffectKind = "confirm"
	// EffectFatal surfaces a blocking error.
	EffectFatal EffectKind = "fatal"
	// EffectStop cancels the ticker and releases the frame source.
	EffectStop EffectKind = "stop"
	// EffectLog records a recoverable failure without surfacing it.
	EffectLog EffectKind = "log"
)

// Effect is a side effect the controller executes after a transition.
type Effect struct {
	Kind     EffectKind
	Match    Match
	Category Category
	Reason   string
	Err      error
}

// Machine is the reducer state. It is a value: Reduce returns a new machine
// and never mutates its input.
type Machine struct {
	Mode     Mode
	State    State
	Matched  SubjectSet
	Category Category
	Reason   string
}

// NewMachine returns a machine in initializing.
func NewMachine(mode Mode) Machine {
	return Machine{Mode: mode, State: StateInitializing}
}

// Begin enters scanning once the context has been validated.
func (m Machine) Begin() Machine {
	if m.State != StateInitializing {
		return m
	}
	m.State = StateScanning
	return m
}

// Processing marks an attempt in flight.
func (m Machine) Processing() Machine {
	if m.State != StateScanning {
		return m
	}
	m.State = StateProcessing
	return m
}

// Resume leaves a transient state and goes back to scanning.
func (m Machine) Resume() Machine {
	if m.State != StateRecoverableError && m.State != StateProcessing {
		return m
	}
	m.State = StateScanning
	return m
}

// Fail enters fatal-error directly, for failures detected outside a
// verification attempt (pre-check, camera acquisition).
func (m Machine) Fail(category Category, reason string) Machine {
	if m.State.Terminal() {
		return m
	}
	m.State = StateFatalError
	m.Category = category
	m.Reason = reason
	return m
}

// stop enters stopped from any non-terminal state.
func (m Machine) stop() Machine {
	if m.State.Terminal() {
		return m
	}
	m.State = StateStopped
	return m
}

// Reducer interprets verification results.
type Reducer struct {
	Classifier *Classifier
}

// NewReducer creates a reducer using c, or the default classifier if c is nil.
func NewReducer(c *Classifier) *Reducer {
	if c == nil {
		c = DefaultClassifier()
	}
	return &Reducer{Classifier: c}
}

// Reduce consumes one verification result and returns the next machine and
// the effects to run. A terminal machine absorbs every result unchanged.
func (r *Reducer) Reduce(m Machine, res Result) (Machine, []Effect) {
	if m.State.Terminal() {
		return m, nil
	}

	if res.Err != nil {
		return r.reduceError(m, res.Err)
	}
	if res.Outcome == nil {
		return recoverable(m, CategoryTransient, ErrMalformedOutcome.Error(), ErrMalformedOutcome)
	}

	switch res.Outcome.Kind {
	case OutcomeNoMatch:
		return recoverable(m, CategoryRecognitionMiss, ErrNoMatch.Error(), nil)
	case OutcomeMatched, OutcomeAlreadyMatched:
		match := res.Outcome.Match
		if match == nil || match.Subject == "" {
			return recoverable(m, CategoryTransient, ErrMalformedOutcome.Error(), ErrMalformedOutcome)
		}
		single := *match
		single.Already = single.Already || res.Outcome.Kind == OutcomeAlreadyMatched
		if m.Mode == ModeBatch {
			return reduceBatch(m, []Match{single})
		}
		return reduceSingle(m, single)
	case OutcomeBatch:
		if m.Mode != ModeBatch {
			return recoverable(m, CategoryTransient, ErrMalformedOutcome.Error(), ErrMalformedOutcome)
		}
		return reduceBatch(m, res.Outcome.Matches)
	}
	return recoverable(m, CategoryTransient, ErrMalformedOutcome.Error(), ErrMalformedOutcome)
}

func (r *Reducer) reduceError(m Machine, err error) (Machine, []Effect) {
	cat := r.Classifier.Classify(err)
	if !cat.Fatal() {
		return recoverable(m, cat, err.Error(), err)
	}

	next := m
	next.State = StateFatalError
	next.Category = cat
	next.Reason = err.Error()
	return next, []Effect{
		{Kind: EffectFatal, Category: cat, Reason: next.Reason, Err: err},
		{Kind: EffectStop},
	}
}

// recoverable enters recoverable-error. The controller publishes it and then
// resumes scanning straight away.
func recoverable(m Machine, cat Category, reason string, err error) (Machine, []Effect) {
	next := m
	next.State = StateRecoverableError
	next.Category = cat
	next.Reason = reason
	return next, []Effect{{Kind: EffectLog, Category: cat, Reason: reason, Err: err}}
}

func reduceSingle(m Machine, match Match) (Machine, []Effect) {
	next := m
	next.Matched = m.Matched.Clone()
	next.State = StateMatchedFinal
	next.Category = CategoryNone
	next.Reason = ""

	var effects []Effect
	if next.Matched.Add(match.Subject) {
		effects = append(effects, Effect{Kind: EffectConfirm, Match: match})
	}
	return next, append(effects, Effect{Kind: EffectStop})
}

func reduceBatch(m Machine, matches []Match) (Machine, []Effect) {
	next := m
	next.Matched = m.Matched.Clone()
	next.State = StateScanning
	next.Category = CategoryNone
	next.Reason = ""

	var effects []Effect
	for _, match := range matches {
		if match.Subject == "" {
			continue
		}
		if next.Matched.Add(match.Subject) {
			effects = append(effects, Effect{Kind: EffectConfirm, Match: match})
		}
	}
	return next, effects
}
