package checkin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type codedErr struct {
	code string
	msg  string
}

func (e codedErr) Error() string     { return e.msg }
func (e codedErr) ErrorCode() string { return e.code }

func TestClassifyMessages(t *testing.T) {
	tests := []struct {
		msg  string
		want Category
	}{
		{"Face not enrolled. Please enroll your face first.", CategoryNotEnrolled},
		{"You are not enrolled in this event. Please contact your instructor.", CategoryNotEnrolled},
		{"Event has not started yet. It begins at 2026-10-14 10:00.", CategoryNotOpen},
		{"Event has ended. The grace period has expired.", CategoryNotOpen},
		{"FACE NOT RECOGNIZED", CategoryRecognitionMiss},
		{"No face detected in the image", CategoryRecognitionMiss},
		{"network timeout", CategoryTransient},
		{"", CategoryTransient},
	}

	c := DefaultClassifier()
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, c.ClassifyMessage(tt.msg))
		})
	}
}

func TestClassifyFoldsDiacritics(t *testing.T) {
	rules := Rules{Phrases: []PhraseRule{{Phrase: "Nezahájeno", Category: CategoryNotOpen}}}
	c := NewClassifier(rules)

	assert.Equal(t, CategoryNotOpen, c.ClassifyMessage("akce je NEZAHAJENO"))
	assert.Equal(t, CategoryNotOpen, c.ClassifyMessage("akce je nezahájeno"))
}

func TestClassifyPrecedence(t *testing.T) {
	c := DefaultClassifier()

	// Structured errors win over the text.
	ce := NewError(CategoryTransient, "face not enrolled", nil)
	assert.Equal(t, CategoryTransient, c.Classify(ce))

	// Codes win over phrases.
	assert.Equal(t, CategoryNotOpen, c.Classify(codedErr{code: "EVENT_ENDED", msg: "no face"}))

	// Unknown codes fall back to phrases.
	assert.Equal(t, CategoryRecognitionMiss, c.Classify(codedErr{code: "weird", msg: "no face"}))

	// Sentinels through wrapping.
	assert.Equal(t, CategoryNotEnrolled, c.Classify(fmt.Errorf("verify: %w", ErrNotEnrolled)))
	assert.Equal(t, CategoryTransient, c.Classify(fmt.Errorf("verify: %w", context.DeadlineExceeded)))

	assert.Equal(t, CategoryNone, c.Classify(nil))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewError(CategoryNotOpen, "Event has ended.", cause)

	assert.ErrorIs(t, err, ErrNotOpen)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Event has ended.", err.Error())
	assert.Equal(t, "not open for check-in", NewError(CategoryNotOpen, "", nil).Error())
}

func TestParseRulesRejectsUnknownCategory(t *testing.T) {
	_, err := ParseRules([]byte("codes:\n  x: sideways\n"))
	assert.Error(t, err)

	_, err = ParseRules([]byte("phrases:\n  - phrase: \"\"\n    category: transient\n"))
	assert.Error(t, err)
}

func TestLoadRulesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	data := "codes:\n  closed_room: not-open\nphrases:\n  - phrase: locked\n    category: not-open\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	rules, err := LoadRulesFile(path)
	require.NoError(t, err)

	c := NewClassifier(rules)
	assert.Equal(t, CategoryNotOpen, c.Classify(codedErr{code: "closed_room", msg: "x"}))
	assert.Equal(t, CategoryNotOpen, c.ClassifyMessage("Room LOCKED"))

	_, err = LoadRulesFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefaultRulesFatalFirst(t *testing.T) {
	rules := DefaultRules()
	require.NotEmpty(t, rules.Phrases)

	seenRecoverable := false
	for _, p := range rules.Phrases {
		if !p.Category.Fatal() {
			seenRecoverable = true
			continue
		}
		assert.False(t, seenRecoverable, "fatal phrase %q listed after a recoverable one", p.Phrase)
	}
}
