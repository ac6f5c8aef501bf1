package exam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGradeSingleChoice(t *testing.T) {
	q := Question{ID: "q1", Type: SingleChoice, Key: ChoiceKey{CorrectIDs: []string{"a"}}}

	ok, err := Grade(q, SingleChoiceResponse{SelectedID: "a"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Grade(q, SingleChoiceResponse{SelectedID: "b"})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Grade(q, SingleChoiceResponse{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGradeTrueFalse(t *testing.T) {
	q := Question{ID: "q1", Type: TrueFalse, Key: ChoiceKey{CorrectIDs: []string{"false"}}}

	ok, err := Grade(q, TrueFalseResponse{SelectedID: "false"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Grade(q, TrueFalseResponse{SelectedID: "true"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGradeMultipleChoiceSetEquality(t *testing.T) {
	q := Question{ID: "q2", Type: MultipleChoice, Key: ChoiceKey{CorrectIDs: []string{"x", "y"}}}

	cases := []struct {
		name     string
		selected []string
		want     bool
	}{
		{"exact", []string{"x", "y"}, true},
		{"order irrelevant", []string{"y", "x"}, true},
		{"subset", []string{"x"}, false},
		{"superset", []string{"x", "y", "z"}, false},
		{"same size wrong member", []string{"x", "z"}, false},
		{"duplicate does not fill the gap", []string{"x", "x"}, false},
		{"empty", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := Grade(q, MultipleChoiceResponse{SelectedIDs: tc.selected})
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}
}

func TestGradeMatchingSequenceDragDrop(t *testing.T) {
	matching := Question{ID: "m", Type: Matching, Key: MatchingKey{Pairs: map[string]string{"l1": "r1", "l2": "r2"}}}
	ok, err := Grade(matching, MatchingResponse{Pairs: map[string]string{"l2": "r2", "l1": "r1"}})
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = Grade(matching, MatchingResponse{Pairs: map[string]string{"l1": "r2", "l2": "r1"}})
	assert.False(t, ok)
	ok, _ = Grade(matching, MatchingResponse{Pairs: map[string]string{"l1": "r1"}})
	assert.False(t, ok)

	seq := Question{ID: "s", Type: Sequence, Key: SequenceKey{Order: []string{"a", "b", "c"}}}
	ok, _ = Grade(seq, SequenceResponse{Order: []string{"a", "b", "c"}})
	assert.True(t, ok)
	ok, _ = Grade(seq, SequenceResponse{Order: []string{"a", "c", "b"}})
	assert.False(t, ok)
	ok, _ = Grade(seq, SequenceResponse{Order: []string{"a", "b"}})
	assert.False(t, ok)

	dd := Question{ID: "d", Type: DragDrop, Key: DragDropKey{Zones: map[string]string{"i1": "cloud", "i2": "edge"}}}
	ok, _ = Grade(dd, DragDropResponse{Placements: map[string]string{"i1": "cloud", "i2": "edge"}})
	assert.True(t, ok)
	ok, _ = Grade(dd, DragDropResponse{Placements: map[string]string{"i1": "edge", "i2": "cloud"}})
	assert.False(t, ok)
}

func TestGradeRejectsMismatchedVariant(t *testing.T) {
	q := Question{ID: "q1", Type: SingleChoice, Key: ChoiceKey{CorrectIDs: []string{"a"}}}
	_, err := Grade(q, MultipleChoiceResponse{SelectedIDs: []string{"a"}})
	assert.ErrorIs(t, err, ErrResponseMismatch)

	_, err = Grade(q, nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestResponseEnvelopeRoundTrip(t *testing.T) {
	data, err := MarshalResponse(MatchingResponse{Pairs: map[string]string{"l1": "r1"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"matching","payload":{"pairs":{"l1":"r1"}}}`, string(data))

	r, err := UnmarshalResponse(data)
	require.NoError(t, err)
	assert.Equal(t, MatchingResponse{Pairs: map[string]string{"l1": "r1"}}, r)

	_, err = DecodeResponse("essay", []byte(`{}`))
	assert.ErrorIs(t, err, ErrUnknownQuestionType)

	_, err = DecodeResponse(SingleChoice, nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}
