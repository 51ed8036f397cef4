package internal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// segmentAll feeds every token and returns the completed segments.
func segmentAll(tokens []*Token) ([][]*Token, error) {
	automaton := NewAutomaton()
	var segments [][]*Token
	for _, token := range tokens {
		segment, state, err := automaton.Step(token)
		if err != nil {
			return segments, err
		}
		if segment != nil {
			if state != AcceptState {
				return segments, errors.New("segment returned outside of the accept state")
			}
			segments = append(segments, segment)
		}
	}
	return segments, nil
}

func TestAutomaton_AcceptsStatementShapes(t *testing.T) {
	statements := []string{
		"x = 1;",
		"x = (a + 2) * b;",
		"x = arr[i + 1];",
		"arr[2] = 9;",
		"arr[(i + 1) * 2] = arr[i] - 1;",
		"var x;",
		"var x = 2 + 3 * 4;",
		"var x = arr[0];",
		"var arr[5];",
		"var arr[n * 2];",
		"if a < b;",
		"if (a + 1) =< (b * 2);",
		"while arr[i] =! 0;",
		"while i == 10;",
		"print x;",
		"print (x + y);",
		"print arr[3];",
		"endif;",
		"endwhile;",
		"endfunc;",
		"func f;",
		"func f: a, b, c;",
		"call f;",
		"call f: a = 1, b = c;",
	}
	for _, statement := range statements {
		tokens := tokenize(t, statement)
		segments, err := segmentAll(tokens)
		require.NoError(t, err, statement)
		require.Len(t, segments, 1, statement)
		assert.Equal(t, tokens[:len(tokens)-1], segments[0], statement)
	}
}

func TestAutomaton_SegmentsEveryStatement(t *testing.T) {
	src := "var i = 0; while i < 3; print i; i = i + 1; endwhile;"
	segments, err := segmentAll(tokenize(t, src))
	require.NoError(t, err)
	require.Len(t, segments, 5)
	for _, segment := range segments {
		for _, token := range segment {
			assert.NotEqual(t, SemiColonTP, token.Type)
		}
	}
	assert.Equal(t, []string{"print", "i"}, tokenContents(segments[2]))
}

func TestAutomaton_Rejects(t *testing.T) {
	testData := []struct {
		src      string
		state    int
		position int
	}{
		{"var ;", 10, 1},
		{"print ;", 30, 1},
		{"if a;", 22, 2},
		{"x = 1 +;", 4, 4},
		{"x x", 1, 1},
		{"func f: a b;", 53, 4},
		{"call f: a;", 63, 4},
		{"= 1;", 0, 0},
		{"var x = 1 { 2;", 13, 4},
		{"endif x;", 40, 1},
	}
	for _, data := range testData {
		_, err := segmentAll(tokenize(t, data.src))
		require.Error(t, err, data.src)
		assert.True(t, errors.Is(err, ErrSegmentation), data.src)
		var segErr *SegmentationError
		require.True(t, errors.As(err, &segErr), data.src)
		assert.Equal(t, data.state, segErr.State, data.src)
		assert.Equal(t, data.position, segErr.Position, data.src)
	}
}

func TestAutomaton_Pending(t *testing.T) {
	automaton := NewAutomaton()
	for _, token := range tokenize(t, "var x = 1") {
		_, _, err := automaton.Step(token)
		require.NoError(t, err)
	}
	assert.Equal(t, 13, automaton.State())
	assert.Equal(t, 4, automaton.Pending())
	segment, state, err := automaton.Step(&Token{Type: SemiColonTP, Content: ";"})
	require.NoError(t, err)
	assert.Equal(t, AcceptState, state)
	assert.Len(t, segment, 4)
	assert.Equal(t, InitialState, automaton.State())
	assert.Equal(t, 0, automaton.Pending())
}

// Every state reached by a transition, other than AcceptState, must itself have a way out.
func TestTransitions_NoDeadStates(t *testing.T) {
	hasOutgoing := map[int]bool{}
	for key := range transitions {
		hasOutgoing[key.state] = true
	}
	for key, next := range transitions {
		if next == AcceptState {
			assert.Equal(t, SemiColonTP, key.tp, "state %d accepts on %s", key.state, key.tp)
			continue
		}
		assert.True(t, hasOutgoing[next], "state %d reached from %d is a dead end", next, key.state)
	}
}
