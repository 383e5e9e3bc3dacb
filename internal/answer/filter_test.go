package answer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grakai/pitchside/internal/answer"
)

func TestFilterObserve(t *testing.T) {
	tests := map[string]struct {
		mode       answer.StripMode
		tokens     []string
		expChunks  []string
		expStarts  int
		expStartAt int // Index of the token after which OnStart must have been called.
		expSummary answer.Summary
	}{
		"A stream without the marker should not emit anything.": {
			tokens:     []string{"Thinking", " about", " the", " match"},
			expChunks:  []string{},
			expStartAt: -1,
			expSummary: answer.Summary{},
		},
		"The final answer after the marker should be emitted verbatim.": {
			tokens:     []string{"Thinking", "...", "Final Answer", ": Team A wins"},
			expChunks:  []string{" Team A wins"},
			expStarts:  1,
			expStartAt: 2,
			expSummary: answer.Summary{Answered: true, Chunks: 1, Text: " Team A wins"},
		},
		"A marker split across tokens should be detected at the completing token.": {
			tokens:     []string{"I know. Fin", "al Ans", "wer", ":", " 2", "-1"},
			expChunks:  []string{" 2", "-1"},
			expStarts:  1,
			expStartAt: 2,
			expSummary: answer.Summary{Answered: true, Chunks: 2, Text: " 2-1"},
		},
		"A repeated marker should only notify once and be emitted as answer text.": {
			tokens:     []string{"Final Answer", ":", " the Final Answer", " is 3"},
			expChunks:  []string{" the Final Answer", " is 3"},
			expStarts:  1,
			expStartAt: 0,
			expSummary: answer.Summary{Answered: true, Chunks: 2, Text: " the Final Answer is 3"},
		},
		"Whitespace before the separator should be dropped.": {
			tokens:     []string{"Final Answer", " ", " : Fernandes", " scored"},
			expChunks:  []string{" Fernandes", " scored"},
			expStarts:  1,
			expStartAt: 0,
			expSummary: answer.Summary{Answered: true, Chunks: 2, Text: " Fernandes scored"},
		},
		"A missing separator should end stripping on the first text.": {
			tokens:     []string{"Final Answer", " Team", " B"},
			expChunks:  []string{"Team", " B"},
			expStarts:  1,
			expStartAt: 0,
			expSummary: answer.Summary{Answered: true, Chunks: 2, Text: "Team B"},
		},
		"A marker with no answer should answer with zero chunks.": {
			tokens:     []string{"Final Answer"},
			expChunks:  []string{},
			expStarts:  1,
			expStartAt: 0,
			expSummary: answer.Summary{Answered: true},
		},
		"Charset mode should strip the marker characters from the left edge.": {
			mode:       answer.StripCharset,
			tokens:     []string{"Thinking", "Final Answer", ": Team A wins", " today"},
			expChunks:  []string{"Team A wins", " today"},
			expStarts:  1,
			expStartAt: 1,
			expSummary: answer.Summary{Answered: true, Chunks: 2, Text: "Team A wins today"},
		},
		"Charset mode should truncate answers starting with marker characters.": {
			mode:       answer.StripCharset,
			tokens:     []string{"Final Answer", ": Fulham"},
			expChunks:  []string{"ulham"},
			expStarts:  1,
			expStartAt: 0,
			expSummary: answer.Summary{Answered: true, Chunks: 1, Text: "ulham"},
		},
		"Charset mode should keep stripping until a separator is seen.": {
			mode:       answer.StripCharset,
			tokens:     []string{"Final Answer", " Final", " A", ": goal", " Final"},
			expChunks:  []string{"goal", " Final"},
			expStarts:  1,
			expStartAt: 0,
			expSummary: answer.Summary{Answered: true, Chunks: 2, Text: "goal Final"},
		},
		"A separator on the marker completing token should keep the next answer token verbatim.": {
			tokens:     []string{"Thought", " done.", " Final", " Answer:", " Team", " A", " wins"},
			expChunks:  []string{" Team", " A", " wins"},
			expStarts:  1,
			expStartAt: 3,
			expSummary: answer.Summary{Answered: true, Chunks: 3, Text: " Team A wins"},
		},
		"Charset mode should stop stripping when the marker completing token has the separator.": {
			mode:       answer.StripCharset,
			tokens:     []string{"Thought", " done.", " Final", " Answer:", " Team", " A", " wins"},
			expChunks:  []string{" Team", " A", " wins"},
			expStarts:  1,
			expStartAt: 3,
			expSummary: answer.Summary{Answered: true, Chunks: 3, Text: " Team A wins"},
		},
		"Answer text on the marker completing token should be emitted.": {
			tokens:     []string{"Final Answer: Team", " B"},
			expChunks:  []string{" Team", " B"},
			expStarts:  1,
			expStartAt: 0,
			expSummary: answer.Summary{Answered: true, Chunks: 2, Text: " Team B"},
		},
		"Charset mode should strip the answer text on the marker completing token.": {
			mode:       answer.StripCharset,
			tokens:     []string{"Final Answer: Team", " B"},
			expChunks:  []string{"Team", " B"},
			expStarts:  1,
			expStartAt: 0,
			expSummary: answer.Summary{Answered: true, Chunks: 2, Text: "Team B"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			starts := 0
			startAt := -1
			current := 0
			f := answer.NewFilter(answer.FilterConfig{
				Mode: test.mode,
				OnStart: func() {
					starts++
					startAt = current
				},
			})

			gotChunks := []string{}
			for i, token := range test.tokens {
				current = i
				if chunk, ok := f.Observe(token); ok {
					gotChunks = append(gotChunks, chunk)
				}
			}

			assert.Equal(test.expChunks, gotChunks)
			assert.Equal(test.expStarts, starts)
			assert.Equal(test.expStartAt, startAt)
			assert.Equal(test.expSummary, f.Close())
		})
	}
}

func TestFilterObserveAfterClose(t *testing.T) {
	f := answer.NewFilter(answer.FilterConfig{})
	_, _ = f.Observe("Final Answer")
	f.Close()

	chunk, ok := f.Observe(": late")
	assert.False(t, ok)
	assert.Empty(t, chunk)
	assert.Equal(t, answer.Summary{Answered: true}, f.Close())
}

func TestFilterCustomMarker(t *testing.T) {
	f := answer.NewFilter(answer.FilterConfig{Marker: "ANSWER", Separator: "=>"})

	var got []string
	for _, token := range []string{"plan", "ANS", "WER", " => ", "42"} {
		if chunk, ok := f.Observe(token); ok {
			got = append(got, chunk)
		}
	}

	assert.Equal(t, []string{" ", "42"}, got)
}

func TestPipe(t *testing.T) {
	tests := map[string]struct {
		tokens    []string
		expChunks []string
		expSum    answer.Summary
	}{
		"A stream without the marker should end cleanly with zero chunks.": {
			tokens:    []string{"no", " answer", " here"},
			expChunks: nil,
			expSum:    answer.Summary{},
		},
		"A stream with the marker should emit the answer in order.": {
			tokens:    []string{"Thinking", "...", "Final Answer", ": Team", " A", " wins"},
			expChunks: []string{" Team", " A", " wins"},
			expSum:    answer.Summary{Answered: true, Chunks: 3, Text: " Team A wins"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			in := make(chan string, len(test.tokens))
			for _, token := range test.tokens {
				in <- token
			}
			close(in)

			f := answer.NewFilter(answer.FilterConfig{})
			var got []string
			for chunk := range answer.Pipe(context.Background(), f, in) {
				got = append(got, chunk)
			}

			assert.Equal(t, test.expChunks, got)
			assert.Equal(t, test.expSum, f.Close())
		})
	}
}

func TestPipeContextCancelClosesOutput(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan string)
	f := answer.NewFilter(answer.FilterConfig{})

	out := answer.Pipe(ctx, f, in)
	cancel()

	_, ok := <-out
	require.False(t, ok)
}

func TestExtract(t *testing.T) {
	tests := map[string]struct {
		raw string
		exp string
	}{
		"A raw response with the marker should return the answer.": {
			raw: "Thought: check stats\nFinal Answer: Team A wins",
			exp: "Team A wins",
		},
		"A raw response without separator should return the text after the marker.": {
			raw: "Final Answer Team B",
			exp: "Team B",
		},
		"A raw response without the marker should be returned untouched.": {
			raw: "Just text",
			exp: "Just text",
		},
		"Answer text starting with marker characters should not be truncated.": {
			raw: "Final Answer: Fernandes scored",
			exp: "Fernandes scored",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.exp, answer.Extract(test.raw))
		})
	}
}

func TestParseStripMode(t *testing.T) {
	m, err := answer.ParseStripMode("charset")
	require.NoError(t, err)
	assert.Equal(t, answer.StripCharset, m)

	m, err = answer.ParseStripMode("")
	require.NoError(t, err)
	assert.Equal(t, answer.StripLiteral, m)

	_, err = answer.ParseStripMode("regex")
	assert.Error(t, err)
}
