// Package agent queries the LLM agent that answers questions about a session's clips.
package agent

import "context"

// Question is a question of a user about a session clip.
type Question struct {
	SessionID string
	VideoID   string
	Sender    string
	Text      string
}

// Agent streams the raw answer tokens, reasoning included, of a question. Stream
// returns when the generation ends.
type Agent interface {
	Stream(ctx context.Context, q Question, onToken func(token string)) error
}

// DefaultSystemPrompt is the system prompt used when none is configured.
const DefaultSystemPrompt = `You are a football analyst answering questions about match clips processed by a
tracking pipeline (players, teams, ball possession, speed and distance).
Reason step by step, then write the answer on a last line that starts with "Final Answer: ".`
