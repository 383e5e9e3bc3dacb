// Package answer filters the raw token stream of an LLM agent so only the
// final answer reaches subscribers.
package answer

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

const (
	// DefaultMarker is the text that starts the final answer of the agent.
	DefaultMarker = "Final Answer"
	// DefaultSeparator is the text that follows the marker.
	DefaultSeparator = ":"
)

// StripMode selects how the marker leftovers are removed from the first answer tokens.
type StripMode int

const (
	// StripLiteral drops leading whitespace and consumes a single leading separator.
	StripLiteral StripMode = iota
	// StripCharset removes any characters of "<marker><separator> " from the left edge of
	// tokens until a token with the separator is seen. Answers starting with one of those
	// characters get truncated (e.g. "Fulham" -> "ulham").
	StripCharset
)

// ParseStripMode parses a strip mode name.
func ParseStripMode(s string) (StripMode, error) {
	switch strings.ToLower(s) {
	case "", "literal":
		return StripLiteral, nil
	case "charset":
		return StripCharset, nil
	}
	return StripLiteral, fmt.Errorf("unknown strip mode %q", s)
}

func (m StripMode) String() string {
	if m == StripCharset {
		return "charset"
	}
	return "literal"
}

// FilterConfig is the configuration of a Filter.
type FilterConfig struct {
	Marker    string
	Separator string
	Mode      StripMode
	// OnStart is called once, when the marker is detected.
	OnStart func()
}

func (c *FilterConfig) defaults() {
	if c.Marker == "" {
		c.Marker = DefaultMarker
	}
	if c.Separator == "" {
		c.Separator = DefaultSeparator
	}
	if c.OnStart == nil {
		c.OnStart = func() {}
	}
}

// Summary is the result of a filtered question.
type Summary struct {
	// Answered is true when the marker was detected.
	Answered bool
	// Chunks is the number of emitted chunks.
	Chunks int
	// Text is the concatenation of the emitted chunks.
	Text string
}

// Filter is the state of a single question. Create one per question, it is not
// safe for concurrent use and must not be reused once closed.
type Filter struct {
	cfg     FilterConfig
	charset string

	accumulatedRaw strings.Builder
	sawDelimiter   bool
	sawSeparator   bool
	closed         bool

	chunks int
	text   strings.Builder
}

// NewFilter returns a new filter for one question.
func NewFilter(cfg FilterConfig) *Filter {
	cfg.defaults()
	return &Filter{
		cfg:     cfg,
		charset: cfg.Marker + cfg.Separator + " ",
	}
}

// Observe feeds a raw token and returns the chunk that must be emitted, if any.
func (f *Filter) Observe(token string) (string, bool) {
	if f.closed {
		return "", false
	}

	f.accumulatedRaw.WriteString(token)

	if !f.sawDelimiter {
		acc := f.accumulatedRaw.String()
		idx := strings.Index(acc, f.cfg.Marker)
		if idx < 0 {
			return "", false
		}
		f.sawDelimiter = true
		f.accumulatedRaw.Reset()
		f.cfg.OnStart()

		// The completing token can already carry the separator or answer text.
		token = acc[idx+len(f.cfg.Marker):]
		if token == "" {
			return "", false
		}
	}

	chunk := token
	if !f.sawSeparator {
		chunk = f.strip(token)
	}
	if chunk == "" {
		return "", false
	}

	f.chunks++
	f.text.WriteString(chunk)
	return chunk, true
}

func (f *Filter) strip(token string) string {
	if f.cfg.Mode == StripCharset {
		if strings.Contains(token, f.cfg.Separator) {
			f.sawSeparator = true
		}
		return strings.TrimLeft(token, f.charset)
	}

	rest := strings.TrimLeftFunc(token, unicode.IsSpace)
	if rest == "" {
		return ""
	}
	f.sawSeparator = true
	if strings.HasPrefix(rest, f.cfg.Separator) {
		return rest[len(f.cfg.Separator):]
	}
	// No separator after the marker, this is already answer text.
	return rest
}

// Close ends the question and returns its summary. Safe to call more than once.
func (f *Filter) Close() Summary {
	f.closed = true
	return Summary{
		Answered: f.sawDelimiter,
		Chunks:   f.chunks,
		Text:     f.text.String(),
	}
}

// Pipe filters the tokens of in and sends the emitted chunks on the returned channel.
// The returned channel is always closed, when in is closed or ctx is done, and
// the filter is closed right before.
func Pipe(ctx context.Context, f *Filter, in <-chan string) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		defer f.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case token, ok := <-in:
				if !ok {
					return
				}
				chunk, emit := f.Observe(token)
				if !emit {
					continue
				}
				select {
				case <-ctx.Done():
					return
				case out <- chunk:
				}
			}
		}
	}()

	return out
}

// Extract returns the final answer of a complete raw response using the default
// marker. If the response has no marker it is returned untouched.
func Extract(raw string) string {
	return ExtractWith(raw, DefaultMarker, DefaultSeparator)
}

// ExtractWith is like Extract with a custom marker and separator.
func ExtractWith(raw, marker, separator string) string {
	idx := strings.Index(raw, marker)
	if idx < 0 {
		return raw
	}

	rest := strings.TrimLeftFunc(raw[idx+len(marker):], unicode.IsSpace)
	rest = strings.TrimPrefix(rest, separator)
	return strings.TrimSpace(rest)
}
