package provider

import (
	"io"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	ssePrefix = "data:"
	sseDone   = "[DONE]"
)

// FrameParser turns text read off an SSE response into content deltas.
//
// Text may arrive split at arbitrary points; the parser keeps the incomplete
// trailing line and prepends it to the next Feed. Lines that are not data
// lines (comments, keep-alives, event names) are ignored, and data payloads
// that are not well-formed JSON objects are dropped without error.
type FrameParser struct {
	pending string
	done    bool
}

// Feed consumes the next piece of decoded text and returns the deltas found in
// the lines it completed, in order. done reports that a [DONE] marker was
// seen; anything after it is ignored.
func (p *FrameParser) Feed(text string) (deltas []string, done bool) {
	if p.done {
		return nil, true
	}

	buf := p.pending + text
	lines := strings.Split(buf, "\n")
	p.pending = lines[len(lines)-1]

	for _, line := range lines[:len(lines)-1] {
		delta, ok, stop := parseLine(line)
		if stop {
			p.done = true
			p.pending = ""
			return deltas, true
		}
		if ok {
			deltas = append(deltas, delta)
		}
	}

	return deltas, false
}

// Flush handles a final line that was never terminated by a newline. It is
// called once the body is exhausted.
func (p *FrameParser) Flush() (deltas []string, done bool) {
	if p.done {
		return nil, true
	}
	line := p.pending
	p.pending = ""

	delta, ok, stop := parseLine(line)
	if stop {
		p.done = true
		return nil, true
	}
	if ok {
		deltas = append(deltas, delta)
	}
	return deltas, false
}

// Done reports whether the [DONE] marker has been seen.
func (p *FrameParser) Done() bool {
	return p.done
}

// parseLine decodes a single SSE line. ok is set when the line carried a
// non-empty content delta; stop is set for the [DONE] marker.
func parseLine(line string) (delta string, ok bool, stop bool) {
	line = strings.TrimSuffix(line, "\r")
	if strings.TrimSpace(line) == "" {
		return "", false, false
	}
	if !strings.HasPrefix(line, ssePrefix) {
		return "", false, false
	}

	payload := strings.TrimPrefix(line[len(ssePrefix):], " ")
	if strings.TrimSpace(payload) == sseDone {
		return "", false, true
	}

	delta, ok = parseDeltaRecord(payload)
	return delta, ok, false
}

// parseDeltaRecord extracts choices[0].delta.content from a streaming chunk.
func parseDeltaRecord(payload string) (string, bool) {
	if !gjson.Valid(payload) {
		return "", false
	}
	record := gjson.Parse(payload)
	if !record.IsObject() {
		return "", false
	}

	content := record.Get("choices.0.delta.content")
	if content.Type != gjson.String || content.Str == "" {
		return "", false
	}
	return content.Str, true
}

// parseMessageRecord extracts choices[0].message.content from a non-streaming
// completion body. A valid body without content yields an empty string.
func parseMessageRecord(body string) (string, bool) {
	if !gjson.Valid(body) {
		return "", false
	}
	return gjson.Get(body, "choices.0.message.content").String(), true
}

// newTextReader wraps r with an incremental UTF-8 decoder. A multi-byte
// sequence split across reads is held back until its remaining bytes arrive,
// so every string handed to the parser is whole characters.
func newTextReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.UTF8.NewDecoder())
}
