package provider

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunk(content string) string {
	return `data: {"choices":[{"delta":{"content":"` + content + `"}}]}` + "\n"
}

func TestFrameParserSplitLine(t *testing.T) {
	var p FrameParser

	deltas, done := p.Feed(`data: {"choices":[{"delta":{"content":"Hel`)
	assert.Empty(t, deltas)
	assert.False(t, done)

	deltas, done = p.Feed(`lo"}}]}` + "\n")
	assert.Equal(t, []string{"Hello"}, deltas)
	assert.False(t, done)
}

func TestFrameParserDoneStopsParsing(t *testing.T) {
	var p FrameParser

	deltas, done := p.Feed(chunk("a") + "data: [DONE]\n" + chunk("b"))
	assert.Equal(t, []string{"a"}, deltas)
	assert.True(t, done)
	assert.True(t, p.Done())

	deltas, done = p.Feed(chunk("c"))
	assert.Empty(t, deltas)
	assert.True(t, done)
}

func TestFrameParserSkipsMalformedAndEmpty(t *testing.T) {
	var p FrameParser
	input := strings.Join([]string{
		"data: {not json",
		"data: [1,2,3]",
		`data: {"choices":[{"delta":{}}]}`,
		`data: {"choices":[{"delta":{"content":""}}]}`,
		`data: {"choices":[{"delta":{"content":null}}]}`,
		`data: {"choices":[]}`,
		": keep-alive",
		"event: message",
		"",
		"   ",
		"data: " + `{"choices":[{"delta":{"content":"ok"}}]}`,
		"",
	}, "\n")

	deltas, done := p.Feed(input)
	assert.Equal(t, []string{"ok"}, deltas)
	assert.False(t, done)
}

func TestFrameParserCRLFAndNoSpace(t *testing.T) {
	var p FrameParser
	deltas, _ := p.Feed("data:{\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\r\n\r\ndata: [DONE]\r\n")
	assert.Equal(t, []string{"x"}, deltas)
	assert.True(t, p.Done())
}

func TestFrameParserPreservesWhitespaceInContent(t *testing.T) {
	var p FrameParser
	deltas, _ := p.Feed(chunk(" world") + chunk("\\n"))
	assert.Equal(t, []string{" world", "\n"}, deltas)
}

func TestFrameParserFlushUnterminatedLine(t *testing.T) {
	var p FrameParser
	deltas, _ := p.Feed(strings.TrimSuffix(chunk("tail"), "\n"))
	assert.Empty(t, deltas)

	deltas, done := p.Flush()
	assert.Equal(t, []string{"tail"}, deltas)
	assert.False(t, done)

	deltas, _ = p.Flush()
	assert.Empty(t, deltas)
}

func TestFrameParserArbitrarySplits(t *testing.T) {
	stream := chunk("Hel") + ": ping\n" + chunk("lo") + chunk(", ") + chunk("世界") + "data: [DONE]\n"

	for size := 1; size <= len(stream); size++ {
		var p FrameParser
		var got []string
		for i := 0; i < len(stream); i += size {
			end := min(i+size, len(stream))
			deltas, _ := p.Feed(stream[i:end])
			got = append(got, deltas...)
		}
		require.Equal(t, "Hello, 世界", strings.Join(got, ""), "split size %d", size)
		require.True(t, p.Done(), "split size %d", size)
	}
}

func TestTextReaderHoldsSplitRunes(t *testing.T) {
	src := []byte(chunk("你好"))
	r := newTextReader(iotest.OneByteReader(bytes.NewReader(src)))

	buf := make([]byte, 64)
	var got []string
	for {
		n, err := r.Read(buf)
		if n > 0 {
			got = append(got, string(buf[:n]))
		}
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}

	var p FrameParser
	var deltas []string
	for _, piece := range got {
		assert.True(t, utf8.ValidString(piece), "piece %q splits a character", piece)
		d, _ := p.Feed(piece)
		deltas = append(deltas, d...)
	}
	assert.Equal(t, []string{"你好"}, deltas)
}
