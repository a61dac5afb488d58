package runner

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTailKeepsLastLines(t *testing.T) {
	tl := newTail(3)
	for i := 1; i <= 5; i++ {
		tl.Append(fmt.Sprintf("line %d", i))
	}
	assert.Equal(t, "line 3\nline 4\nline 5", tl.String())
}

func TestTailUnderCapacity(t *testing.T) {
	tl := newTail(10)
	tl.Append("only")
	assert.Equal(t, "only", tl.String())
}

func TestTailEmpty(t *testing.T) {
	assert.Equal(t, "", newTail(10).String())
}

func TestLineWriterSplitsChunks(t *testing.T) {
	var got []string
	w := newLineWriter(func(line string) { got = append(got, line) })

	_, _ = w.Write([]byte("hel"))
	_, _ = w.Write([]byte("lo\nwor"))
	_, _ = w.Write([]byte("ld\n"))
	assert.Equal(t, []string{"hello", "world"}, got)
}

func TestLineWriterFlushEmitsPartialLine(t *testing.T) {
	var got []string
	w := newLineWriter(func(line string) { got = append(got, line) })

	_, _ = w.Write([]byte("no newline"))
	assert.Empty(t, got)
	w.Flush()
	assert.Equal(t, []string{"no newline"}, got)
	w.Flush()
	assert.Len(t, got, 1, "flush is idempotent")
}

func TestLineWriterStripsCarriageReturn(t *testing.T) {
	var got []string
	w := newLineWriter(func(line string) { got = append(got, line) })

	_, _ = w.Write([]byte("dos line\r\n"))
	assert.Equal(t, []string{"dos line"}, got)
}
