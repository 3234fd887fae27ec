package tui

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCursorUp(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "\033[1A", CursorUp(1))
	assert.Equal(t, "\033[12A", CursorUp(12))
}

func TestWidthFallback(t *testing.T) {
	t.Parallel()

	// Under go test the fds are pipes, not terminals.
	f, err := os.Open(os.DevNull)
	if err != nil {
		t.Skip("no /dev/null")
	}
	defer f.Close()

	assert.Equal(t, 80, Width(f, 80))
	assert.False(t, IsTerminal(f))
}

func TestRepainter(t *testing.T) {
	t.Parallel()

	t.Run("first frame writes lines straight out", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		r := NewRepainter(&buf)
		r.Paint([]string{"one", "two"})

		assert.Equal(t, ClearLine+"one\n"+ClearLine+"two\n", buf.String())
		assert.Equal(t, 2, r.Painted())
	})

	t.Run("second frame rewinds over the first", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		r := NewRepainter(&buf)
		r.Paint([]string{"one", "two"})
		buf.Reset()

		r.Paint([]string{"uno", "dos"})
		assert.Equal(t, CursorUp(2)+ClearLine+"uno\n"+ClearLine+"dos\n", buf.String())
	})

	t.Run("shrinking frames blank the leftovers", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		r := NewRepainter(&buf)
		r.Paint([]string{"one", "two", "three"})
		buf.Reset()

		r.Paint([]string{"only"})
		want := CursorUp(3) + ClearLine + "only\n" +
			ClearLine + "\n" + ClearLine + "\n" + CursorUp(2)
		assert.Equal(t, want, buf.String())
		assert.Equal(t, 1, r.Painted())
	})

	t.Run("growing frames just keep writing", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		r := NewRepainter(&buf)
		r.Paint([]string{"one"})
		buf.Reset()

		r.Paint([]string{"one", "two"})
		assert.Equal(t, CursorUp(1)+ClearLine+"one\n"+ClearLine+"two\n", buf.String())
		assert.Equal(t, 2, r.Painted())
	})

	t.Run("empty frame erases everything", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		r := NewRepainter(&buf)
		r.Paint([]string{"one"})
		buf.Reset()

		r.Paint(nil)
		assert.Equal(t, CursorUp(1)+ClearLine+"\n"+CursorUp(1), buf.String())
		assert.Equal(t, 0, r.Painted())
	})
}
