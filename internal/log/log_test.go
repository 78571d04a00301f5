package log

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSetOutputWhileLogging(t *testing.T) {
	t.Cleanup(func() { SetOutput(os.Stderr) })

	var wg sync.WaitGroup
	bufs := make([]*syncBuffer, 8)
	for i := range bufs {
		bufs[i] = &syncBuffer{}
	}
	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				Info("concurrent", "worker", i)
			}
		}()
	}
	for _, b := range bufs {
		SetOutput(b)
	}
	wg.Wait()

	last := bufs[len(bufs)-1]
	Info("after swap")
	if !strings.Contains(last.String(), "after swap") {
		t.Fatalf("last output missing line: %q", last.String())
	}
}

func TestLevelAndError(t *testing.T) {
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(LevelInfo)
	})
	b := &syncBuffer{}
	SetOutput(b)

	SetLevel(LevelError)
	Info("hidden")
	Error("shown", errors.New("boom"), "key", "v")
	out := b.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info logged at error level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "boom") {
		t.Fatalf("error line = %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tcs := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{" ERROR ", LevelError},
		{"info", LevelInfo},
		{"verbose", LevelInfo},
	}
	for _, tc := range tcs {
		if got := ParseLevel(tc.in); got != tc.want {
			t.Fatalf("ParseLevel(%q)=%s; want %s", tc.in, got, tc.want)
		}
	}
}
