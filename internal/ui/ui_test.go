package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageString(t *testing.T) {
	assert.Equal(t, "Scanning", StageScanning.String())
	assert.Equal(t, "Tokenizing", StageTokenizing.String())
	assert.Equal(t, "Indexing", StageIndexing.String())
	assert.Equal(t, "Complete", StageComplete.String())
	assert.Equal(t, "Unknown", Stage(99).String())
}

func TestStageIcon(t *testing.T) {
	assert.Equal(t, "SCAN", StageScanning.Icon())
	assert.Equal(t, "TOKEN", StageTokenizing.Icon())
	assert.Equal(t, "INDEX", StageIndexing.Icon())
	assert.Equal(t, "DONE", StageComplete.Icon())
}

func TestPlainRenderer_Progress(t *testing.T) {
	var buf bytes.Buffer
	r := NewPlainRenderer(NewConfig(&buf))
	require.NoError(t, r.Start(context.Background()))

	r.UpdateProgress(ProgressEvent{
		Stage:       StageTokenizing,
		Current:     3,
		Total:       10,
		CurrentFile: "docs/wagahai.txt",
	})

	out := buf.String()
	assert.Contains(t, out, "[TOKEN]")
	assert.Contains(t, out, "3/10")
	assert.Contains(t, out, "docs/wagahai.txt")
}

func TestPlainRenderer_MessageOnly(t *testing.T) {
	var buf bytes.Buffer
	r := NewPlainRenderer(NewConfig(&buf))

	r.UpdateProgress(ProgressEvent{
		Stage:   StageScanning,
		Message: "Scanning /docs...",
	})

	assert.Contains(t, buf.String(), "[SCAN] Scanning /docs...")
}

func TestPlainRenderer_Errors(t *testing.T) {
	var buf bytes.Buffer
	r := NewPlainRenderer(NewConfig(&buf))

	r.AddError(ErrorEvent{File: "a.txt", Err: errors.New("boom")})
	r.AddError(ErrorEvent{File: "b.txt", Err: errors.New("slow"), IsWarn: true})

	out := buf.String()
	assert.Contains(t, out, "ERROR: a.txt: boom")
	assert.Contains(t, out, "WARN: b.txt: slow")
}

func TestPlainRenderer_Complete(t *testing.T) {
	var buf bytes.Buffer
	r := NewPlainRenderer(NewConfig(&buf))

	r.Complete(CompletionStats{
		Files:    12,
		Tokens:   3400,
		Skipped:  2,
		Duration: 1500 * time.Millisecond,
		Backend:  "sqlite",
		Stages: StageTimings{
			Scan:     200 * time.Millisecond,
			Tokenize: 900 * time.Millisecond,
			Index:    400 * time.Millisecond,
		},
	})

	out := buf.String()
	assert.Contains(t, out, "12 files")
	assert.Contains(t, out, "3400 tokens")
	assert.Contains(t, out, "(2 skipped)")
	assert.Contains(t, out, "Backend: sqlite")
	assert.Contains(t, out, "Stage Breakdown:")
}

func TestNewRenderer_PlainForNonTTY(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(NewConfig(&buf))
	_, ok := r.(*PlainRenderer)
	assert.True(t, ok)
}

func TestNewRenderer_ForcePlain(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(NewConfig(&buf, WithForcePlain(true)))
	_, ok := r.(*PlainRenderer)
	assert.True(t, ok)
}

func TestIsTTY_NilAndBuffer(t *testing.T) {
	assert.False(t, IsTTY(nil))
	assert.False(t, IsTTY(&bytes.Buffer{}))
}

func TestProgressTracker_Progress(t *testing.T) {
	p := NewProgressTracker()
	p.SetStage(StageTokenizing, 10)
	p.Update(5, "x.txt")

	assert.InDelta(t, 0.5, p.Progress(), 0.001)

	stats := p.Stats()
	assert.Equal(t, StageTokenizing, stats.Stage)
	assert.Equal(t, 5, stats.Current)
	assert.Equal(t, 10, stats.Total)
	assert.Equal(t, "x.txt", stats.CurrentFile)
}

func TestProgressTracker_ZeroTotal(t *testing.T) {
	p := NewProgressTracker()
	assert.Equal(t, 0.0, p.Progress())
	assert.Equal(t, time.Duration(0), p.Stats().ETA)
}

func TestProgressTracker_OverCount(t *testing.T) {
	p := NewProgressTracker()
	p.SetStage(StageIndexing, 10)
	p.Update(15, "")
	assert.Equal(t, 1.0, p.Progress())
}

func TestProgressTracker_ErrorsAndWarnings(t *testing.T) {
	p := NewProgressTracker()
	p.AddError(ErrorEvent{File: "a", Err: errors.New("e")})
	p.AddError(ErrorEvent{File: "b", Err: errors.New("w"), IsWarn: true})

	stats := p.Stats()
	assert.Equal(t, 1, stats.ErrorCount)
	assert.Equal(t, 1, stats.WarnCount)
	assert.Len(t, p.Errors(), 1)
	assert.Len(t, p.Warnings(), 1)
}

func TestSparkline_Render(t *testing.T) {
	s := NewSparkline(8)
	assert.Equal(t, strings.Repeat(" ", 8), s.Render(8))

	s.Add(1)
	s.Add(8)
	out := s.Render(8)
	assert.Equal(t, 8, len([]rune(out)))
	assert.Contains(t, out, "█", "maximum sample renders as full block")
}

func TestSparkline_RingBufferWraps(t *testing.T) {
	s := NewSparkline(4)
	for i := 0; i < 10; i++ {
		s.Add(float64(i))
	}
	assert.Equal(t, 10, s.Count())
	assert.Equal(t, 4, len([]rune(s.Render(4))))
}

func TestSparkline_Clear(t *testing.T) {
	s := NewSparkline(4)
	s.Add(5)
	s.Clear()
	assert.Equal(t, 0, s.Count())
	assert.Equal(t, 0.0, s.Max())
}

func TestTruncateFilePath(t *testing.T) {
	assert.Equal(t, "short.txt", truncateFilePath("short.txt", 20))
	assert.Equal(t, ".../file.txt", truncateFilePath("very/long/nested/path/file.txt", 12))

	long := truncateFilePath("very/long/nested/path/file.txt", 20)
	assert.LessOrEqual(t, len(long), 20)
	assert.True(t, strings.HasSuffix(long, "file.txt"))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "5s", formatDuration(5*time.Second))
	assert.Equal(t, "2m", formatDuration(2*time.Minute))
	assert.Equal(t, "2m 30s", formatDuration(150*time.Second))
	assert.Equal(t, "1h 5m", formatDuration(65*time.Minute))
}
