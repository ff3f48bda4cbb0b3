package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForBatch(t *testing.T, d *Debouncer) []FileEvent {
	t.Helper()
	select {
	case batch := <-d.Output():
		return batch
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for debounced batch")
		return nil
	}
}

func expectNoBatch(t *testing.T, d *Debouncer, within time.Duration) {
	t.Helper()
	select {
	case batch := <-d.Output():
		t.Fatalf("unexpected batch: %v", batch)
	case <-time.After(within):
	}
}

func TestDebouncer_SingleEventPassesThrough(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "memo.txt", Operation: OpCreate, Timestamp: time.Now()})

	batch := waitForBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, "memo.txt", batch[0].Path)
	assert.Equal(t, OpCreate, batch[0].Operation)
}

func TestDebouncer_RapidModifiesCoalesce(t *testing.T) {
	d := NewDebouncer(80 * time.Millisecond)
	defer d.Stop()

	for i := 0; i < 5; i++ {
		d.Add(FileEvent{Path: "memo.txt", Operation: OpModify, Timestamp: time.Now()})
	}

	batch := waitForBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpModify, batch[0].Operation)
}

func TestDebouncer_CreateThenDeleteCancels(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "tmp.txt", Operation: OpCreate, Timestamp: time.Now()})
	d.Add(FileEvent{Path: "tmp.txt", Operation: OpDelete, Timestamp: time.Now()})

	expectNoBatch(t, d, 200*time.Millisecond)
}

func TestDebouncer_CreateThenModifyStaysCreate(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "memo.txt", Operation: OpCreate, Timestamp: time.Now()})
	d.Add(FileEvent{Path: "memo.txt", Operation: OpModify, Timestamp: time.Now()})

	batch := waitForBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpCreate, batch[0].Operation)
}

func TestDebouncer_ModifyThenDeleteBecomesDelete(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "memo.txt", Operation: OpModify, Timestamp: time.Now()})
	d.Add(FileEvent{Path: "memo.txt", Operation: OpDelete, Timestamp: time.Now()})

	batch := waitForBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpDelete, batch[0].Operation)
}

func TestDebouncer_DeleteThenCreateBecomesModify(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "memo.txt", Operation: OpDelete, Timestamp: time.Now()})
	d.Add(FileEvent{Path: "memo.txt", Operation: OpCreate, Timestamp: time.Now()})

	batch := waitForBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpModify, batch[0].Operation)
}

func TestDebouncer_DistinctPathsShareBatch(t *testing.T) {
	d := NewDebouncer(80 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "a.txt", Operation: OpCreate, Timestamp: time.Now()})
	d.Add(FileEvent{Path: "b.txt", Operation: OpModify, Timestamp: time.Now()})

	batch := waitForBatch(t, d)
	require.Len(t, batch, 2)

	byPath := make(map[string]Operation, len(batch))
	for _, ev := range batch {
		byPath[ev.Path] = ev.Operation
	}
	assert.Equal(t, OpCreate, byPath["a.txt"])
	assert.Equal(t, OpModify, byPath["b.txt"])
}

func TestDebouncer_AddResetsWindow(t *testing.T) {
	d := NewDebouncer(100 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "memo.txt", Operation: OpModify, Timestamp: time.Now()})
	time.Sleep(60 * time.Millisecond)
	d.Add(FileEvent{Path: "memo.txt", Operation: OpModify, Timestamp: time.Now()})

	// The first window would have expired here; the second Add pushed it out.
	expectNoBatch(t, d, 50*time.Millisecond)
	waitForBatch(t, d)
}

func TestDebouncer_StopClosesOutput(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	d.Stop()
	d.Stop() // idempotent

	_, ok := <-d.Output()
	assert.False(t, ok)

	// Add after stop must not panic.
	d.Add(FileEvent{Path: "memo.txt", Operation: OpCreate, Timestamp: time.Now()})
}

func TestOperation_String(t *testing.T) {
	assert.Equal(t, "CREATE", OpCreate.String())
	assert.Equal(t, "MODIFY", OpModify.String())
	assert.Equal(t, "DELETE", OpDelete.String())
	assert.Equal(t, "RENAME", OpRename.String())
	assert.Equal(t, "GITIGNORE_CHANGE", OpGitignoreChange.String())
	assert.Equal(t, "UNKNOWN", Operation(99).String())
}
