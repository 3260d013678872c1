package record

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/looper/internal/models"
)

func TestRecordAppendsEntries(t *testing.T) {
	project := t.TempDir()
	recorder := NewRecorder(project, nil)

	recorder.Record("fix-1", "fix", models.SessionStatusComplete, "queue empty")
	recorder.Record("refine-1", "refine", models.SessionStatusMaxIterations, "max iterations reached (25)")

	entries, err := Entries(project)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "fix-1", entries[0].Session)
	require.Equal(t, models.SessionStatusComplete, entries[0].Status)
	require.Equal(t, "refine", entries[1].LoopType)
	require.Equal(t, models.SessionStatusMaxIterations, entries[1].Status)
	require.False(t, entries[0].CompletedAt.IsZero())
}

func TestEntriesOnMissingLogIsEmpty(t *testing.T) {
	entries, err := Entries(t.TempDir())
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestDrainClearsLog(t *testing.T) {
	project := t.TempDir()
	recorder := NewRecorder(project, nil)
	recorder.Record("fix-1", "fix", models.SessionStatusComplete, "")

	drained, err := Drain(project)
	require.NoError(t, err)
	require.Len(t, drained, 1)

	// The mailbox is empty after draining, but the file stays valid JSON.
	after, err := Entries(project)
	require.NoError(t, err)
	require.Empty(t, after)

	data, err := os.ReadFile(LogPath(project))
	require.NoError(t, err)
	require.JSONEq(t, "[]", string(data))
}

func TestDrainEmptyLogIsNoop(t *testing.T) {
	project := t.TempDir()
	drained, err := Drain(project)
	require.NoError(t, err)
	require.Empty(t, drained)

	// Nothing to drain means the file is not even created.
	_, err = os.Stat(LogPath(project))
	require.True(t, os.IsNotExist(err))
}

type failingNotifier struct{ called bool }

func (n *failingNotifier) Notify(title, body string) error {
	n.called = true
	return errors.New("no notification daemon")
}

func TestNotifierFailureIsNotFatal(t *testing.T) {
	project := t.TempDir()
	notifier := &failingNotifier{}
	recorder := NewRecorder(project, notifier)

	recorder.Record("fix-1", "fix", models.SessionStatusComplete, "queue empty")

	require.True(t, notifier.called)
	entries, err := Entries(project)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
