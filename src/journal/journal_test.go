package journal

import (
	"path/filepath"
	"testing"

	"github.com/flashtony2005/corda/src/common"
	"github.com/stretchr/testify/require"
)

func TestRecordAndEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal")
	logger := common.NewTestEntry(t, "journal")

	j, err := Open(path, "session-1", logger)
	require.NoError(t, err)

	require.NoError(t, j.Record(KindState, "network", "Created -> Bootstrapped"))
	require.NoError(t, j.Record(KindCommand, "network-bootstrapper.jar", "exit 0"))
	j.Recordf(KindNode, "PartyA", "running after %s", "1.5s")

	entries, err := j.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 3)

	for i, e := range entries {
		require.Equal(t, uint64(i+1), e.Seq)
		require.Equal(t, "session-1", e.Session)
		require.False(t, e.At().IsZero())
	}
	require.Equal(t, KindCommand, entries[1].Kind)
	require.Equal(t, "running after 1.5s", entries[2].Detail)

	require.NoError(t, j.Close())
	require.NoError(t, j.Close())

	// recording after close is ignored
	require.NoError(t, j.Record(KindState, "network", "ignored"))
}

func TestReopenContinuesSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal")
	logger := common.NewTestEntry(t, "journal")

	j, err := Open(path, "first", logger)
	require.NoError(t, err)
	for i := 0; i < 12; i++ {
		require.NoError(t, j.Record(KindState, "network", "step"))
	}
	require.NoError(t, j.Close())

	j, err = Open(path, "second", logger)
	require.NoError(t, err)
	require.NoError(t, j.Record(KindFailure, "network", "liveness"))
	require.NoError(t, j.Close())

	entries, err := Read(path, logger)
	require.NoError(t, err)
	require.Len(t, entries, 13)
	require.Equal(t, uint64(13), entries[12].Seq)
	require.Equal(t, "second", entries[12].Session)
}

func TestReadMissing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "none"), common.NewTestEntry(t, "journal"))
	require.Error(t, err)
}

func TestEntryMarshal(t *testing.T) {
	e := Entry{Seq: 7, Time: 42, Session: "s", Kind: KindSignal, Subject: "network", Detail: "fired"}

	data, err := e.Marshal()
	require.NoError(t, err)

	var out Entry
	require.NoError(t, out.Unmarshal(data))
	require.Equal(t, e, out)
}
