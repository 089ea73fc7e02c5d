package app

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/talentvote/internal/adapter/memory"
)

func newTestVoteStore(t *testing.T) (*VoteStore, *memory.Store, *clockwork.FakeClock) {
	t.Helper()
	kv := memory.NewStore()
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	return NewVoteStore(kv, clock, "", nil), kv, clock
}

func TestVoteStore_GlobalRecordRoundTrip(t *testing.T) {
	store, _, clock := newTestVoteStore(t)
	ctx := context.Background()
	writeTime := clock.Now().UnixMilli()

	store.SetGlobalRecord(ctx, strPtr("1"), true)

	record, ok := store.GlobalRecord(ctx)
	require.True(t, ok)
	assert.True(t, record.HasVoted)
	require.NotNil(t, record.ContestantID)
	assert.Equal(t, "1", *record.ContestantID)
	assert.GreaterOrEqual(t, record.Timestamp, writeTime)
}

func TestVoteStore_GlobalRecordNilContestant(t *testing.T) {
	store, kv, _ := newTestVoteStore(t)
	ctx := context.Background()

	store.SetGlobalRecord(ctx, nil, false)

	raw, ok, err := kv.Get(ctx, globalRecordKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"hasVoted":false,"contestantId":null,"timestamp":1700000000000}`, raw)

	record, ok := store.GlobalRecord(ctx)
	require.True(t, ok)
	assert.False(t, record.HasVoted)
	assert.Nil(t, record.ContestantID)
}

func TestVoteStore_GlobalRecordLastWriteWins(t *testing.T) {
	store, _, clock := newTestVoteStore(t)
	ctx := context.Background()

	store.SetGlobalRecord(ctx, strPtr("1"), true)
	clock.Advance(time.Second)
	store.SetGlobalRecord(ctx, strPtr("2"), true)

	record, ok := store.GlobalRecord(ctx)
	require.True(t, ok)
	assert.Equal(t, "2", *record.ContestantID)
	assert.Equal(t, int64(1_700_000_001_000), record.Timestamp)
}

func TestVoteStore_GlobalRecordAbsent(t *testing.T) {
	store, _, _ := newTestVoteStore(t)

	_, ok := store.GlobalRecord(context.Background())
	assert.False(t, ok)
}

func TestVoteStore_ContestantRecordRoundTrip(t *testing.T) {
	store, _, clock := newTestVoteStore(t)
	ctx := context.Background()
	writeTime := clock.Now().UnixMilli()

	store.SetContestantRecord(ctx, "1", true)

	record, ok := store.ContestantRecord(ctx, "1")
	require.True(t, ok)
	assert.Equal(t, "1", record.ContestantID)
	assert.True(t, record.HasVoted)
	assert.GreaterOrEqual(t, record.Timestamp, writeTime)

	_, ok = store.ContestantRecord(ctx, "2")
	assert.False(t, ok)
}

func TestVoteStore_ContestantRecordUpsertKeepsOrder(t *testing.T) {
	store, kv, clock := newTestVoteStore(t)
	ctx := context.Background()

	store.SetContestantRecord(ctx, "1", true)
	store.SetContestantRecord(ctx, "2", true)
	clock.Advance(time.Second)
	store.SetContestantRecord(ctx, "1", false)

	raw, _, err := kv.Get(ctx, contestantRecordsKey)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"contestantId":"1","hasVoted":false,"timestamp":1700000001000},
		{"contestantId":"2","hasVoted":true,"timestamp":1700000000000}
	]`, raw)
}

func TestVoteStore_ClearOperations(t *testing.T) {
	store, _, _ := newTestVoteStore(t)
	ctx := context.Background()

	store.SetContestantRecord(ctx, "1", true)
	store.SetGlobalRecord(ctx, strPtr("1"), true)

	store.ClearContestantRecords(ctx)
	store.ClearGlobalRecord(ctx)

	_, ok := store.ContestantRecord(ctx, "1")
	assert.False(t, ok)
	_, ok = store.GlobalRecord(ctx)
	assert.False(t, ok)
}

func TestVoteStore_MalformedGlobalRecord(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "{not json"},
		{"array", `[1,2]`},
		{"number", `42`},
		{"null", `null`},
		{"missing hasVoted", `{"contestantId":"1","timestamp":1}`},
		{"wrong hasVoted type", `{"hasVoted":"yes","contestantId":"1"}`},
		{"wrong contestantId type", `{"hasVoted":true,"contestantId":7}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := memory.NewStore()
			obs := &recordingObserver{}
			store := NewVoteStore(kv, clockwork.NewFakeClock(), "", obs)
			ctx := context.Background()
			require.NoError(t, kv.Set(ctx, globalRecordKey, tt.raw))

			assert.NotPanics(t, func() {
				_, ok := store.GlobalRecord(ctx)
				assert.False(t, ok)
			})
			assert.Equal(t, []string{"read_global"}, obs.getStoreFailures())
		})
	}
}

func TestVoteStore_MalformedContestantRecords(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "]]"},
		{"object instead of array", `{"contestantId":"1","hasVoted":true}`},
		{"element not an object", `[1]`},
		{"missing contestantId", `[{"hasVoted":true,"timestamp":1}]`},
		{"missing hasVoted", `[{"contestantId":"1","timestamp":1}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := memory.NewStore()
			store := NewVoteStore(kv, clockwork.NewFakeClock(), "", nil)
			ctx := context.Background()
			require.NoError(t, kv.Set(ctx, contestantRecordsKey, tt.raw))

			_, ok := store.ContestantRecord(ctx, "1")
			assert.False(t, ok)
		})
	}
}

func TestVoteStore_SetContestantRecordOverMalformedIsNoop(t *testing.T) {
	kv := memory.NewStore()
	store := NewVoteStore(kv, clockwork.NewFakeClock(), "", nil)
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, contestantRecordsKey, "corrupted"))

	store.SetContestantRecord(ctx, "1", true)

	raw, _, err := kv.Get(ctx, contestantRecordsKey)
	require.NoError(t, err)
	assert.Equal(t, "corrupted", raw)
}

func TestVoteStore_BrokenStorageDegradesToNotVoted(t *testing.T) {
	kv := &failingKV{getErr: errStorage, setErr: errStorage, deleteErr: errStorage}
	obs := &recordingObserver{}
	store := NewVoteStore(kv, clockwork.NewFakeClock(), "p1", obs)
	ctx := context.Background()

	assert.NotPanics(t, func() {
		store.SetGlobalRecord(ctx, strPtr("1"), true)
		store.SetContestantRecord(ctx, "1", true)
		store.ClearGlobalRecord(ctx)
		store.ClearContestantRecords(ctx)
	})

	_, ok := store.GlobalRecord(ctx)
	assert.False(t, ok)
	_, ok = store.ContestantRecord(ctx, "1")
	assert.False(t, ok)

	assert.Equal(t, []string{
		"write_global", "write_contestant", "clear_global", "clear_contestant", "read_global", "read_contestant",
	}, obs.getStoreFailures())
}

func TestVoteStore_WriteFailureOnly(t *testing.T) {
	kv := &failingKV{setErr: errStorage}
	obs := &recordingObserver{}
	store := NewVoteStore(kv, clockwork.NewFakeClock(), "", obs)

	store.SetGlobalRecord(context.Background(), strPtr("1"), true)

	assert.Equal(t, []string{"write_global"}, obs.getStoreFailures())
}

func TestVoteStore_FailuresLogAtErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(previous) })

	store := NewVoteStore(&failingKV{setErr: errStorage}, clockwork.NewFakeClock(), "p1", nil)
	store.SetGlobalRecord(context.Background(), strPtr("1"), true)

	out := buf.String()
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "op=write_global")
	assert.Contains(t, out, "namespace=p1")
	assert.NotContains(t, out, "level=WARN")
}

func TestVoteStore_NamespacesAreIsolated(t *testing.T) {
	kv := memory.NewStore()
	clock := clockwork.NewFakeClock()
	alice := NewVoteStore(kv, clock, "alice", nil)
	bob := NewVoteStore(kv, clock, "bob", nil)
	ctx := context.Background()

	alice.SetGlobalRecord(ctx, strPtr("1"), true)

	_, ok := bob.GlobalRecord(ctx)
	assert.False(t, ok)

	raw, ok, err := kv.Get(ctx, "voter:alice:"+globalRecordKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, raw, `"contestantId":"1"`)

	_, ok, err = kv.Get(ctx, globalRecordKey)
	require.NoError(t, err)
	assert.False(t, ok)
}
