package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/talentvote/internal/domain"
)

const (
	contestantRecordsKey = "talent_vote_state"
	globalRecordKey      = "talent_global_vote_state"
)

var errSchemaMismatch = errors.New("stored record does not match schema")

// storedContestantRecord and storedGlobalRecord use pointers so that missing fields can be
// told apart from zero values when validating stored content.
type storedContestantRecord struct {
	ContestantID *string `json:"contestantId"`
	HasVoted     *bool   `json:"hasVoted"`
	Timestamp    int64   `json:"timestamp"`
}

type storedGlobalRecord struct {
	HasVoted     *bool   `json:"hasVoted"`
	ContestantID *string `json:"contestantId"`
	Timestamp    int64   `json:"timestamp"`
}

// VoteStore persists the per-contestant and global vote records of one voter profile.
//
// No operation returns an error: read failures, corrupted content and write failures are
// logged, reported to the StoreObserver and otherwise treated as "not voted".
type VoteStore struct {
	kv        domain.KeyValueStore
	clock     clockwork.Clock
	namespace string
	observer  StoreObserver
}

// NewVoteStore creates a store for the given profile namespace. The empty namespace uses the
// bare keys.
func NewVoteStore(kv domain.KeyValueStore, clock clockwork.Clock, namespace string, observer StoreObserver) *VoteStore {
	if observer == nil {
		observer = nopObserver{}
	}
	return &VoteStore{
		kv:        kv,
		clock:     clock,
		namespace: namespace,
		observer:  observer,
	}
}

func (s *VoteStore) key(base string) string {
	if s.namespace == "" {
		return base
	}
	return "voter:" + s.namespace + ":" + base
}

func (s *VoteStore) ContestantRecord(ctx context.Context, contestantID string) (domain.ContestantVoteRecord, bool) {
	records, err := s.readContestantRecords(ctx)
	if err != nil {
		s.fail(ctx, "read_contestant", err)
		return domain.ContestantVoteRecord{}, false
	}
	for _, r := range records {
		if r.ContestantID == contestantID {
			return r, true
		}
	}
	return domain.ContestantVoteRecord{}, false
}

// SetContestantRecord upserts the record for contestantID, keeping the collection order.
func (s *VoteStore) SetContestantRecord(ctx context.Context, contestantID string, hasVoted bool) {
	records, err := s.readContestantRecords(ctx)
	if err != nil {
		s.fail(ctx, "write_contestant", err)
		return
	}

	record := domain.ContestantVoteRecord{
		ContestantID: contestantID,
		HasVoted:     hasVoted,
		Timestamp:    s.clock.Now().UnixMilli(),
	}

	replaced := false
	for i := range records {
		if records[i].ContestantID == contestantID {
			records[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, record)
	}

	if err := s.write(ctx, contestantRecordsKey, records); err != nil {
		s.fail(ctx, "write_contestant", err)
	}
}

func (s *VoteStore) ClearContestantRecords(ctx context.Context) {
	if err := s.kv.Delete(ctx, s.key(contestantRecordsKey)); err != nil {
		s.fail(ctx, "clear_contestant", err)
	}
}

func (s *VoteStore) GlobalRecord(ctx context.Context) (domain.GlobalVoteRecord, bool) {
	raw, ok, err := s.kv.Get(ctx, s.key(globalRecordKey))
	if err != nil {
		s.fail(ctx, "read_global", err)
		return domain.GlobalVoteRecord{}, false
	}
	if !ok || raw == "" {
		return domain.GlobalVoteRecord{}, false
	}

	var stored storedGlobalRecord
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		s.fail(ctx, "read_global", err)
		return domain.GlobalVoteRecord{}, false
	}
	if stored.HasVoted == nil {
		s.fail(ctx, "read_global", errSchemaMismatch)
		return domain.GlobalVoteRecord{}, false
	}

	return domain.GlobalVoteRecord{
		HasVoted:     *stored.HasVoted,
		ContestantID: stored.ContestantID,
		Timestamp:    stored.Timestamp,
	}, true
}

// SetGlobalRecord replaces the global record unconditionally. A nil contestantID is stored as null.
func (s *VoteStore) SetGlobalRecord(ctx context.Context, contestantID *string, hasVoted bool) {
	record := domain.GlobalVoteRecord{
		HasVoted:     hasVoted,
		ContestantID: contestantID,
		Timestamp:    s.clock.Now().UnixMilli(),
	}
	if err := s.write(ctx, globalRecordKey, record); err != nil {
		s.fail(ctx, "write_global", err)
	}
}

func (s *VoteStore) ClearGlobalRecord(ctx context.Context) {
	if err := s.kv.Delete(ctx, s.key(globalRecordKey)); err != nil {
		s.fail(ctx, "clear_global", err)
	}
}

func (s *VoteStore) readContestantRecords(ctx context.Context) ([]domain.ContestantVoteRecord, error) {
	raw, ok, err := s.kv.Get(ctx, s.key(contestantRecordsKey))
	if err != nil {
		return nil, fmt.Errorf("failed to read contestant records: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}

	var stored []storedContestantRecord
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, fmt.Errorf("failed to decode contestant records: %w", err)
	}

	records := make([]domain.ContestantVoteRecord, 0, len(stored))
	for _, r := range stored {
		if r.ContestantID == nil || r.HasVoted == nil {
			return nil, errSchemaMismatch
		}
		records = append(records, domain.ContestantVoteRecord{
			ContestantID: *r.ContestantID,
			HasVoted:     *r.HasVoted,
			Timestamp:    r.Timestamp,
		})
	}
	return records, nil
}

func (s *VoteStore) write(ctx context.Context, base string, v any) error {
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", base, err)
	}
	if err := s.kv.Set(ctx, s.key(base), string(encoded)); err != nil {
		return fmt.Errorf("failed to write %s: %w", base, err)
	}
	return nil
}

func (s *VoteStore) fail(ctx context.Context, op string, err error) {
	slog.ErrorContext(ctx, "Vote store operation failed", "op", op, "namespace", s.namespace, "error", err)
	s.observer.ObserveStoreFailure(op)
}
