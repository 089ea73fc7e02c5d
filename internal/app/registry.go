package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/talentvote/internal/domain"
)

type voterKey struct {
	profile    string
	contestant string
}

type registryEntry struct {
	voter    *Voter
	lastUsed time.Time
}

// VoterRegistry keeps one Voter per (profile, contestant) so that in-flight submissions and
// visible errors survive across requests. All voters of a profile share the profile's
// namespace in the key-value store.
type VoterRegistry struct {
	kv            domain.KeyValueStore
	gateway       domain.Gateway
	clock         clockwork.Clock
	storeObserver StoreObserver
	voteObserver  VoteObserver

	mu      sync.Mutex
	entries map[voterKey]*registryEntry
}

func NewVoterRegistry(kv domain.KeyValueStore, gateway domain.Gateway, clock clockwork.Clock, storeObserver StoreObserver, voteObserver VoteObserver) *VoterRegistry {
	return &VoterRegistry{
		kv:            kv,
		gateway:       gateway,
		clock:         clock,
		storeObserver: storeObserver,
		voteObserver:  voteObserver,
		entries:       make(map[voterKey]*registryEntry),
	}
}

// Store returns the vote store of a profile.
func (r *VoterRegistry) Store(profile string) *VoteStore {
	return NewVoteStore(r.kv, r.clock, profile, r.storeObserver)
}

// Voter returns the voter for (profile, contestantID), creating it on first use. The returned
// voter has re-read the global record, so a vote cast through another voter is reflected.
func (r *VoterRegistry) Voter(ctx context.Context, profile, contestantID string) *Voter {
	key := voterKey{profile: profile, contestant: contestantID}

	r.mu.Lock()
	entry, ok := r.entries[key]
	if !ok {
		entry = &registryEntry{
			voter: NewVoter(contestantID, r.Store(profile), r.gateway, r.clock, r.voteObserver),
		}
		r.entries[key] = entry
	}
	entry.lastUsed = r.clock.Now()
	r.mu.Unlock()

	entry.voter.Activate(ctx)
	return entry.voter
}

// Peek returns the state a voter for (profile, contestantID) would show. A registered voter
// answers for itself; otherwise the state is derived from the global record and nothing is
// registered, so read-only requests do not grow the registry.
func (r *VoterRegistry) Peek(ctx context.Context, profile, contestantID string) domain.VoterState {
	key := voterKey{profile: profile, contestant: contestantID}

	r.mu.Lock()
	entry, ok := r.entries[key]
	if ok {
		entry.lastUsed = r.clock.Now()
	}
	r.mu.Unlock()

	voter := NewVoter(contestantID, r.Store(profile), r.gateway, r.clock, r.voteObserver)
	if ok {
		voter = entry.voter
	}
	voter.Activate(ctx)
	return voter.State()
}

// ResetProfile clears the single-vote lock of a profile and refreshes its voters.
func (r *VoterRegistry) ResetProfile(ctx context.Context, profile string) {
	voters := r.profileVoters(profile)
	if len(voters) == 0 {
		r.Store(profile).SetGlobalRecord(ctx, nil, false)
		return
	}

	for _, v := range voters {
		v.ResetVote(ctx)
	}
	for _, v := range voters {
		v.Activate(ctx)
	}
}

// ClearProfile removes every stored record of a profile.
func (r *VoterRegistry) ClearProfile(ctx context.Context, profile string) {
	store := r.Store(profile)
	store.ClearContestantRecords(ctx)
	store.ClearGlobalRecord(ctx)

	for _, v := range r.profileVoters(profile) {
		v.Activate(ctx)
	}
}

// StartEvictionTimer periodically drops voters unused for longer than idleTTL.
// Returns a stop function that should be deferred.
func (r *VoterRegistry) StartEvictionTimer(interval, idleTTL time.Duration) func() {
	ticker := r.clock.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.Chan():
				if evicted := r.Evict(idleTTL); evicted > 0 {
					slog.Debug("Evicted idle voters", "count", evicted, "remaining", r.Len())
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() {
		close(done)
	}
}

// Evict drops voters idle for longer than idleTTL. Voters with a submission in flight are kept.
func (r *VoterRegistry) Evict(idleTTL time.Duration) int {
	now := r.clock.Now()

	r.mu.Lock()
	var evicted []*Voter
	for key, entry := range r.entries {
		if now.Sub(entry.lastUsed) <= idleTTL || entry.voter.State().IsSubmitting {
			continue
		}
		delete(r.entries, key)
		evicted = append(evicted, entry.voter)
	}
	r.mu.Unlock()

	for _, v := range evicted {
		v.Deactivate()
	}
	return len(evicted)
}

func (r *VoterRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *VoterRegistry) profileVoters(profile string) []*Voter {
	r.mu.Lock()
	defer r.mu.Unlock()

	var voters []*Voter
	for key, entry := range r.entries {
		if key.profile == profile {
			voters = append(voters, entry.voter)
		}
	}
	return voters
}
