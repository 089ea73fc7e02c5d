package app

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/pscheid92/talentvote/internal/domain"
	"github.com/pscheid92/talentvote/internal/platform/correlation"
)

// DefaultPollInterval is the feed refresh delay used when none is configured.
const DefaultPollInterval = 5 * time.Second

const (
	MsgFetchContestantsFailed = "Failed to fetch contestants"
	MsgFetchWindowFailed      = "Failed to fetch voting window"
)

// Feed polls the gateway for the contestant list and the voting window.
//
// Both reads of a cycle run concurrently and the cycle waits for both. When both envelopes
// fail only the voting window's message survives in Error. Results of a cycle that was
// still in flight when the feed was deactivated are discarded.
type Feed struct {
	gateway  domain.Gateway
	clock    clockwork.Clock
	observer FeedObserver

	mu        sync.Mutex
	state     domain.FeedState
	interval  time.Duration
	epoch     uint64
	listeners []func(domain.FeedState)

	active     bool
	runCtx     context.Context
	runCancel  context.CancelFunc
	loopCancel context.CancelFunc
	loopDone   chan struct{}
}

func NewFeed(gateway domain.Gateway, clock clockwork.Clock, interval time.Duration, observer FeedObserver) *Feed {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Feed{
		gateway:  gateway,
		clock:    clock,
		observer: observer,
		interval: interval,
		state:    domain.FeedState{IsLoading: true},
	}
}

// Subscribe registers fn to receive every state produced by a fetch cycle.
func (f *Feed) Subscribe(fn func(domain.FeedState)) {
	f.mu.Lock()
	f.listeners = append(f.listeners, fn)
	f.mu.Unlock()
}

func (f *Feed) State() domain.FeedState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

// Activate fetches once and then keeps polling until Deactivate or ctx is cancelled.
func (f *Feed) Activate(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.active {
		return
	}
	f.active = true
	f.runCtx, f.runCancel = context.WithCancel(ctx)
	f.startLoopLocked(true)
}

// Deactivate stops polling. A fetch still in flight is cancelled and its result dropped.
func (f *Feed) Deactivate() {
	f.mu.Lock()
	if !f.active {
		f.mu.Unlock()
		return
	}
	f.active = false
	f.epoch++
	f.runCancel()
	done := f.stopLoopLocked()
	f.mu.Unlock()

	<-done
}

// SetInterval replaces the polling delay. The running timer is torn down and re-established;
// a delay <= 0 disables polling.
func (f *Feed) SetInterval(interval time.Duration) {
	f.mu.Lock()
	if f.interval == interval {
		f.mu.Unlock()
		return
	}
	f.interval = interval
	if !f.active {
		f.mu.Unlock()
		return
	}
	done := f.stopLoopLocked()
	f.mu.Unlock()

	<-done

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active && f.loopDone == nil {
		f.startLoopLocked(false)
	}
}

// Tick runs one fetch cycle.
func (f *Feed) Tick(ctx context.Context) {
	f.fetch(ctx, false)
}

// Refetch marks the feed as loading and runs one fetch cycle.
func (f *Feed) Refetch(ctx context.Context) domain.FeedState {
	f.fetch(ctx, true)
	return f.State()
}

func (f *Feed) startLoopLocked(fetchFirst bool) {
	loopCtx, cancel := context.WithCancel(f.runCtx)
	done := make(chan struct{})
	f.loopCancel = cancel
	f.loopDone = done

	go f.loop(loopCtx, f.runCtx, f.interval, fetchFirst, done)
}

// stopLoopLocked cancels the timer loop and returns a channel closed once it has exited.
func (f *Feed) stopLoopLocked() <-chan struct{} {
	if f.loopDone == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	done := f.loopDone
	f.loopCancel()
	f.loopCancel = nil
	f.loopDone = nil
	return done
}

// loop waits interval after each completed cycle (fixed delay). Fetches use runCtx so that
// changing the interval does not cancel a cycle in flight.
func (f *Feed) loop(loopCtx, runCtx context.Context, interval time.Duration, fetchFirst bool, done chan struct{}) {
	defer close(done)

	if fetchFirst {
		f.fetch(runCtx, false)
	}
	if interval <= 0 {
		return
	}

	timer := f.clock.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-loopCtx.Done():
			return
		case <-timer.Chan():
			f.fetch(runCtx, false)
			timer.Reset(interval)
		}
	}
}

// fetch runs one cycle. markLoading shows IsLoading while the reads are in flight; a cycle
// whose result is discarded puts the flag back and leaves the rest of the state untouched.
func (f *Feed) fetch(ctx context.Context, markLoading bool) {
	ctx = correlation.WithID(ctx, correlation.NewID())
	start := f.clock.Now()

	f.mu.Lock()
	epoch := f.epoch
	wasLoading := f.state.IsLoading
	if markLoading {
		f.state.IsLoading = true
	}
	f.mu.Unlock()

	var (
		contestants domain.Envelope[[]domain.Contestant]
		window      domain.Envelope[domain.VotingWindow]
		g           errgroup.Group
	)
	g.Go(func() error {
		resp, err := f.gateway.FetchContestants(ctx)
		contestants = resp
		return err
	})
	g.Go(func() error {
		resp, err := f.gateway.GetVotingWindow(ctx)
		window = resp
		return err
	})
	err := g.Wait()

	f.mu.Lock()
	if epoch != f.epoch {
		if markLoading {
			f.state.IsLoading = wasLoading
		}
		f.mu.Unlock()
		slog.DebugContext(ctx, "Feed: discarding result of deactivated feed")
		return
	}

	f.state.Error = ""
	result := PollOK
	switch {
	case err != nil:
		result = PollError
		f.state.Error = messageOr(err.Error(), MsgUnexpected)
	default:
		if contestants.Success {
			f.state.Contestants = contestants.Data
		} else {
			result = PollPartial
			f.state.Error = messageOr(contestants.Message, MsgFetchContestantsFailed)
		}
		if window.Success {
			w := window.Data
			f.state.VotingWindow = &w
		} else {
			result = PollPartial
			f.state.Error = messageOr(window.Message, MsgFetchWindowFailed)
		}
	}
	f.state.IsLoading = false
	snapshot := f.snapshotLocked()
	listeners := slices.Clone(f.listeners)
	f.mu.Unlock()

	duration := f.clock.Since(start)
	f.observer.ObservePoll(result, duration)
	if result == PollOK {
		slog.DebugContext(ctx, "Feed: refreshed", "contestants", len(snapshot.Contestants), "window_open", snapshot.WindowOpen(), "duration", duration)
	} else {
		slog.WarnContext(ctx, "Feed: refresh failed", "result", result, "error", snapshot.Error)
	}

	for _, fn := range listeners {
		fn(snapshot)
	}
}

func (f *Feed) snapshotLocked() domain.FeedState {
	s := f.state
	s.Contestants = slices.Clone(f.state.Contestants)
	if s.Contestants == nil {
		s.Contestants = []domain.Contestant{}
	}
	if f.state.VotingWindow != nil {
		w := *f.state.VotingWindow
		s.VotingWindow = &w
	}
	return s
}
