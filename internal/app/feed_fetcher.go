package app

import (
	"context"
	"fmt"
	"sync"

	"campus-gateway/internal/domain"
)

// FeedPager fetches one page of a feed kind from the platform API.
type FeedPager interface {
	FetchFeedPage(ctx context.Context, kind string, page, perPage int) (domain.FeedPage, error)
}

// FeedFetcher accumulates paginated feeds (posts, events, topic posts),
// filtering out items already seen so server-side page overlap never
// produces duplicates. One fetch may be outstanding per feed at a time;
// a request arriving while one is in flight is dropped, not queued.
type FeedFetcher struct {
	pager   FeedPager
	perPage int

	mu    sync.Mutex
	feeds map[string]*feedState
}

type feedState struct {
	items    []domain.FeedItem
	seen     map[string]struct{}
	page     int
	lastPage int
	loading  bool
	loaded   bool
}

// FeedSnapshot is the accumulated view handed to transports.
type FeedSnapshot struct {
	Kind    string            `json:"kind"`
	Items   []domain.FeedItem `json:"items"`
	HasMore bool              `json:"hasMore"`
}

func NewFeedFetcher(pager FeedPager, perPage int) *FeedFetcher {
	return &FeedFetcher{
		pager:   pager,
		perPage: perPage,
		feeds:   make(map[string]*feedState),
	}
}

// Snapshot returns the current accumulated list without fetching.
func (f *FeedFetcher) Snapshot(kind string) FeedSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stateLocked(kind).snapshot(kind)
}

// LoadMore fetches the next page and appends the unseen items in server
// order. A failed fetch leaves the cursor, hasMore and the accumulated
// list untouched so the caller can simply retry.
func (f *FeedFetcher) LoadMore(ctx context.Context, kind string) (FeedSnapshot, error) {
	f.mu.Lock()
	state := f.stateLocked(kind)
	if state.loading {
		f.mu.Unlock()
		return FeedSnapshot{}, domain.ErrFetchInFlight
	}
	if state.loaded && state.page >= state.lastPage {
		snapshot := state.snapshot(kind)
		f.mu.Unlock()
		return snapshot, nil
	}
	state.loading = true
	next := state.page + 1
	f.mu.Unlock()

	page, err := f.pager.FetchFeedPage(ctx, kind, next, f.perPage)

	f.mu.Lock()
	defer f.mu.Unlock()
	state.loading = false
	if err != nil {
		return FeedSnapshot{}, fmt.Errorf("load %s page %d: %w", kind, next, err)
	}
	state.apply(page)
	return state.snapshot(kind), nil
}

// Refresh discards the accumulated list and the seen-set, then fetches
// page 1. Clearing first is what lets legitimately re-fetched items back
// in; the duplicate filter only spans a single accumulation run.
func (f *FeedFetcher) Refresh(ctx context.Context, kind string) (FeedSnapshot, error) {
	f.mu.Lock()
	state := f.stateLocked(kind)
	if state.loading {
		f.mu.Unlock()
		return FeedSnapshot{}, domain.ErrFetchInFlight
	}
	state.reset()
	state.loading = true
	f.mu.Unlock()

	page, err := f.pager.FetchFeedPage(ctx, kind, 1, f.perPage)

	f.mu.Lock()
	defer f.mu.Unlock()
	state.loading = false
	if err != nil {
		return FeedSnapshot{}, fmt.Errorf("refresh %s: %w", kind, err)
	}
	state.apply(page)
	return state.snapshot(kind), nil
}

func (f *FeedFetcher) stateLocked(kind string) *feedState {
	state, ok := f.feeds[kind]
	if !ok {
		state = &feedState{seen: make(map[string]struct{})}
		f.feeds[kind] = state
	}
	return state
}

func (s *feedState) apply(page domain.FeedPage) {
	for _, item := range page.Items {
		if _, dup := s.seen[item.ID]; dup {
			continue
		}
		s.seen[item.ID] = struct{}{}
		s.items = append(s.items, item)
	}
	s.page = page.CurrentPage
	s.lastPage = page.LastPage
	s.loaded = true
}

func (s *feedState) reset() {
	s.items = nil
	s.seen = make(map[string]struct{})
	s.page = 0
	s.lastPage = 0
	s.loaded = false
}

func (s *feedState) snapshot(kind string) FeedSnapshot {
	items := make([]domain.FeedItem, len(s.items))
	copy(items, s.items)
	return FeedSnapshot{
		Kind:    kind,
		Items:   items,
		HasMore: !s.loaded || s.page < s.lastPage,
	}
}
