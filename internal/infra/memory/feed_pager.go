package memory

import (
	"context"

	"campus-gateway/internal/domain"
)

// StaticFeedPager serves pages out of fixed slices, mimicking the
// upstream pagination envelope. It backs demo mode and the feed tests.
type StaticFeedPager struct {
	feeds map[string][]domain.FeedItem
}

func NewStaticFeedPager(feeds map[string][]domain.FeedItem) *StaticFeedPager {
	return &StaticFeedPager{feeds: feeds}
}

func (p *StaticFeedPager) FetchFeedPage(_ context.Context, kind string, page, perPage int) (domain.FeedPage, error) {
	items := p.feeds[kind]
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 1
	}
	lastPage := (len(items) + perPage - 1) / perPage
	if lastPage < 1 {
		lastPage = 1
	}

	start := (page - 1) * perPage
	if start > len(items) {
		start = len(items)
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}

	pageItems := make([]domain.FeedItem, end-start)
	copy(pageItems, items[start:end])
	return domain.FeedPage{
		Items:       pageItems,
		CurrentPage: page,
		LastPage:    lastPage,
		PerPage:     perPage,
		Total:       len(items),
	}, nil
}
