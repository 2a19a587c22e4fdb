package memory

import (
	"context"
	"testing"

	"campus-gateway/internal/domain"
)

func TestStaticFeedPagerPaginates(t *testing.T) {
	pager := NewStaticFeedPager(map[string][]domain.FeedItem{
		"posts": {
			{ID: "1"}, {ID: "2"}, {ID: "3"}, {ID: "4"}, {ID: "5"},
		},
	})

	first, err := pager.FetchFeedPage(context.Background(), "posts", 1, 2)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if first.CurrentPage != 1 || first.LastPage != 3 || first.Total != 5 {
		t.Fatalf("bad envelope %+v", first)
	}
	if len(first.Items) != 2 || first.Items[0].ID != "1" {
		t.Fatalf("bad items %+v", first.Items)
	}

	last, err := pager.FetchFeedPage(context.Background(), "posts", 3, 2)
	if err != nil {
		t.Fatalf("page 3: %v", err)
	}
	if len(last.Items) != 1 || last.Items[0].ID != "5" {
		t.Fatalf("bad last page %+v", last.Items)
	}

	past, err := pager.FetchFeedPage(context.Background(), "posts", 9, 2)
	if err != nil {
		t.Fatalf("past end: %v", err)
	}
	if len(past.Items) != 0 {
		t.Fatalf("expected empty page past the end, got %+v", past.Items)
	}
}
