package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"campus-gateway/internal/app"
	"campus-gateway/internal/domain"
	"campus-gateway/internal/infra/memory"
)

func newTestServer(t *testing.T, pager app.FeedPager) (*httptest.Server, *app.ProgressTracker, *app.QuizService) {
	t.Helper()
	tracker := app.NewProgressTracker(memory.NewProgressStore())
	quizRepo := memory.NewQuizRepository(memory.NewStaticQuizLoader(sampleQuizzes()), time.Minute)
	service := app.NewQuizService(quizRepo, memory.NewResultLog(), memory.NewAnswerCache(), tracker, time.Second)
	feeds := app.NewFeedFetcher(pager, 2)

	mux := http.NewServeMux()
	NewAPI(tracker, feeds, service).Register(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, tracker, service
}

func staticPager() app.FeedPager {
	return memory.NewStaticFeedPager(map[string][]domain.FeedItem{
		"posts": {
			{ID: "p1", Kind: "posts"},
			{ID: "p2", Kind: "posts"},
			{ID: "p3", Kind: "posts"},
		},
	})
}

func TestFeedEndpoints(t *testing.T) {
	server, _, _ := newTestServer(t, staticPager())

	resp, err := http.Post(server.URL+"/api/feeds/posts/more", "application/json", nil)
	if err != nil {
		t.Fatalf("load more: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var snapshot struct {
		Kind    string `json:"kind"`
		Items   []struct {
			ID string `json:"id"`
		} `json:"items"`
		HasMore bool `json:"hasMore"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snapshot.Kind != "posts" || len(snapshot.Items) != 2 || !snapshot.HasMore {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}

	getResp, err := http.Get(server.URL + "/api/feeds/posts")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 snapshot, got %d", getResp.StatusCode)
	}

	refreshResp, err := http.Post(server.URL+"/api/feeds/posts/refresh", "application/json", nil)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	defer refreshResp.Body.Close()
	if refreshResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 refresh, got %d", refreshResp.StatusCode)
	}
}

type failingPager struct{}

func (failingPager) FetchFeedPage(context.Context, string, int, int) (domain.FeedPage, error) {
	return domain.FeedPage{}, context.DeadlineExceeded
}

func TestFeedFailureMapsToBadGateway(t *testing.T) {
	server, _, _ := newTestServer(t, failingPager{})

	resp, err := http.Post(server.URL+"/api/feeds/posts/more", "application/json", nil)
	if err != nil {
		t.Fatalf("load more: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}

	var body struct {
		Error     string `json:"error"`
		Retryable bool   `json:"retryable"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Retryable || body.Error == "" {
		t.Fatalf("expected retryable error body, got %+v", body)
	}
}

type blockingPager struct {
	started chan struct{}
	release chan struct{}
}

func (p *blockingPager) FetchFeedPage(context.Context, string, int, int) (domain.FeedPage, error) {
	close(p.started)
	<-p.release
	return domain.FeedPage{CurrentPage: 1, LastPage: 1}, nil
}

func TestOverlappingFeedFetchConflicts(t *testing.T) {
	pager := &blockingPager{started: make(chan struct{}), release: make(chan struct{})}
	server, _, _ := newTestServer(t, pager)

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		resp, err := http.Post(server.URL+"/api/feeds/posts/more", "application/json", nil)
		if err == nil {
			resp.Body.Close()
		}
	}()

	<-pager.started
	resp, err := http.Post(server.URL+"/api/feeds/posts/more", "application/json", nil)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 while a fetch is in flight, got %d", resp.StatusCode)
	}

	close(pager.release)
	<-firstDone
}

func TestProgressEndpoints(t *testing.T) {
	server, _, _ := newTestServer(t, staticPager())

	mark := func(path string, body map[string]string) *http.Response {
		t.Helper()
		raw, _ := json.Marshal(body)
		resp, err := http.Post(server.URL+path, "application/json", bytes.NewReader(raw))
		if err != nil {
			t.Fatalf("post %s: %v", path, err)
		}
		return resp
	}

	resp := mark("/api/progress/lesson", map[string]string{
		"userId": "u1", "courseId": "course-1", "sectionId": "s1", "lessonId": "l1",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 for lesson mark, got %d", resp.StatusCode)
	}

	resp = mark("/api/progress/section", map[string]string{
		"userId": "u1", "courseId": "course-1", "sectionId": "s1",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 for section mark, got %d", resp.StatusCode)
	}

	getResp, err := http.Get(server.URL + "/api/progress?userId=u1&courseId=course-1")
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}
	defer getResp.Body.Close()
	var summary struct {
		CourseID string `json:"courseId"`
		Percent  int    `json:"percent"`
		Sections []struct {
			SectionID string `json:"sectionId"`
			Completed bool   `json:"completed"`
			Percent   int    `json:"percent"`
		} `json:"sections"`
	}
	if err := json.NewDecoder(getResp.Body).Decode(&summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Percent != 100 || len(summary.Sections) != 1 || !summary.Sections[0].Completed {
		t.Fatalf("unexpected summary %+v", summary)
	}

	req, _ := http.NewRequest(http.MethodDelete, server.URL+"/api/progress?userId=u1&courseId=course-1", nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 for reset, got %d", delResp.StatusCode)
	}

	resp = mark("/api/progress/lesson", map[string]string{"userId": "u1"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing identifiers, got %d", resp.StatusCode)
	}
}

func TestQuizReviewEndpoint(t *testing.T) {
	server, _, service := newTestServer(t, staticPager())

	runner, err := service.Start(context.Background(), "u1", "course-1")
	if err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	if err := runner.Answer("q1", "o2"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if _, err := runner.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	resp, err := http.Get(server.URL + "/api/quiz/review?userId=u1&courseId=course-1")
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		CourseID string            `json:"courseId"`
		Answers  map[string]string `json:"answers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Answers["q1"] != "o2" {
		t.Fatalf("expected cached answers, got %+v", body)
	}
}
