package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"campus-gateway/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Client talks to the remote platform REST API. All gateway reads and the
// quiz submission write go through it; it owns no state beyond the
// connection settings.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// DecodeError marks a response body that did not match the expected
// contract. Callers can treat it differently from transport failures.
type DecodeError struct {
	Endpoint string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Endpoint, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Endpoint string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Endpoint, e.Code)
}

// feedEnvelope is the server's pagination envelope.
type feedEnvelope struct {
	CurrentPage int               `json:"current_page"`
	Data        []feedItemPayload `json:"data"`
	LastPage    int               `json:"last_page"`
	PerPage     int               `json:"per_page"`
	Total       int               `json:"total"`
}

type feedItemPayload struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Author    string `json:"author"`
	CreatedAt string `json:"created_at"`
}

type quizSettingsPayload struct {
	ID        string `json:"id"`
	CourseID  string `json:"course_id"`
	SectionID string `json:"section_id"`
	Passmark  int    `json:"passmark"`
	Duration  int    `json:"duration"` // seconds
}

type questionPayload struct {
	ID            string          `json:"id"`
	Question      string          `json:"question"`
	Options       []optionPayload `json:"options"`
	CorrectAnswer *struct {
		AnswerID string `json:"answer_id"`
	} `json:"correct_answer"`
}

type optionPayload struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type submissionPayload struct {
	CourseID  string `json:"course_id"`
	UserID    string `json:"user_id"`
	Score     int    `json:"score"`
	Correct   int    `json:"correct"`
	Incorrect int    `json:"incorrect"`
	Timeout   bool   `json:"timeout"`
}

// FetchFeedPage retrieves one page of a feed kind (posts, events, topics).
func (c *Client) FetchFeedPage(ctx context.Context, kind string, page, perPage int) (domain.FeedPage, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("per_page", strconv.Itoa(perPage))

	var envelope feedEnvelope
	endpoint := "/api/" + kind
	if err := c.get(ctx, endpoint, query, &envelope); err != nil {
		return domain.FeedPage{}, err
	}

	items := make([]domain.FeedItem, 0, len(envelope.Data))
	for _, payload := range envelope.Data {
		items = append(items, domain.FeedItem{
			ID:        payload.ID,
			Kind:      kind,
			Title:     payload.Title,
			Body:      payload.Body,
			Author:    payload.Author,
			CreatedAt: parseTimestamp(payload.CreatedAt),
		})
	}
	return domain.FeedPage{
		Items:       items,
		CurrentPage: envelope.CurrentPage,
		LastPage:    envelope.LastPage,
		PerPage:     envelope.PerPage,
		Total:       envelope.Total,
	}, nil
}

// FetchQuiz loads settings and questions for a course quiz. The two
// endpoints are independent, so they are fetched concurrently.
func (c *Client) FetchQuiz(ctx context.Context, courseID string) (domain.Quiz, error) {
	var (
		settings  quizSettingsPayload
		questions []questionPayload
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.get(ctx, "/api/courses/"+courseID+"/quiz/settings", nil, &settings)
	})
	g.Go(func() error {
		return c.get(ctx, "/api/courses/"+courseID+"/quiz/questions", nil, &questions)
	})
	if err := g.Wait(); err != nil {
		return domain.Quiz{}, err
	}

	quiz := domain.Quiz{
		Settings: domain.QuizSettings{
			QuizID:    settings.ID,
			CourseID:  settings.CourseID,
			SectionID: settings.SectionID,
			Passmark:  settings.Passmark,
			Duration:  time.Duration(settings.Duration) * time.Second,
		},
		Questions: make([]domain.Question, 0, len(questions)),
	}
	for _, payload := range questions {
		question := domain.Question{
			ID:      payload.ID,
			Prompt:  payload.Question,
			Options: make([]domain.Option, 0, len(payload.Options)),
		}
		if payload.CorrectAnswer != nil {
			question.CorrectOptionID = payload.CorrectAnswer.AnswerID
		}
		for _, option := range payload.Options {
			question.Options = append(question.Options, domain.Option{ID: option.ID, Text: option.Text})
		}
		quiz.Questions = append(quiz.Questions, question)
	}
	return quiz, nil
}

// LoadQuiz implements the quiz content loader interface used by the
// caching repositories.
func (c *Client) LoadQuiz(ctx context.Context, courseID string) (domain.Quiz, error) {
	return c.FetchQuiz(ctx, courseID)
}

// SubmitResult persists a scored quiz outcome upstream.
func (c *Client) SubmitResult(ctx context.Context, userID string, settings domain.QuizSettings, result domain.QuizResult) error {
	body := submissionPayload{
		CourseID:  settings.CourseID,
		UserID:    userID,
		Score:     result.Score,
		Correct:   result.Correct,
		Incorrect: result.Incorrect,
		Timeout:   result.Timeout,
	}
	return c.post(ctx, "/api/quiz/submissions", body)
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	target := c.baseURL + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Endpoint: endpoint, Code: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &DecodeError{Endpoint: endpoint, Err: err}
	}
	return nil
}

func (c *Client) post(ctx context.Context, endpoint string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Endpoint: endpoint, Code: resp.StatusCode}
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// parseTimestamp tolerates missing or malformed timestamps; the feed still
// renders without them.
func parseTimestamp(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts
	}
	return time.Time{}
}
