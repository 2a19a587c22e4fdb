package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"campus-gateway/internal/app"
	"campus-gateway/internal/domain"
)

// API exposes the feed and progress use cases as a small JSON surface for
// lightweight clients.
type API struct {
	progress *app.ProgressTracker
	feeds    *app.FeedFetcher
	quizzes  *app.QuizService
}

func NewAPI(progress *app.ProgressTracker, feeds *app.FeedFetcher, quizzes *app.QuizService) *API {
	return &API{progress: progress, feeds: feeds, quizzes: quizzes}
}

// Register mounts all routes on the mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/feeds/", a.handleFeeds)
	mux.HandleFunc("/api/progress", a.handleProgress)
	mux.HandleFunc("/api/progress/lesson", a.handleLessonComplete)
	mux.HandleFunc("/api/progress/section", a.handleSectionComplete)
	mux.HandleFunc("/api/quiz/review", a.handleQuizReview)
}

// handleFeeds serves /api/feeds/{kind}[/more|/refresh].
func (a *API) handleFeeds(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/feeds/")
	kind, action, _ := strings.Cut(rest, "/")
	if kind == "" {
		writeError(w, http.StatusNotFound, "unknown feed")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, a.feeds.Snapshot(kind))
	case action == "more" && r.Method == http.MethodPost:
		a.writeFeedResult(w, kind)(a.feeds.LoadMore(r.Context(), kind))
	case action == "refresh" && r.Method == http.MethodPost:
		a.writeFeedResult(w, kind)(a.feeds.Refresh(r.Context(), kind))
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *API) writeFeedResult(w http.ResponseWriter, kind string) func(app.FeedSnapshot, error) {
	return func(snapshot app.FeedSnapshot, err error) {
		switch {
		case errors.Is(err, domain.ErrFetchInFlight):
			writeError(w, http.StatusConflict, "fetch already in flight")
		case err != nil:
			log.Printf("feed %s fetch failed: %v", kind, err)
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"error":     "feed fetch failed",
				"retryable": true,
			})
		default:
			writeJSON(w, http.StatusOK, snapshot)
		}
	}
}

type sectionSummary struct {
	SectionID string `json:"sectionId"`
	Completed bool   `json:"completed"`
	Percent   int    `json:"percent"`
}

type courseSummary struct {
	CourseID string           `json:"courseId"`
	Percent  int              `json:"percent"`
	Sections []sectionSummary `json:"sections"`
}

// handleProgress serves GET (course summary) and DELETE (reset) on
// /api/progress?userId=&courseId=.
func (a *API) handleProgress(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	courseID := r.URL.Query().Get("courseId")
	if userID == "" || courseID == "" {
		writeError(w, http.StatusBadRequest, "missing userId or courseId")
		return
	}

	switch r.Method {
	case http.MethodGet:
		summary := courseSummary{
			CourseID: courseID,
			Percent:  a.progress.CourseProgress(r.Context(), userID, courseID),
			Sections: []sectionSummary{},
		}
		if course := a.progress.CourseSnapshot(r.Context(), userID, courseID); course != nil {
			for sectionID, section := range course.Sections {
				summary.Sections = append(summary.Sections, sectionSummary{
					SectionID: sectionID,
					Completed: section.Completed,
					Percent:   a.progress.SectionProgress(r.Context(), userID, courseID, sectionID),
				})
			}
		}
		writeJSON(w, http.StatusOK, summary)
	case http.MethodDelete:
		if err := a.progress.ResetCourse(r.Context(), userID, courseID); err != nil {
			log.Printf("reset course %s for user %s: %v", courseID, userID, err)
			writeError(w, http.StatusInternalServerError, "reset failed")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type markRequest struct {
	UserID    string `json:"userId"`
	CourseID  string `json:"courseId"`
	SectionID string `json:"sectionId"`
	LessonID  string `json:"lessonId"`
}

func (a *API) handleLessonComplete(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeMark(w, r, true)
	if !ok {
		return
	}
	if err := a.progress.MarkLessonComplete(r.Context(), req.UserID, req.CourseID, req.SectionID, req.LessonID); err != nil {
		log.Printf("mark lesson complete: %v", err)
		writeError(w, http.StatusInternalServerError, "progress write failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleSectionComplete(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeMark(w, r, false)
	if !ok {
		return
	}
	if err := a.progress.MarkSectionComplete(r.Context(), req.UserID, req.CourseID, req.SectionID); err != nil {
		log.Printf("mark section complete: %v", err)
		writeError(w, http.StatusInternalServerError, "progress write failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleQuizReview returns the answer map cached by the last submission,
// for rendering a results/review screen.
func (a *API) handleQuizReview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID := r.URL.Query().Get("userId")
	courseID := r.URL.Query().Get("courseId")
	if userID == "" || courseID == "" {
		writeError(w, http.StatusBadRequest, "missing userId or courseId")
		return
	}
	answers, err := a.quizzes.ReviewAnswers(r.Context(), userID, courseID)
	if err != nil {
		log.Printf("load quiz review for user %s course %s: %v", userID, courseID, err)
		writeError(w, http.StatusInternalServerError, "review unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"courseId": courseID, "answers": answers})
}

func decodeMark(w http.ResponseWriter, r *http.Request, needLesson bool) (markRequest, bool) {
	var req markRequest
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return req, false
	}
	if req.UserID == "" || req.CourseID == "" || req.SectionID == "" || (needLesson && req.LessonID == "") {
		writeError(w, http.StatusBadRequest, "missing identifiers")
		return req, false
	}
	return req, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
