package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"campus-gateway/internal/domain"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, courseID string) (domain.Quiz, error)
}

// ResultSink persists a scored quiz outcome (normally the upstream API).
type ResultSink interface {
	SubmitResult(ctx context.Context, userID string, settings domain.QuizSettings, result domain.QuizResult) error
}

// AnswerCache keeps the raw answer map around so a review screen can be
// rendered after the session is gone.
type AnswerCache interface {
	SaveAnswers(ctx context.Context, userID, courseID string, answers map[string]string) error
	LoadAnswers(ctx context.Context, userID, courseID string) (map[string]string, error)
}

// SectionMarker is the slice of the progress tracker the quiz pass-path
// needs.
type SectionMarker interface {
	MarkSectionComplete(ctx context.Context, userID, courseID, sectionID string) error
}

// QuizService starts quiz sessions and serves answer reviews.
type QuizService struct {
	quizzes   QuizRepository
	sink      ResultSink
	answers   AnswerCache
	progress  SectionMarker
	tickEvery time.Duration
}

func NewQuizService(quizzes QuizRepository, sink ResultSink, answers AnswerCache, progress SectionMarker, tickEvery time.Duration) *QuizService {
	if tickEvery <= 0 {
		tickEvery = time.Second
	}
	return &QuizService{
		quizzes:   quizzes,
		sink:      sink,
		answers:   answers,
		progress:  progress,
		tickEvery: tickEvery,
	}
}

// Start loads the quiz for a course and hands back an Active runner with
// its countdown already going. A load failure blocks the session from
// ever becoming active.
func (s *QuizService) Start(ctx context.Context, userID, courseID string) (*QuizRunner, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("load quiz for course %s: %w", courseID, err)
	}
	runner := newQuizRunner(s, userID, quiz)
	if quiz.Settings.Duration > 0 {
		go runner.runCountdown(s.tickEvery)
	}
	return runner, nil
}

// ReviewAnswers returns the answer map cached by the last submission.
func (s *QuizService) ReviewAnswers(ctx context.Context, userID, courseID string) (map[string]string, error) {
	return s.answers.LoadAnswers(ctx, userID, courseID)
}

type runnerState int

const (
	stateActive runnerState = iota
	stateSubmitting
	stateSubmitted
)

func (s runnerState) String() string {
	switch s {
	case stateActive:
		return "active"
	case stateSubmitting:
		return "submitting"
	default:
		return "submitted"
	}
}

// QuizRunner drives one timed quiz session from question presentation to
// scored submission. Answers are mutable only while Active; the countdown
// and the manual submit path are mutually exclusive via the Submitting
// transition, so submission happens at most once per session.
type QuizRunner struct {
	svc    *QuizService
	userID string
	quiz   domain.Quiz

	mu        sync.Mutex
	state     runnerState
	answers   map[string]string
	remaining time.Duration
	timedOut  bool
	inFlight  bool
	result    *domain.QuizResult

	stop         chan struct{}
	stopOnce     sync.Once
	events       chan domain.QuizEvent
	eventsClosed bool
}

// QuizSnapshot is a read-only view of the runner for transports/tests.
type QuizSnapshot struct {
	State     string             `json:"state"`
	Remaining time.Duration      `json:"remaining"`
	Answers   map[string]string  `json:"answers"`
	Result    *domain.QuizResult `json:"result,omitempty"`
}

func newQuizRunner(svc *QuizService, userID string, quiz domain.Quiz) *QuizRunner {
	return &QuizRunner{
		svc:       svc,
		userID:    userID,
		quiz:      quiz,
		state:     stateActive,
		answers:   make(map[string]string),
		remaining: quiz.Settings.Duration,
		stop:      make(chan struct{}),
		events:    make(chan domain.QuizEvent, 16),
	}
}

// Quiz returns the session's content. Transports must strip the correct
// option IDs before pushing questions to clients.
func (r *QuizRunner) Quiz() domain.Quiz {
	return r.quiz
}

// Events is the push channel consumed by the transport. It is closed
// after the submitted event.
func (r *QuizRunner) Events() <-chan domain.QuizEvent {
	return r.events
}

// Snapshot returns the current state for rendering.
func (r *QuizRunner) Snapshot() QuizSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	answers := make(map[string]string, len(r.answers))
	for questionID, optionID := range r.answers {
		answers[questionID] = optionID
	}
	return QuizSnapshot{
		State:     r.state.String(),
		Remaining: r.remaining,
		Answers:   answers,
		Result:    r.result,
	}
}

// Answer records the selected option for a question. Both IDs are
// validated against the loaded content.
func (r *QuizRunner) Answer(questionID, optionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case stateSubmitted:
		return domain.ErrQuizSubmitted
	case stateSubmitting:
		return domain.ErrQuizNotActive
	}

	question := findQuestion(r.quiz.Questions, questionID)
	if question == nil {
		return domain.ErrQuestionNotFound
	}
	if findOption(question.Options, optionID) == nil {
		return domain.ErrOptionNotFound
	}
	r.answers[questionID] = optionID
	return nil
}

// Submit scores the session and sends the result upstream. A failed
// upstream call leaves the runner in Submitting with answers and the
// stopped timer intact, so Submit can simply be invoked again.
func (r *QuizRunner) Submit(ctx context.Context) (domain.QuizResult, error) {
	return r.submit(ctx, false)
}

// runCountdown ticks the session clock until it expires or the session
// leaves the Active state.
func (r *QuizRunner) runCountdown(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			if r.tick() {
				r.autoSubmit()
				return
			}
		}
	}
}

// tick decrements the countdown by one second. Returning true means the
// timer expired and the session has already been moved out of Active, so
// a second expiry can never fire.
func (r *QuizRunner) tick() bool {
	r.mu.Lock()
	if r.state != stateActive {
		r.mu.Unlock()
		return false
	}
	r.remaining -= time.Second
	if r.remaining <= 0 {
		r.remaining = 0
		r.state = stateSubmitting
		r.timedOut = true
		r.stopCountdown()
		r.mu.Unlock()
		return true
	}
	r.emitLocked(domain.QuizEvent{Type: domain.QuizEventTick, Remaining: r.remaining})
	r.mu.Unlock()
	return false
}

func (r *QuizRunner) autoSubmit() {
	r.mu.Lock()
	r.emitLocked(domain.QuizEvent{Type: domain.QuizEventTimeout})
	r.mu.Unlock()
	if _, err := r.submit(context.Background(), true); err != nil {
		log.Printf("quiz auto-submit for user %s course %s failed: %v", r.userID, r.quiz.Settings.CourseID, err)
	}
}

func (r *QuizRunner) submit(ctx context.Context, timeout bool) (domain.QuizResult, error) {
	r.mu.Lock()
	switch r.state {
	case stateSubmitted:
		r.mu.Unlock()
		return domain.QuizResult{}, domain.ErrQuizSubmitted
	case stateSubmitting:
		if r.inFlight {
			r.mu.Unlock()
			return domain.QuizResult{}, domain.ErrSubmitInFlight
		}
	case stateActive:
		r.stopCountdown()
		r.state = stateSubmitting
	}
	if timeout {
		r.timedOut = true
	}
	r.inFlight = true
	result := r.scoreLocked()
	answers := make(map[string]string, len(r.answers))
	for questionID, optionID := range r.answers {
		answers[questionID] = optionID
	}
	settings := r.quiz.Settings
	r.mu.Unlock()

	if err := r.svc.sink.SubmitResult(ctx, r.userID, settings, result); err != nil {
		r.mu.Lock()
		r.inFlight = false
		r.mu.Unlock()
		return domain.QuizResult{}, fmt.Errorf("submit quiz result: %w", err)
	}

	if result.Passed {
		if err := r.svc.progress.MarkSectionComplete(ctx, r.userID, settings.CourseID, settings.SectionID); err != nil {
			log.Printf("mark section %s complete after quiz pass: %v", settings.SectionID, err)
		}
	}
	if err := r.svc.answers.SaveAnswers(ctx, r.userID, settings.CourseID, answers); err != nil {
		log.Printf("cache quiz answers for course %s: %v", settings.CourseID, err)
	}

	r.mu.Lock()
	r.state = stateSubmitted
	r.inFlight = false
	r.result = &result
	r.emitLocked(domain.QuizEvent{Type: domain.QuizEventSubmitted, Result: &result})
	r.eventsClosed = true
	close(r.events)
	r.mu.Unlock()
	return result, nil
}

// scoreLocked tallies correct vs incorrect answers. An unanswered
// question counts as incorrect; an empty quiz scores zero.
func (r *QuizRunner) scoreLocked() domain.QuizResult {
	total := len(r.quiz.Questions)
	result := domain.QuizResult{Timeout: r.timedOut}
	for _, question := range r.quiz.Questions {
		selected, answered := r.answers[question.ID]
		if answered && question.CorrectOptionID != "" && selected == question.CorrectOptionID {
			result.Correct++
		}
	}
	result.Incorrect = total - result.Correct
	if total > 0 {
		result.Score = percentage(result.Correct, total)
	}
	result.Passed = result.Score >= r.quiz.Settings.Passmark
	return result
}

func (r *QuizRunner) stopCountdown() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// emitLocked never blocks; if the single subscriber lags, the stalest
// buffered event is dropped in its favour. Callers hold r.mu, which is
// what keeps emits ordered against the channel close.
func (r *QuizRunner) emitLocked(event domain.QuizEvent) {
	if r.eventsClosed {
		return
	}
	select {
	case r.events <- event:
	default:
		select {
		case <-r.events:
		default:
		}
		r.events <- event
	}
}

func findQuestion(questions []domain.Question, questionID string) *domain.Question {
	for i := range questions {
		if questions[i].ID == questionID {
			return &questions[i]
		}
	}
	return nil
}

func findOption(options []domain.Option, optionID string) *domain.Option {
	for i := range options {
		if options[i].ID == optionID {
			return &options[i]
		}
	}
	return nil
}
