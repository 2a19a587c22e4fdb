package domain

import "time"

// LessonProgress marks a single lesson as done. Completion is monotonic:
// nothing in the normal flow flips it back to false.
type LessonProgress struct {
	LessonID  string `json:"lessonId"`
	Completed bool   `json:"completed"`
}

// SectionProgress tracks lesson completion inside one course section.
// The section-level Completed flag is independent of the lessons map;
// the quiz pass-path sets it directly without per-lesson tracking.
type SectionProgress struct {
	SectionID string                     `json:"sectionId"`
	Completed bool                       `json:"completed"`
	Lessons   map[string]*LessonProgress `json:"lessons"`
}

// CourseProgress is created lazily on the first mutation for a course.
type CourseProgress struct {
	CourseID     string                      `json:"courseId"`
	Sections     map[string]*SectionProgress `json:"sections"`
	LastAccessed time.Time                   `json:"lastAccessed"`
}

// UserProgress is the whole per-user collection. It is owned by a single
// user's session and flushed to storage as one unit on every mutation.
type UserProgress map[string]*CourseProgress

// Clone deep-copies the collection so stores can hand out snapshots
// without sharing mutable state with callers.
func (p UserProgress) Clone() UserProgress {
	out := make(UserProgress, len(p))
	for courseID, course := range p {
		out[courseID] = course.Clone()
	}
	return out
}

// Clone deep-copies one course record.
func (c *CourseProgress) Clone() *CourseProgress {
	if c == nil {
		return nil
	}
	sections := make(map[string]*SectionProgress, len(c.Sections))
	for sectionID, section := range c.Sections {
		lessons := make(map[string]*LessonProgress, len(section.Lessons))
		for lessonID, lesson := range section.Lessons {
			copied := *lesson
			lessons[lessonID] = &copied
		}
		sections[sectionID] = &SectionProgress{
			SectionID: section.SectionID,
			Completed: section.Completed,
			Lessons:   lessons,
		}
	}
	return &CourseProgress{
		CourseID:     c.CourseID,
		Sections:     sections,
		LastAccessed: c.LastAccessed,
	}
}

// Option is a selectable answer for a question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question models an MCQ question with exactly one correct option.
// CorrectOptionID may be empty when the source never designated one;
// such a question can only ever count as incorrect.
type Question struct {
	ID              string   `json:"id"`
	Prompt          string   `json:"prompt"`
	Options         []Option `json:"options"`
	CorrectOptionID string   `json:"correctOptionId"`
}

// QuizSettings carries the course association and timing rules for a quiz.
type QuizSettings struct {
	QuizID    string        `json:"quizId"`
	CourseID  string        `json:"courseId"`
	SectionID string        `json:"sectionId"`
	Passmark  int           `json:"passmark"`
	Duration  time.Duration `json:"duration"`
}

// Quiz is the full content needed to run one session for a course.
type Quiz struct {
	Settings  QuizSettings `json:"settings"`
	Questions []Question   `json:"questions"`
}

// QuizResult is the scored outcome of a quiz session.
type QuizResult struct {
	Score     int  `json:"score"`
	Correct   int  `json:"correct"`
	Incorrect int  `json:"incorrect"`
	Timeout   bool `json:"timeout"`
	Passed    bool `json:"passed"`
}

// QuizEventType discriminates runner push events.
type QuizEventType string

const (
	QuizEventTick      QuizEventType = "tick"
	QuizEventTimeout   QuizEventType = "timeout"
	QuizEventSubmitted QuizEventType = "submitted"
)

// QuizEvent is pushed to transports while a session runs.
type QuizEvent struct {
	Type      QuizEventType `json:"type"`
	Remaining time.Duration `json:"remaining"`
	Result    *QuizResult   `json:"result,omitempty"`
}

// FeedItem is one entry of a paginated feed (post, event, topic post).
type FeedItem struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

// FeedPage is one server page together with its pagination envelope.
type FeedPage struct {
	Items       []FeedItem `json:"items"`
	CurrentPage int        `json:"currentPage"`
	LastPage    int        `json:"lastPage"`
	PerPage     int        `json:"perPage"`
	Total       int        `json:"total"`
}
