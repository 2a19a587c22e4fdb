package app

import (
	"context"
	"log"
	"math"
	"sync"
	"time"

	"campus-gateway/internal/domain"
)

// ProgressRepository abstracts how per-user progress collections are
// persisted (in-memory, Redis, etc). Implementations must recover from
// malformed stored data by returning an empty collection.
type ProgressRepository interface {
	Load(ctx context.Context, userID string) (domain.UserProgress, error)
	Save(ctx context.Context, userID string, progress domain.UserProgress) error
}

// ProgressTracker maintains completion state for lessons and sections
// across courses, scoped per user. Every mutation flushes the user's
// whole collection back to the repository; the repository is the only
// durable copy, the tracker just keeps the working set.
type ProgressTracker struct {
	repo ProgressRepository
	now  func() time.Time

	mu    sync.Mutex
	users map[string]domain.UserProgress
}

func NewProgressTracker(repo ProgressRepository) *ProgressTracker {
	return newProgressTrackerWithClock(repo, time.Now)
}

// newProgressTrackerWithClock allows deterministic timestamps in tests.
func newProgressTrackerWithClock(repo ProgressRepository, now func() time.Time) *ProgressTracker {
	return &ProgressTracker{
		repo:  repo,
		now:   now,
		users: make(map[string]domain.UserProgress),
	}
}

// MarkLessonComplete flags a lesson as done. It is idempotent: marking an
// already-complete lesson changes nothing and does not flush. Missing
// course/section records are created lazily. The section's own Completed
// flag is left untouched.
func (t *ProgressTracker) MarkLessonComplete(ctx context.Context, userID, courseID, sectionID, lessonID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	progress := t.userLocked(ctx, userID)
	section := ensureSection(ensureCourse(progress, courseID), sectionID)
	if lesson, ok := section.Lessons[lessonID]; ok && lesson.Completed {
		return nil
	}
	section.Lessons[lessonID] = &domain.LessonProgress{LessonID: lessonID, Completed: true}
	progress[courseID].LastAccessed = t.now()
	return t.flushLocked(ctx, userID, progress)
}

// MarkSectionComplete sets the section's Completed flag directly,
// independent of its lessons. The quiz pass-path relies on this to mark a
// quiz section done without per-lesson tracking.
func (t *ProgressTracker) MarkSectionComplete(ctx context.Context, userID, courseID, sectionID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	progress := t.userLocked(ctx, userID)
	section := ensureSection(ensureCourse(progress, courseID), sectionID)
	if section.Completed {
		return nil
	}
	section.Completed = true
	progress[courseID].LastAccessed = t.now()
	return t.flushLocked(ctx, userID, progress)
}

// LessonStatus reports lesson completion. Unknown IDs at any level yield
// false, never an error.
func (t *ProgressTracker) LessonStatus(ctx context.Context, userID, courseID, sectionID, lessonID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	section := lookupSection(t.userLocked(ctx, userID), courseID, sectionID)
	if section == nil {
		return false
	}
	lesson, ok := section.Lessons[lessonID]
	return ok && lesson.Completed
}

// SectionStatus reports the section's own Completed flag with the same
// absent-safe contract as LessonStatus.
func (t *ProgressTracker) SectionStatus(ctx context.Context, userID, courseID, sectionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	section := lookupSection(t.userLocked(ctx, userID), courseID, sectionID)
	return section != nil && section.Completed
}

// SectionProgress returns the rounded percentage of completed lessons in
// a section, or 0 when the section is absent or has no lessons.
func (t *ProgressTracker) SectionProgress(ctx context.Context, userID, courseID, sectionID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	section := lookupSection(t.userLocked(ctx, userID), courseID, sectionID)
	if section == nil || len(section.Lessons) == 0 {
		return 0
	}
	completed := 0
	for _, lesson := range section.Lessons {
		if lesson.Completed {
			completed++
		}
	}
	return percentage(completed, len(section.Lessons))
}

// CourseProgress returns the rounded percentage of completed sections in
// a course. It deliberately counts sections, not lessons: a section full
// of completed lessons contributes nothing until it is itself marked
// complete.
func (t *ProgressTracker) CourseProgress(ctx context.Context, userID, courseID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	course, ok := t.userLocked(ctx, userID)[courseID]
	if !ok || len(course.Sections) == 0 {
		return 0
	}
	completed := 0
	for _, section := range course.Sections {
		if section.Completed {
			completed++
		}
	}
	return percentage(completed, len(course.Sections))
}

// CourseSnapshot returns a deep copy of one course record, or nil when
// the user has no progress for it.
func (t *ProgressTracker) CourseSnapshot(ctx context.Context, userID, courseID string) *domain.CourseProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.userLocked(ctx, userID)[courseID].Clone()
}

// ResetCourse removes the course's record entirely and flushes.
func (t *ProgressTracker) ResetCourse(ctx context.Context, userID, courseID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	progress := t.userLocked(ctx, userID)
	if _, ok := progress[courseID]; !ok {
		return nil
	}
	delete(progress, courseID)
	return t.flushLocked(ctx, userID, progress)
}

// Release drops the in-memory working set for a user. The next touch
// re-reads from the repository, which is what a login/logout boundary
// needs.
func (t *ProgressTracker) Release(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.users, userID)
}

// userLocked returns the working set for userID, loading it from the
// repository on first touch. Load failures degrade to an empty collection
// so reads never fail; the cache is not authoritative anyway.
func (t *ProgressTracker) userLocked(ctx context.Context, userID string) domain.UserProgress {
	if progress, ok := t.users[userID]; ok {
		return progress
	}
	progress, err := t.repo.Load(ctx, userID)
	if err != nil {
		log.Printf("progress load for user %s failed, starting empty: %v", userID, err)
		progress = domain.UserProgress{}
	}
	if progress == nil {
		progress = domain.UserProgress{}
	}
	t.users[userID] = progress
	return progress
}

func (t *ProgressTracker) flushLocked(ctx context.Context, userID string, progress domain.UserProgress) error {
	return t.repo.Save(ctx, userID, progress)
}

func ensureCourse(progress domain.UserProgress, courseID string) *domain.CourseProgress {
	if course, ok := progress[courseID]; ok {
		return course
	}
	course := &domain.CourseProgress{
		CourseID: courseID,
		Sections: make(map[string]*domain.SectionProgress),
	}
	progress[courseID] = course
	return course
}

func ensureSection(course *domain.CourseProgress, sectionID string) *domain.SectionProgress {
	if section, ok := course.Sections[sectionID]; ok {
		return section
	}
	section := &domain.SectionProgress{
		SectionID: sectionID,
		Lessons:   make(map[string]*domain.LessonProgress),
	}
	course.Sections[sectionID] = section
	return section
}

func lookupSection(progress domain.UserProgress, courseID, sectionID string) *domain.SectionProgress {
	course, ok := progress[courseID]
	if !ok {
		return nil
	}
	return course.Sections[sectionID]
}

func percentage(completed, total int) int {
	return int(math.Round(float64(completed) / float64(total) * 100))
}
