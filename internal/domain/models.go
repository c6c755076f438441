package domain

import "time"

// Role distinguishes the two kinds of platform users.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// LessonStatus is the outcome of a scored attempt.
type LessonStatus string

const (
	StatusPassed  LessonStatus = "passed"
	StatusFailed  LessonStatus = "failed"
	StatusPartial LessonStatus = "partial"
)

// Identity is the authenticated caller, resolved from a bearer token.
type Identity struct {
	UserID string
	Role   Role
}

// User is a platform account plus its denormalized best-score counters.
type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`

	TotalBestPoints int            `json:"totalBestPoints"`
	BestByLesson    map[string]int `json:"bestByLesson"`
	GroupPoints     map[string]int `json:"groupPoints"`

	CreatedAt time.Time `json:"createdAt"`
}

// BestScoreState is the slice of a User the submission flow reads and mutates.
// BestByLesson is non-decreasing per lesson; TotalBestPoints is the sum of its
// values, maintained incrementally by deltas.
type BestScoreState struct {
	UserID          string
	Name            string
	TotalBestPoints int
	BestByLesson    map[string]int
	GroupPoints     map[string]int
}

// Group is an assignment: a teacher, the students it is assigned to, and an
// optional lesson allow-list.
type Group struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	TeacherID        string    `json:"teacherId"`
	AssignedStudents []string  `json:"assignedStudents"`
	Lessons          []string  `json:"lessons,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// HasStudent reports whether userID appears in the group's assignment list.
func (g Group) HasStudent(userID string) bool {
	for _, id := range g.AssignedStudents {
		if id == userID {
			return true
		}
	}
	return false
}

// AllowsLesson reports whether the group's lesson allow-list admits lessonID.
// An empty allow-list admits every lesson.
func (g Group) AllowsLesson(lessonID string) bool {
	if len(g.Lessons) == 0 {
		return true
	}
	for _, id := range g.Lessons {
		if id == lessonID {
			return true
		}
	}
	return false
}

// Question is a single lesson question with its answer key.
type Question struct {
	ID            string   `json:"id"`
	Type          string   `json:"type,omitempty"` // "multiple-choice" or "fill-blank"
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correctAnswer"`
	Explanation   string   `json:"explanation,omitempty"`
	Difficulty    int      `json:"difficulty,omitempty"`
	Points        int      `json:"points"`
	XP            int      `json:"xp,omitempty"`
	Hints         []string `json:"hints,omitempty"`
}

// LessonContent holds the instructional material shown before the questions.
type LessonContent struct {
	Theory     string   `json:"theory,omitempty"`
	Examples   []string `json:"examples,omitempty"`
	VisualAids []string `json:"visualAids,omitempty"`
}

// LessonRewards is the gamification payload granted on completion.
type LessonRewards struct {
	Points int      `json:"points,omitempty"`
	XP     int      `json:"xp,omitempty"`
	Badges []string `json:"badges,omitempty"`
}

// AdaptiveSettings tunes pass thresholds and retry policy per lesson.
// MinAccuracy is canonically a fraction in [0,1]; values above 1 are treated
// as percentages for backward compatibility.
type AdaptiveSettings struct {
	MinAccuracy        float64 `json:"minAccuracy"`
	AdaptiveDifficulty bool    `json:"adaptiveDifficulty,omitempty"`
	RetryAllowed       bool    `json:"retryAllowed,omitempty"`
	MaxRetries         int     `json:"maxRetries,omitempty"`
}

// Lesson is the authored content unit, immutable during a submission.
type Lesson struct {
	ID                string           `json:"id"`
	Title             string           `json:"title"`
	Description       string           `json:"description,omitempty"`
	AssignmentID      string           `json:"assignmentId"`
	Order             int              `json:"order,omitempty"`
	EstimatedDuration int              `json:"estimatedDuration,omitempty"`
	Difficulty        int              `json:"difficulty,omitempty"`
	PrerequisiteIDs   []string         `json:"prerequisiteIds,omitempty"`
	Content           LessonContent    `json:"content"`
	Questions         []Question       `json:"questions"`
	Rewards           LessonRewards    `json:"rewards"`
	AdaptiveSettings  AdaptiveSettings `json:"adaptiveSettings"`
	Unlocked          bool             `json:"unlocked"`
	CreatedAt         time.Time        `json:"createdAt"`
}

// AnswerInput is one submitted answer.
type AnswerInput struct {
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
}

// AnswerDetail is the scored record of a single answer.
type AnswerDetail struct {
	QuestionID     string `json:"questionId"`
	Correct        bool   `json:"isCorrect"`
	Points         int    `json:"points"`
	GivenAnswer    string `json:"givenAnswer,omitempty"`
	ExpectedAnswer string `json:"expectedAnswer,omitempty"`
}

// Attempt is one immutable row of the attempt ledger. The triple
// (UserID, LessonID, Attempt) is unique, enforced by the store.
type Attempt struct {
	ID           string         `json:"id"`
	UserID       string         `json:"userId"`
	GroupID      string         `json:"groupId"`
	LessonID     string         `json:"lessonId"`
	Attempt      int            `json:"attempt"`
	PointsEarned int            `json:"pointsEarned"`
	Status       LessonStatus   `json:"status"`
	Accuracy     float64        `json:"accuracy"`
	Detail       []AnswerDetail `json:"detail"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// StandingEntry is one row of a group leaderboard.
type StandingEntry struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Points      int    `json:"points"`
}

// GroupStandings is the ordered leaderboard for a group.
type GroupStandings struct {
	GroupID   string          `json:"groupId"`
	Entries   []StandingEntry `json:"entries"`
	UpdatedAt time.Time       `json:"updatedAt"`
}
