// Package scoring grades a set of submitted answers against a lesson's
// question bank. It is pure: no I/O, no error conditions, deterministic
// output for identical input.
package scoring

import (
	"strings"

	"edupath-service/internal/domain"
)

// Result is the outcome of scoring one submission.
type Result struct {
	PointsEarned   int
	CorrectAnswers int
	TotalQuestions int
	Accuracy       float64
	Status         domain.LessonStatus
	Detail         []domain.AnswerDetail
}

// Score grades answers against the lesson's questions.
//
// Answers referencing unknown question ids are ignored. If no answers were
// submitted but the lesson has questions, the total is the lesson's question
// count so accuracy resolves to 0 instead of being undefined.
func Score(lesson domain.Lesson, answers []domain.AnswerInput) Result {
	byID := make(map[string]domain.Question, len(lesson.Questions))
	for _, q := range lesson.Questions {
		if q.ID != "" {
			byID[q.ID] = q
		}
	}

	var (
		correct      int
		total        int
		pointsEarned int
	)
	detail := make([]domain.AnswerDetail, 0, len(answers))

	for _, a := range answers {
		q, ok := byID[a.QuestionID]
		if !ok {
			continue
		}
		total++

		isCorrect := strings.TrimSpace(a.Answer) == strings.TrimSpace(q.CorrectAnswer)
		pts := 0
		if isCorrect {
			pts = q.Points
			correct++
			pointsEarned += pts
		}

		detail = append(detail, domain.AnswerDetail{
			QuestionID:     a.QuestionID,
			Correct:        isCorrect,
			Points:         pts,
			GivenAnswer:    a.Answer,
			ExpectedAnswer: q.CorrectAnswer,
		})
	}

	if total == 0 && len(lesson.Questions) > 0 {
		total = len(lesson.Questions)
	}

	accuracy := 0.0
	if total > 0 {
		accuracy = float64(correct) / float64(total)
	}

	minAccuracy := NormalizeMinAccuracy(lesson.AdaptiveSettings.MinAccuracy)

	status := domain.StatusFailed
	if accuracy >= minAccuracy {
		status = domain.StatusPassed
	} else if accuracy > 0 {
		status = domain.StatusPartial
	}

	return Result{
		PointsEarned:   pointsEarned,
		CorrectAnswers: correct,
		TotalQuestions: total,
		Accuracy:       accuracy,
		Status:         status,
		Detail:         detail,
	}
}

// NormalizeMinAccuracy maps a stored threshold to a fraction. The canonical
// representation is [0,1]; legacy lessons authored the value as a 0-100
// percentage, so anything above 1 is divided by 100.
func NormalizeMinAccuracy(v float64) float64 {
	if v > 1 {
		return v / 100
	}
	return v
}
