package scoring

import (
	"math"
	"reflect"
	"testing"

	"edupath-service/internal/domain"
)

func twoQuestionLesson(minAccuracy float64) domain.Lesson {
	return domain.Lesson{
		ID: "lesson-1",
		Questions: []domain.Question{
			{ID: "q1", Prompt: "2 + 2?", CorrectAnswer: "4", Points: 10},
			{ID: "q2", Prompt: "3 + 3?", CorrectAnswer: "6", Points: 10},
		},
		AdaptiveSettings: domain.AdaptiveSettings{MinAccuracy: minAccuracy},
	}
}

func TestScoreStatuses(t *testing.T) {
	tests := []struct {
		name     string
		answers  []domain.AnswerInput
		points   int
		accuracy float64
		status   domain.LessonStatus
	}{
		{
			name: "all correct passes",
			answers: []domain.AnswerInput{
				{QuestionID: "q1", Answer: "4"},
				{QuestionID: "q2", Answer: "6"},
			},
			points: 20, accuracy: 1.0, status: domain.StatusPassed,
		},
		{
			name: "half correct is partial below threshold",
			answers: []domain.AnswerInput{
				{QuestionID: "q1", Answer: "4"},
				{QuestionID: "q2", Answer: "7"},
			},
			points: 10, accuracy: 0.5, status: domain.StatusPartial,
		},
		{
			name: "none correct fails",
			answers: []domain.AnswerInput{
				{QuestionID: "q1", Answer: "5"},
				{QuestionID: "q2", Answer: "7"},
			},
			points: 0, accuracy: 0, status: domain.StatusFailed,
		},
	}

	// minAccuracy stored as a 0-100 percentage; scorer must normalize.
	lesson := twoQuestionLesson(70)

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(lesson, tc.answers)
			if got.PointsEarned != tc.points {
				t.Fatalf("points = %d, want %d", got.PointsEarned, tc.points)
			}
			if got.Accuracy != tc.accuracy {
				t.Fatalf("accuracy = %v, want %v", got.Accuracy, tc.accuracy)
			}
			if got.Status != tc.status {
				t.Fatalf("status = %s, want %s", got.Status, tc.status)
			}
		})
	}
}

func TestScoreTrimsAndStaysCaseSensitive(t *testing.T) {
	lesson := domain.Lesson{
		Questions: []domain.Question{
			{ID: "q1", CorrectAnswer: " Paris ", Points: 5},
		},
		AdaptiveSettings: domain.AdaptiveSettings{MinAccuracy: 1},
	}

	got := Score(lesson, []domain.AnswerInput{{QuestionID: "q1", Answer: "Paris"}})
	if !got.Detail[0].Correct || got.PointsEarned != 5 {
		t.Fatalf("expected trimmed match to score, got %+v", got)
	}

	got = Score(lesson, []domain.AnswerInput{{QuestionID: "q1", Answer: "paris"}})
	if got.Detail[0].Correct {
		t.Fatalf("expected case-sensitive mismatch, got %+v", got)
	}
}

func TestScoreIgnoresUnknownQuestions(t *testing.T) {
	lesson := twoQuestionLesson(0.7)
	got := Score(lesson, []domain.AnswerInput{
		{QuestionID: "q1", Answer: "4"},
		{QuestionID: "ghost", Answer: "4"},
	})
	if got.TotalQuestions != 1 {
		t.Fatalf("unknown question counted toward total: %d", got.TotalQuestions)
	}
	if len(got.Detail) != 1 {
		t.Fatalf("unknown question produced detail: %+v", got.Detail)
	}
	if got.Accuracy != 1.0 {
		t.Fatalf("accuracy = %v, want 1.0", got.Accuracy)
	}
}

func TestScoreNoAnswersCountsLessonQuestions(t *testing.T) {
	lesson := twoQuestionLesson(0.7)
	got := Score(lesson, nil)
	if got.TotalQuestions != 2 {
		t.Fatalf("total = %d, want lesson question count 2", got.TotalQuestions)
	}
	if got.Accuracy != 0 || got.Status != domain.StatusFailed {
		t.Fatalf("expected failed with accuracy 0, got %+v", got)
	}
}

func TestScoreEmptyLessonAndEmptyAnswers(t *testing.T) {
	got := Score(domain.Lesson{}, nil)
	if got.Accuracy != 0 || got.TotalQuestions != 0 {
		t.Fatalf("expected zeroed result, got %+v", got)
	}
	// accuracy 0 >= minAccuracy 0, so an empty lesson reads as passed
	if got.Status != domain.StatusPassed {
		t.Fatalf("status = %s, want passed", got.Status)
	}
}

func TestScoreAccuracyBounds(t *testing.T) {
	lesson := twoQuestionLesson(0.5)
	inputs := [][]domain.AnswerInput{
		nil,
		{{QuestionID: "q1", Answer: "4"}},
		{{QuestionID: "q1", Answer: "4"}, {QuestionID: "q2", Answer: "6"}},
		{{QuestionID: "q1", Answer: "x"}, {QuestionID: "q2", Answer: "y"}},
		{{QuestionID: "nope", Answer: "4"}},
	}
	for _, answers := range inputs {
		got := Score(lesson, answers)
		if got.Accuracy < 0 || got.Accuracy > 1 || math.IsNaN(got.Accuracy) {
			t.Fatalf("accuracy out of bounds: %v for answers %+v", got.Accuracy, answers)
		}
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	lesson := twoQuestionLesson(70)
	answers := []domain.AnswerInput{
		{QuestionID: "q1", Answer: "4"},
		{QuestionID: "q2", Answer: "7"},
	}
	first := Score(lesson, answers)
	second := Score(lesson, answers)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("scoring not deterministic: %+v vs %+v", first, second)
	}
}

func TestNormalizeMinAccuracy(t *testing.T) {
	cases := map[float64]float64{
		0:    0,
		0.7:  0.7,
		1:    1,
		70:   0.7,
		100:  1,
		1.01: 0.0101,
	}
	for in, want := range cases {
		if got := NormalizeMinAccuracy(in); math.Abs(got-want) > 1e-9 {
			t.Fatalf("NormalizeMinAccuracy(%v) = %v, want %v", in, got, want)
		}
	}
}
