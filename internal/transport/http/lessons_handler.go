package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"edupath-service/internal/domain"
)

func (api *API) handleCreateLesson(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireTeacher(w, r); !ok {
		return
	}
	var lesson domain.Lesson
	if err := json.NewDecoder(r.Body).Decode(&lesson); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if lesson.Title == "" || lesson.AssignmentID == "" {
		writeMessage(w, http.StatusBadRequest, "title and assignmentId are required")
		return
	}
	if len(lesson.Questions) == 0 {
		writeMessage(w, http.StatusBadRequest, "at least one question is required")
		return
	}
	for i := range lesson.Questions {
		if lesson.Questions[i].ID == "" {
			lesson.Questions[i].ID = uuid.NewString()
		}
		if lesson.Questions[i].CorrectAnswer == "" {
			writeMessage(w, http.StatusBadRequest, "every question needs a correctAnswer")
			return
		}
	}

	// Canonical minAccuracy is a fraction; accept percentage input at the
	// boundary and reject anything out of range instead of guessing later.
	min := lesson.AdaptiveSettings.MinAccuracy
	switch {
	case min < 0 || min > 100:
		writeMessage(w, http.StatusBadRequest, "minAccuracy must be in [0,1] or [0,100]")
		return
	case min > 1:
		lesson.AdaptiveSettings.MinAccuracy = min / 100
	}

	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	if err := api.lessons.PutLesson(r.Context(), lesson); err != nil {
		log.Printf("put lesson: %v", err)
		writeMessage(w, http.StatusBadRequest, "failed to create lesson")
		return
	}
	if api.invalidator != nil {
		api.invalidator.Invalidate(r.Context(), lesson.ID)
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"status":  "success",
		"message": "lesson created",
		"lesson":  lesson,
	})
}

func (api *API) handleGetLessons(w http.ResponseWriter, r *http.Request) {
	assignmentID := chi.URLParam(r, "assignmentID")
	lessons, err := api.lessons.ListLessons(r.Context(), assignmentID)
	if err != nil {
		log.Printf("list lessons: %v", err)
		writeMessage(w, http.StatusBadRequest, "failed to fetch lessons")
		return
	}
	if caller, ok := callerIdentity(r); ok && caller.Role != domain.RoleTeacher {
		for i := range lessons {
			stripAnswers(&lessons[i])
		}
	}
	writeJSON(w, http.StatusOK, lessons)
}

func (api *API) handleGetLesson(w http.ResponseWriter, r *http.Request) {
	lessonID := chi.URLParam(r, "lessonID")
	lesson, err := api.lessonRead.GetLesson(r.Context(), lessonID)
	if err != nil {
		if errors.Is(err, domain.ErrLessonNotFound) {
			writeMessage(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("get lesson: %v", err)
		writeMessage(w, http.StatusBadRequest, "failed to fetch lesson")
		return
	}
	if caller, ok := callerIdentity(r); ok && caller.Role != domain.RoleTeacher {
		stripAnswers(&lesson)
	}
	writeJSON(w, http.StatusOK, lesson)
}

// stripAnswers removes the answer key before serving a lesson to a student.
func stripAnswers(lesson *domain.Lesson) {
	questions := make([]domain.Question, len(lesson.Questions))
	copy(questions, lesson.Questions)
	for i := range questions {
		questions[i].CorrectAnswer = ""
	}
	lesson.Questions = questions
}
