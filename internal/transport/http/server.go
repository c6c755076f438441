// Package http exposes the REST API and the websocket leaderboard feed.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"edupath-service/internal/app"
	"edupath-service/internal/auth"
	"edupath-service/internal/domain"
)

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u domain.User) error
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	ListStudents(ctx context.Context) ([]domain.User, error)
}

// GroupStore persists assignments.
type GroupStore interface {
	CreateGroup(ctx context.Context, g domain.Group) error
	ListGroups(ctx context.Context) ([]domain.Group, error)
}

// LessonStore persists lesson documents.
type LessonStore interface {
	PutLesson(ctx context.Context, l domain.Lesson) error
	ListLessons(ctx context.Context, assignmentID string) ([]domain.Lesson, error)
}

// LessonReader serves single-lesson reads, usually through a cache.
type LessonReader interface {
	GetLesson(ctx context.Context, lessonID string) (domain.Lesson, error)
}

// LessonInvalidator drops a cached lesson after a write.
type LessonInvalidator interface {
	Invalidate(ctx context.Context, lessonID string)
}

// AttemptLister reads a user's attempt history.
type AttemptLister interface {
	ListAttempts(ctx context.Context, userID, lessonID string) ([]domain.Attempt, error)
}

// StandingsSource loads stored group standings to seed the leaderboard hub.
type StandingsSource interface {
	GroupStandings(ctx context.Context, groupID string) ([]domain.StandingEntry, error)
}

// API bundles the handlers' dependencies.
type API struct {
	auth        *auth.Service
	users       UserStore
	groups      GroupStore
	lessons     LessonStore
	lessonRead  LessonReader
	invalidator LessonInvalidator
	submissions *app.SubmissionService
	attempts    AttemptLister
	standings   StandingsSource
	hub         *app.LeaderboardHub
}

type APIConfig struct {
	Auth        *auth.Service
	Users       UserStore
	Groups      GroupStore
	Lessons     LessonStore
	LessonRead  LessonReader
	Invalidator LessonInvalidator
	Submissions *app.SubmissionService
	Attempts    AttemptLister
	Standings   StandingsSource
	Hub         *app.LeaderboardHub
}

func NewAPI(cfg APIConfig) *API {
	return &API{
		auth:        cfg.Auth,
		users:       cfg.Users,
		groups:      cfg.Groups,
		lessons:     cfg.Lessons,
		lessonRead:  cfg.LessonRead,
		invalidator: cfg.Invalidator,
		submissions: cfg.Submissions,
		attempts:    cfg.Attempts,
		standings:   cfg.Standings,
		hub:         cfg.Hub,
	}
}

// Router wires all routes. Everything under /api except registration and
// login requires a bearer token.
func (api *API) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/users/createUser", api.handleCreateUser)
		r.Post("/users/login", api.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(api.auth))
			r.Get("/users/listStudents", api.handleListStudents)
			r.Post("/groups/createGroup", api.handleCreateGroup)
			r.Get("/groups/getGroups", api.handleGetGroups)
			r.Post("/lessons/createLesson", api.handleCreateLesson)
			r.Get("/lessons/lesson/{lessonID}", api.handleGetLesson)
			r.Get("/lessons/{assignmentID}", api.handleGetLessons)
			r.Post("/results/submit", api.handleSubmitResult)
			r.Get("/results/mine", api.handleMyResults)
		})
	})

	if api.hub != nil {
		r.Get("/ws", api.serveWS)
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// writeSubmitError maps submission failures onto the API contract:
// 401 unauthenticated, 409 duplicate attempt, 400 for business-rule
// violations, and a generic 400 for anything unexpected.
func writeSubmitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, domain.ErrDuplicateAttempt):
		writeMessage(w, http.StatusConflict, "attempt already exists")
	case errors.Is(err, domain.ErrMissingIDs),
		errors.Is(err, domain.ErrGroupNotFound),
		errors.Is(err, domain.ErrLessonNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrNotGroupMember),
		errors.Is(err, domain.ErrLessonNotInGroup):
		writeMessage(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("submit result: %v", err)
		writeMessage(w, http.StatusBadRequest, "failed to record result")
	}
}

func callerIdentity(r *http.Request) (domain.Identity, bool) {
	return auth.IdentityFromContext(r.Context())
}

func requireTeacher(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	id, ok := callerIdentity(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return domain.Identity{}, false
	}
	if id.Role != domain.RoleTeacher {
		writeMessage(w, http.StatusForbidden, "teacher role required")
		return domain.Identity{}, false
	}
	return id, true
}
