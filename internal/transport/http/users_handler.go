package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"

	"edupath-service/internal/auth"
	"edupath-service/internal/domain"
)

type createUserRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Role            string `json:"role"`
}

func (api *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" || req.ConfirmPassword == "" || req.Role == "" {
		writeMessage(w, http.StatusBadRequest, "name, email, password, confirmPassword, and role are required")
		return
	}
	role := domain.Role(req.Role)
	if role != domain.RoleStudent && role != domain.RoleTeacher {
		writeMessage(w, http.StatusBadRequest, "role must be either 'student' or 'teacher'")
		return
	}
	if req.Password != req.ConfirmPassword {
		writeMessage(w, http.StatusBadRequest, "passwords do not match")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("hash password: %v", err)
		writeMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}

	err = api.users.CreateUser(r.Context(), domain.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			writeMessage(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("create user: %v", err)
		writeMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeMessage(w, http.StatusCreated, "User created successfully")
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (api *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := api.users.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			writeMessage(w, http.StatusUnauthorized, domain.ErrInvalidCredentials.Error())
			return
		}
		log.Printf("login lookup: %v", err)
		writeMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeMessage(w, http.StatusUnauthorized, domain.ErrInvalidCredentials.Error())
		return
	}

	token, err := api.auth.Issue(user.ID, user.Role)
	if err != nil {
		log.Printf("issue token: %v", err)
		writeMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user": map[string]any{
			"id":   user.ID,
			"name": user.Name,
			"role": user.Role,
		},
	})
}

func (api *API) handleListStudents(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireTeacher(w, r); !ok {
		return
	}
	students, err := api.users.ListStudents(r.Context())
	if err != nil {
		log.Printf("list students: %v", err)
		writeMessage(w, http.StatusInternalServerError, "error fetching users")
		return
	}
	writeJSON(w, http.StatusOK, students)
}
