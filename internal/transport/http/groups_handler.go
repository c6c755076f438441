package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"

	"edupath-service/internal/domain"
)

type createGroupRequest struct {
	Title            string   `json:"title"`
	AssignedStudents []string `json:"assignedStudents"`
	Lessons          []string `json:"lessons"`
}

func (api *API) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireTeacher(w, r)
	if !ok {
		return
	}
	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		writeMessage(w, http.StatusBadRequest, "title is required")
		return
	}

	group := domain.Group{
		ID:               uuid.NewString(),
		Name:             req.Title,
		TeacherID:        caller.UserID,
		AssignedStudents: req.AssignedStudents,
		Lessons:          req.Lessons,
	}
	if err := api.groups.CreateGroup(r.Context(), group); err != nil {
		log.Printf("create group: %v", err)
		writeMessage(w, http.StatusBadRequest, "failed to create group")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"status":  "success",
		"message": "group created",
		"data":    group,
	})
}

func (api *API) handleGetGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := api.groups.ListGroups(r.Context())
	if err != nil {
		log.Printf("list groups: %v", err)
		writeMessage(w, http.StatusBadRequest, "failed to fetch groups")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   groups,
	})
}
