package http

import (
	"encoding/json"
	"log"
	"net/http"

	"edupath-service/internal/app"
)

func (api *API) handleSubmitResult(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerIdentity(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var req app.SubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := api.submissions.Submit(r.Context(), caller, req)
	if err != nil {
		writeSubmitError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (api *API) handleMyResults(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerIdentity(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	attempts, err := api.attempts.ListAttempts(r.Context(), caller.UserID, r.URL.Query().Get("lessonId"))
	if err != nil {
		log.Printf("list attempts: %v", err)
		writeMessage(w, http.StatusBadRequest, "failed to fetch results")
		return
	}
	writeJSON(w, http.StatusOK, attempts)
}
