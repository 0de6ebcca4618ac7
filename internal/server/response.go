package server

import (
	"encoding/json"
	"net/http"
)

// MessageResponse is the body of every non-relay JSON reply.
type MessageResponse struct {
	Msg string `json:"msg"`
}

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteMessage writes {"msg": msg} with the given status.
func WriteMessage(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, MessageResponse{Msg: msg})
}

// NotFound writes the 404 reply used for unknown routes.
func NotFound(w http.ResponseWriter) {
	WriteMessage(w, http.StatusNotFound, "not found")
}

// BadRequest writes a 400 reply carrying detail.
func BadRequest(w http.ResponseWriter, detail string) {
	WriteMessage(w, http.StatusBadRequest, detail)
}

// InternalError writes a 500 reply carrying detail.
func InternalError(w http.ResponseWriter, detail string) {
	WriteMessage(w, http.StatusInternalServerError, detail)
}

// RateLimited writes a 429 reply.
func RateLimited(w http.ResponseWriter) {
	WriteMessage(w, http.StatusTooManyRequests, "rate limit exceeded")
}
