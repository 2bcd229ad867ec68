package utils

import (
	"encoding/json"
	"ms-checkin/internal/apperr"
	"net/http"
)

// ErrorBody is the JSON shape of every failed API call.
type ErrorBody struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// WriteJSON writes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError maps err to its status code and a client-safe message.
func WriteError(w http.ResponseWriter, err error) {
	WriteJSON(w, apperr.HTTPStatus(err), ErrorBody{OK: false, Message: apperr.PublicMessage(err)})
}

// WriteErrorMessage writes a failure with an explicit status.
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorBody{OK: false, Message: message})
}
