// Package httputil provides HTTP handler utilities for consistent error
// handling, JSON encoding/decoding, and request parsing.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/folio-cms/folio/pkg/apperr"
	"github.com/folio-cms/folio/pkg/pagination"
)

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteErrorMessage writes a JSON error response with a custom message
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, status int, err error) {
	WriteErrorMessage(w, status, err.Error())
}

// WriteSuccess writes a 200 OK response with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteCreated writes a 201 Created response with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteNoContent writes a 204 No Content response
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteBadRequest writes a 400 error
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteUnauthorized writes a 401 error
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusUnauthorized, message)
}

// WriteForbidden writes a 403 error
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusForbidden, message)
}

// WriteNotFound writes a 404 error
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusNotFound, message)
}

// WriteConflict writes a 409 error
func WriteConflict(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusConflict, message)
}

// WriteInternalError writes a 500 error
func WriteInternalError(w http.ResponseWriter, err error) {
	WriteError(w, http.StatusInternalServerError, err)
}

// ValidationResponse carries the field slugs that failed validation
type ValidationResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

// WriteAppError maps an error kind from pkg/apperr to its HTTP status.
// Unknown errors surface as 500 without leaking internals.
func WriteAppError(w http.ResponseWriter, err error) {
	if ve, ok := apperr.IsValidation(err); ok {
		msg := ve.Message
		if msg == "" {
			msg = "validation failed"
		}
		WriteJSON(w, http.StatusUnprocessableEntity, ValidationResponse{
			Error:  msg,
			Fields: ve.Fields,
		})
		return
	}

	switch {
	case errors.Is(err, apperr.ErrUnauthorized):
		WriteUnauthorized(w, err.Error())
	case errors.Is(err, apperr.ErrForbidden):
		WriteForbidden(w, err.Error())
	case errors.Is(err, apperr.ErrNotFound):
		WriteNotFound(w, err.Error())
	case errors.Is(err, apperr.ErrConflict):
		WriteConflict(w, err.Error())
	case errors.Is(err, apperr.ErrBadRequest):
		WriteBadRequest(w, err.Error())
	case errors.Is(err, apperr.ErrInconsistent):
		// Degraded references read as absent, not as server faults.
		WriteNotFound(w, err.Error())
	default:
		WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
	}
}

// ListResponse is the envelope for every list-returning operation
type ListResponse struct {
	Data       interface{}      `json:"data"`
	Pagination *pagination.Page `json:"pagination,omitempty"`
}

// WriteList writes a paginated listing response
func WriteList(w http.ResponseWriter, data interface{}, page *pagination.Page) error {
	return WriteJSON(w, http.StatusOK, ListResponse{Data: data, Pagination: page})
}
