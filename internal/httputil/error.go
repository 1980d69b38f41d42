package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/AdamBeresnev/op-booking-app/internal/room"
	"github.com/charmbracelet/log"
)

type errorBody struct {
	Error string `json:"error"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response", "err", err)
	}
}

func InternalServerError(w http.ResponseWriter, msg string, err error) {
	log.Error(msg, "err", err)
	JSON(w, http.StatusInternalServerError, errorBody{Error: "Internal Server Error"})
}

func BadRequest(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		log.Warn("bad request", "message", msg, "err", err)
	} else {
		log.Warn("bad request", "message", msg)
	}
	JSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

func NotFound(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		log.Warn("not found", "message", msg, "err", err)
	} else {
		log.Warn("not found", "message", msg)
	}
	JSON(w, http.StatusNotFound, errorBody{Error: msg})
}

func Conflict(w http.ResponseWriter, msg string, err error) {
	log.Warn("conflict", "message", msg, "err", err)
	JSON(w, http.StatusConflict, errorBody{Error: msg})
}

func Forbidden(w http.ResponseWriter, msg string, err error) {
	log.Warn("forbidden", "message", msg, "err", err)
	JSON(w, http.StatusForbidden, errorBody{Error: msg})
}

// Error picks the response from the error's class. msg is what the caller was
// trying to do and is only used for unexpected failures.
func Error(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, room.ErrNotFound):
		NotFound(w, err.Error(), err)
	case errors.Is(err, room.ErrInvalidInput):
		BadRequest(w, err.Error(), err)
	case errors.Is(err, room.ErrPrecondition):
		Conflict(w, err.Error(), err)
	case errors.Is(err, room.ErrForbidden):
		Forbidden(w, err.Error(), err)
	default:
		InternalServerError(w, msg, err)
	}
}
