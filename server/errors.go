package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wfunc/mafiaserver/errs"
	"github.com/wfunc/mafiaserver/logger"
	"github.com/wfunc/mafiaserver/network"
)

// statusFor maps an error kind onto an HTTP status.
func statusFor(err error) int {
	if errs.CodeOf(err) == errs.CodeNotHost {
		return http.StatusForbidden
	}
	switch errs.KindOf(err) {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindIllegalState:
		return http.StatusUnprocessableEntity
	case errs.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage 内部错误不向客户端暴露细节
func errorMessage(err error) network.ErrorMessage {
	var e *errs.Error
	if errs.KindOf(err) == errs.KindInternal || !errors.As(err, &e) {
		return network.ErrorMessage{
			Error:   "internal",
			Kind:    errs.KindInternal.String(),
			Message: "internal server error",
		}
	}
	return network.ErrorMessage{
		Error:   string(e.Code),
		Kind:    e.Kind.String(),
		Message: e.Detail,
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Log.Errorf("[http] %v", err)
	}
	writeJSON(w, status, errorMessage(err))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Warnf("[http] encode response: %v", err)
	}
}
