package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mindpal/mindpal-backend/internal/noteerr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondServiceError maps the engine's error taxonomy onto HTTP statuses so
// clients can render feedback without inspecting messages. Transient oracle
// failures carry a dedicated code because the edge may retry those once.
func RespondServiceError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "internal"
	switch {
	case noteerr.IsNoOp(err):
		status, code = http.StatusBadRequest, "no_op"
	case noteerr.IsValidation(err):
		status, code = http.StatusBadRequest, "validation"
	case noteerr.IsInvalidKind(err):
		status, code = http.StatusBadRequest, "invalid_kind"
	case noteerr.IsNotFound(err):
		status, code = http.StatusNotFound, "not_found"
	case noteerr.IsTransientOracle(err):
		status, code = http.StatusBadGateway, "oracle_transient"
	case noteerr.IsOracle(err):
		status, code = http.StatusBadGateway, "oracle"
	case noteerr.IsConfiguration(err):
		status, code = http.StatusInternalServerError, "configuration"
	case noteerr.IsStorage(err):
		status, code = http.StatusServiceUnavailable, "storage"
	}
	RespondError(c, status, code, err)
}
