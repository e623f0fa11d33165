package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"campusmart/adapters/auth"
	"campusmart/backend"
	"campusmart/market"
)

type errorResponse struct {
	Error   string              `json:"error"`
	Message string              `json:"message,omitempty"`
	Fields  []market.FieldError `json:"fields,omitempty"`
}

// writeError 將核心錯誤分類對應到 HTTP 狀態碼
func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	resp := errorResponse{Error: "internal error"}

	var merr *market.Error
	if errors.As(err, &merr) {
		resp.Error = string(merr.Kind)
		resp.Message = merr.Message
		resp.Fields = merr.Fields
	}

	switch {
	case errors.Is(err, market.ErrValidation), errors.Is(err, auth.ErrInvalidInput):
		status = http.StatusBadRequest
		if merr == nil {
			resp.Error, resp.Message = string(market.ErrValidation), err.Error()
		}
	case errors.Is(err, market.ErrUnauthorized):
		status = http.StatusForbidden
		if !currentIdentity(c).IsAuthenticated() {
			status = http.StatusUnauthorized
		}
	case errors.Is(err, market.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, backend.ErrInvalidCredentials), errors.Is(err, backend.ErrSessionExpired):
		status = http.StatusUnauthorized
		resp.Error = err.Error()
	case errors.Is(err, backend.ErrEmailNotConfirmed):
		status = http.StatusForbidden
		resp.Error = err.Error()
	case errors.Is(err, backend.ErrEmailTaken):
		status = http.StatusConflict
		resp.Error = err.Error()
	case errors.Is(err, market.ErrConfiguration):
		status = http.StatusInternalServerError
	default:
		// 其他錯誤都視為後端暫時無法使用
		status = http.StatusServiceUnavailable
		resp.Error = string(market.ErrTransient)
		resp.Message = ""
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, resp)
}
