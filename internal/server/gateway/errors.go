package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/neurostore/internal/common"
	"github.com/gin-gonic/gin"
)

type errorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status,omitempty"`
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrInvalidArgument), errors.Is(err, common.ErrProtocol):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrIntegrity):
		return http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, common.ErrStorageTransient):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func errorFrom(err error) errorBody {
	code := httpStatus(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = "internal error"
	}
	return errorBody{Error: msg, Status: code}
}

func (g *Gateway) fail(c *gin.Context, err error) {
	body := errorFrom(err)
	if body.Status >= http.StatusInternalServerError {
		g.logger.Error(c.Request.Context(), "request failed", "route", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(body.Status, body)
}
