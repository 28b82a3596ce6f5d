package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zaxchat/zax-backend/internal/apperr"
)

// Response is the JSON envelope shared by all endpoints.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: "success", Data: data})
}

func created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Code: 0, Message: "created", Data: data})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, Response{Code: -1, Message: err.Error()})
}

// errorResponse maps service errors to HTTP statuses.
func errorResponse(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, apperr.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, apperr.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, apperr.ErrUpstreamUnavailable):
		status = http.StatusBadGateway
	}
	c.JSON(status, Response{Code: -1, Message: err.Error()})
}
