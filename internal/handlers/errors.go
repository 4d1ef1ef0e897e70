package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"affiliate-service/internal/services"
	"affiliate-service/pkg/common"
)

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrInsufficientBalance), errors.Is(err, services.ErrBelowMinimum):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidSignature):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)

	var data interface{}
	message := err.Error()

	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		message = services.ErrValidation.Error()
		data = verr.Fields
	case errors.Is(err, services.ErrInvalidState):
		message = services.ErrInvalidState.Error()
	case status == http.StatusInternalServerError:
		log.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
		message = "internal server error"
	}

	c.JSON(status, common.NewErrorResponse(message, data, status))
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, common.NewErrorResponse(message, nil, http.StatusBadRequest))
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", strconv.Itoa(common.DefaultPerPage)))
	return page, perPage
}
