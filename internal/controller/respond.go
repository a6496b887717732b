package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"hiring-gateway/internal/middleware"
	"hiring-gateway/internal/utils"
	"hiring-gateway/pkg/response"
)

// respondError renders err as the standard error envelope with its mapped status
func respondError(c *gin.Context, err error) {
	appErr := utils.AsAppError(err)
	status := utils.GetErrorStatus(appErr)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("code", appErr.Code).Msg("Request failed")
	}
	c.JSON(status, response.ErrorResponseFromAppError(appErr, middleware.GetCorrelationID(c)))
}

func respondOK(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, response.SuccessMessageResponse(message, data, middleware.GetCorrelationID(c)))
}
