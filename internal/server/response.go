package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"geotech-rag/internal/rag"
)

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"data": data})
}

func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": APIError{Code: code, Message: message}})
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	log.Error().Err(err).Str("method", c.Request.Method).Str("path", c.Request.URL.Path).Msg("Request failed")
	switch {
	case errors.Is(err, rag.ErrEmptyQuestion):
		fail(c, http.StatusBadRequest, "invalid", err.Error())
	case errors.Is(err, rag.ErrMissingKey):
		fail(c, http.StatusBadRequest, "missing_key", err.Error())
	default:
		fail(c, http.StatusInternalServerError, "internal", err.Error())
	}
}
