package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health is the liveness probe; it never touches match state.
func Health(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
