package ports

import (
	"github.com/gin-gonic/gin"
)

// StatusHandler serves the local status endpoints of a running client.
type StatusHandler interface {
	Health(c *gin.Context)
	Status(c *gin.Context)
	Transcript(c *gin.Context)
}
