package middleware

import (
	"net/http"

	apperrors "roomlink/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler renders the last error attached with c.Error as JSON.
// *apperrors.APIError keeps its status and code; anything else is a 500.
func ErrorHandler(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		if apiErr := apperrors.GetAPIError(err); apiErr != nil {
			log.Debugw("status request rejected",
				"code", apiErr.Code,
				"status", apiErr.HTTPStatus,
				"path", c.Request.URL.Path,
			)
			c.JSON(apiErr.HTTPStatus, gin.H{
				"error":   string(apiErr.Code),
				"message": apiErr.Message,
			})
			return
		}

		log.Errorw("unhandled error",
			"error", err,
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   string(apperrors.ErrCodeInternal),
			"message": "internal error",
		})
	}
}

// Recovery turns a panic in a handler into a 500 response.
func Recovery(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Errorw("panic recovered",
					"error", err,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":   string(apperrors.ErrCodeInternal),
					"message": "internal error",
				})
			}
		}()

		c.Next()
	}
}
