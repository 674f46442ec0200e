package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/montron/pm_backend/utils"
	"github.com/sirupsen/logrus"
)

const correlationHeader = "x-correlation-id"

func CorrelationId() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader(correlationHeader)
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Header(correlationHeader, cid)
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	}
}

// RequestLogger logs one line per request once the handler chain is done.
func RequestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		ctx := c.Request.Context()
		cid, _ := utils.GetCorrelationIdFromContext(ctx)
		companyId, _ := utils.GetCompanyIdFromContext(ctx)
		userId, _ := utils.GetUserIdFromContext(ctx)
		entry := logger.WithFields(logrus.Fields{
			"status":         c.Writer.Status(),
			"method":         c.Request.Method,
			"path":           c.FullPath(),
			"latency":        time.Since(start).String(),
			"correlation_id": cid,
			"company_id":     companyId,
			"user_id":        userId,
		})
		if len(c.Errors) > 0 {
			entry.WithField("errors", c.Errors.String()).Error("request")
			return
		}
		entry.Info("request")
	}
}
