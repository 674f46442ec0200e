package formsync

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/montron/pm_backend/config"
	"github.com/montron/pm_backend/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const pushHandlerName = "formsync.ingest_run"

func ingestTopic() string {
	topic := strings.TrimSpace(os.Getenv("FORM_SYNC_TOPIC"))
	if topic == "" {
		topic = "form-sync"
	}
	return topic
}

// PublishIngestRun asks the form-sync service to run an ingestion.
func PublishIngestRun(ctx context.Context, payload IngestRunPayload) (string, error) {
	if strings.TrimSpace(payload.CompanyId) == "" {
		return "", errors.New("company_id is required")
	}
	client, err := config.GetClient(ctx)
	if err != nil {
		return "", err
	}
	if _, err := config.CreateTopicIfNotExists(ctx, client, ingestTopic()); err != nil {
		return "", err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return config.PublishRaw(ctx, ingestTopic(), data, map[string]string{"company_id": payload.CompanyId})
}

// PushHandler serves Pub/Sub push deliveries. Malformed or unroutable messages
// are acked with 204 so they are not redelivered; a duplicate still running is
// answered 409 and a failed run 500, both of which Pub/Sub retries.
func PushHandler(worker *Worker, cfg *Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(http.StatusNoContent)
			return
		}
		var envelope PushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			c.Status(http.StatusNoContent)
			return
		}
		payload, err := decodePayload(envelope.Message.Data)
		if err != nil {
			worker.Logger.WithError(err).Warn("dropping malformed form sync message")
			c.Status(http.StatusNoContent)
			return
		}
		tenant, ok := cfg.Tenant(payload.CompanyId)
		if !ok {
			worker.Logger.WithField("company_id", payload.CompanyId).Warn("dropping form sync message for unknown tenant")
			c.Status(http.StatusNoContent)
			return
		}

		ctx := c.Request.Context()
		messageId := envelope.Message.MessageId
		if messageId != "" {
			var skip bool
			err := worker.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				var err error
				skip, err = workflow.BeginIdempotency(tx, tenant.CompanyId, pushHandlerName, messageId)
				return err
			})
			if errors.Is(err, workflow.ErrIdempotencyInProgress) {
				c.Status(http.StatusConflict)
				return
			}
			if err != nil {
				config.LogError(worker.Logger, "formsync", "PushHandler", "begin idempotency", messageId, err)
				c.Status(http.StatusInternalServerError)
				return
			}
			if skip {
				c.Status(http.StatusNoContent)
				return
			}
		}

		stats, runErr := worker.Run(ctx, tenant, payload.From, payload.To)
		if messageId != "" {
			db := worker.DB.WithContext(ctx)
			var markErr error
			if runErr != nil {
				markErr = workflow.MarkIdempotencyFailed(db, tenant.CompanyId, pushHandlerName, messageId, runErr)
			} else {
				markErr = workflow.MarkIdempotencySucceeded(db, tenant.CompanyId, pushHandlerName, messageId)
			}
			if markErr != nil {
				config.LogError(worker.Logger, "formsync", "PushHandler", "mark idempotency", messageId, markErr)
			}
		}
		if runErr != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		worker.Logger.WithFields(logrus.Fields{
			"company_id": tenant.CompanyId,
			"message_id": messageId,
			"failed":     stats.Failed,
		}).Info("form sync push handled")
		c.Status(http.StatusNoContent)
	}
}
