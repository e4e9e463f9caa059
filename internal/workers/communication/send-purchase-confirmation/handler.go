// internal/workers/communication/send-purchase-confirmation/handler.go
package sendpurchaseconfirmation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	"licensure-workers/internal/common/errors"
	"licensure-workers/internal/common/logger"
	"licensure-workers/internal/common/metrics"
)

const (
	TaskType = "send-purchase-confirmation"
)

// Define interfaces for mocking
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Handler struct {
	config    *Config
	sesClient SESService
	snsClient SNSService
	errors    *errors.ErrorHandler
	logger    logger.Logger
}

func NewHandler(config *Config, sesClient SESService, snsClient SNSService, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		sesClient: sesClient,
		snsClient: snsClient,
		errors:    errors.NewErrorHandler(log),
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer func() {
		metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()
		metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	}()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(ctx, client, job, errors.NewMalformedInputError(err))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

// execute sends the confirmation. Email is the channel of record: a
// failed send fails the job so redelivery tries again. SMS only degrades,
// because retrying the job after a sent email would duplicate it.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.Compact == "" {
		return nil, errors.NewMissingFieldError("compact")
	}
	if input.ProviderID == "" {
		return nil, errors.NewMissingFieldError("providerId")
	}
	if input.EmailAddress == "" {
		return nil, errors.NewMissingFieldError("emailAddress")
	}
	if len(input.Jurisdictions) == 0 {
		return nil, errors.NewMissingFieldError("jurisdictions")
	}

	notificationID := uuid.New().String()
	subject := buildSubject(input)
	body := buildBody(input)

	emailSent := false
	smsSent := false

	if h.config.EmailEnabled {
		if err := h.sendEmail(ctx, input.EmailAddress, subject, body); err != nil {
			h.logger.Error("email send failed", map[string]interface{}{
				"error":          err,
				"notificationId": notificationID,
				"providerId":     input.ProviderID,
			})
			return nil, errors.NewNotificationSendFailedError("email", err)
		}
		emailSent = true
	}

	if h.config.SMSEnabled && input.PhoneNumber != "" {
		if err := h.sendSMS(ctx, input.PhoneNumber, body); err != nil {
			h.logger.Warn("SMS send failed, confirmation already delivered by email", map[string]interface{}{
				"error":          err,
				"notificationId": notificationID,
				"providerId":     input.ProviderID,
			})
		} else {
			smsSent = true
		}
	}

	status := StatusDisabled
	if emailSent || smsSent {
		status = StatusSent
	}

	output := &Output{
		NotificationID: notificationID,
		Status:         status,
		EmailSent:      emailSent,
		SMSSent:        smsSent,
		SentAt:         time.Now().UTC().Format(time.RFC3339),
	}

	h.logger.Info("purchase confirmation processed", map[string]interface{}{
		"notificationId": notificationID,
		"providerId":     input.ProviderID,
		"status":         status,
		"emailSent":      emailSent,
		"smsSent":        smsSent,
	})
	return output, nil
}

func buildSubject(input *Input) string {
	return fmt.Sprintf("Compact privilege purchase confirmed (%s)", strings.ToUpper(input.Compact))
}

func buildBody(input *Input) string {
	name := strings.TrimSpace(input.GivenName + " " + input.FamilyName)
	if name == "" {
		name = "Provider"
	}

	body := fmt.Sprintf(
		"Dear %s,\n\nYour purchase of compact privileges in %s has been recorded on your %s compact record.",
		name,
		strings.Join(input.Jurisdictions, ", "),
		strings.ToUpper(input.Compact),
	)
	if input.CompactTransactionID != "" {
		body += fmt.Sprintf("\n\nTransaction reference: %s.", input.CompactTransactionID)
	}
	return body
}

func (h *Handler) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := h.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
				Html: &types.Content{Data: aws.String(strings.ReplaceAll(body, "\n", "<br>"))},
			},
		},
		Source: aws.String(h.config.FromEmail),
	})
	return err
}

func (h *Handler) sendSMS(ctx context.Context, to, message string) error {
	_, err := h.snsClient.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	return err
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	h.logger.Info("job completed successfully", map[string]interface{}{
		"jobKey": job.Key,
	})
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	code := "INTERNAL_ERROR"
	if std, ok := errors.AsStandard(err); ok {
		code = string(std.Code)
	}
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, code).Inc()
	h.errors.HandleJobError(ctx, client, job, err)
}

// Execute exposes the core path for workflow-level tests.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
