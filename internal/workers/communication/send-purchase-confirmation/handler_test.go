// internal/workers/communication/send-purchase-confirmation/handler_test.go
package sendpurchaseconfirmation

import (
	"context"
	goerrors "errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licensure-workers/internal/common/errors"
	"licensure-workers/internal/common/logger"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeSES struct {
	inputs []*ses.SendEmailInput
	err    error
}

func (f *fakeSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("msg-001")}, nil
}

type fakeSNS struct {
	inputs []*sns.PublishInput
	err    error
}

func (f *fakeSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("sms-001")}, nil
}

func newTestHandler(t *testing.T, sesClient SESService, snsClient SNSService, emailEnabled, smsEnabled bool) *Handler {
	t.Helper()
	cfg := &Config{
		Timeout:      30 * time.Second,
		EmailEnabled: emailEnabled,
		SMSEnabled:   smsEnabled,
		FromEmail:    "no-reply@compact-records.example.org",
	}
	return NewHandler(cfg, sesClient, snsClient, logger.NewTestLogger(t))
}

func confirmationInput() *Input {
	return &Input{
		Compact:              "aslp",
		ProviderID:           "prov-001",
		GivenName:            "Jane",
		FamilyName:           "Doe",
		EmailAddress:         "jane.doe@example.org",
		Jurisdictions:        []string{"ky", "ne"},
		CompactTransactionID: "txn-9001",
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_SendsEmail(t *testing.T) {
	sesClient := &fakeSES{}
	snsClient := &fakeSNS{}
	handler := newTestHandler(t, sesClient, snsClient, true, true)

	output, err := handler.Execute(context.Background(), confirmationInput())
	require.NoError(t, err)

	assert.Equal(t, StatusSent, output.Status)
	assert.True(t, output.EmailSent)
	assert.False(t, output.SMSSent)
	assert.NotEmpty(t, output.SentAt)

	_, err = uuid.Parse(output.NotificationID)
	assert.NoError(t, err)

	require.Len(t, sesClient.inputs, 1)
	sent := sesClient.inputs[0]
	assert.Equal(t, []string{"jane.doe@example.org"}, sent.Destination.ToAddresses)
	assert.Equal(t, "no-reply@compact-records.example.org", aws.ToString(sent.Source))

	subject := aws.ToString(sent.Message.Subject.Data)
	assert.Contains(t, subject, "ASLP")

	body := aws.ToString(sent.Message.Body.Text.Data)
	assert.Contains(t, body, "Jane Doe")
	assert.Contains(t, body, "ky, ne")
	assert.Contains(t, body, "txn-9001")

	// No phone number, so no SMS.
	assert.Empty(t, snsClient.inputs)
}

func TestHandler_Execute_SendsSMSWhenPhonePresent(t *testing.T) {
	sesClient := &fakeSES{}
	snsClient := &fakeSNS{}
	handler := newTestHandler(t, sesClient, snsClient, true, true)

	input := confirmationInput()
	input.PhoneNumber = "+15135550100"

	output, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.True(t, output.EmailSent)
	assert.True(t, output.SMSSent)
	require.Len(t, snsClient.inputs, 1)
	assert.Equal(t, "+15135550100", aws.ToString(snsClient.inputs[0].PhoneNumber))
	assert.NotEmpty(t, aws.ToString(snsClient.inputs[0].Message))
}

func TestHandler_Execute_SMSDisabledSkipsPublish(t *testing.T) {
	sesClient := &fakeSES{}
	snsClient := &fakeSNS{}
	handler := newTestHandler(t, sesClient, snsClient, true, false)

	input := confirmationInput()
	input.PhoneNumber = "+15135550100"

	output, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.True(t, output.EmailSent)
	assert.False(t, output.SMSSent)
	assert.Empty(t, snsClient.inputs)
}

func TestHandler_Execute_AllChannelsDisabled(t *testing.T) {
	sesClient := &fakeSES{}
	snsClient := &fakeSNS{}
	handler := newTestHandler(t, sesClient, snsClient, false, false)

	output, err := handler.Execute(context.Background(), confirmationInput())
	require.NoError(t, err)

	assert.Equal(t, StatusDisabled, output.Status)
	assert.False(t, output.EmailSent)
	assert.False(t, output.SMSSent)
	assert.Empty(t, sesClient.inputs)
	assert.Empty(t, snsClient.inputs)
}

// ==========================
// Failure Propagation Tests
// ==========================

func TestHandler_Execute_EmailFailureFailsJob(t *testing.T) {
	sesClient := &fakeSES{err: goerrors.New("ses down")}
	handler := newTestHandler(t, sesClient, &fakeSNS{}, true, true)

	output, err := handler.Execute(context.Background(), confirmationInput())

	require.Error(t, err)
	assert.Nil(t, output)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotificationSendFailed))
	assert.True(t, errors.IsRetryable(err))
	assert.Equal(t, 3, errors.GetRetryCount(errors.ErrCodeNotificationSendFailed))
}

func TestHandler_Execute_SMSFailureDegrades(t *testing.T) {
	sesClient := &fakeSES{}
	snsClient := &fakeSNS{err: goerrors.New("sns down")}
	handler := newTestHandler(t, sesClient, snsClient, true, true)

	input := confirmationInput()
	input.PhoneNumber = "+15135550100"

	output, err := handler.Execute(context.Background(), input)

	// Retrying the job would duplicate the already-delivered email.
	require.NoError(t, err)
	assert.Equal(t, StatusSent, output.Status)
	assert.True(t, output.EmailSent)
	assert.False(t, output.SMSSent)
}

// ==========================
// Edge Cases
// ==========================

func TestHandler_Execute_MissingFields(t *testing.T) {
	handler := newTestHandler(t, &fakeSES{}, &fakeSNS{}, true, true)

	for _, mutate := range []func(*Input){
		func(in *Input) { in.Compact = "" },
		func(in *Input) { in.ProviderID = "" },
		func(in *Input) { in.EmailAddress = "" },
		func(in *Input) { in.Jurisdictions = nil },
	} {
		input := confirmationInput()
		mutate(input)
		_, err := handler.Execute(context.Background(), input)
		assert.True(t, errors.IsCode(err, errors.ErrCodeMissingField))
	}
}

func TestBuildBody_NoName(t *testing.T) {
	input := confirmationInput()
	input.GivenName = ""
	input.FamilyName = ""
	input.CompactTransactionID = ""

	body := buildBody(input)
	assert.Contains(t, body, "Dear Provider,")
	assert.NotContains(t, body, "Transaction reference")
}

// ==========================
// Benchmark Tests
// ==========================

func BenchmarkHandler_Execute(b *testing.B) {
	cfg := &Config{Timeout: time.Minute, EmailEnabled: true, SMSEnabled: true, FromEmail: "no-reply@compact-records.example.org"}
	handler := NewHandler(cfg, &fakeSES{}, &fakeSNS{}, logger.NewNoOpLogger())

	input := confirmationInput()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := handler.Execute(context.Background(), input); err != nil {
			b.Fatal(err)
		}
	}
}
