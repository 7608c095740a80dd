package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"routinely/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
)

type fakeSES struct {
	inputs []*sesv2.SendEmailInput
	err    error
}

func (f *fakeSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func testNotification() ClaimNotification {
	return ClaimNotification{
		Parent:     &models.User{Name: "Alex", Email: "alex@example.com"},
		Child:      &models.Child{ID: "child-1", Name: "Sam <3"},
		Reward:     &models.Reward{Name: "Cinema"},
		Claim:      models.RewardClaim{PointsSpent: 40},
		NewBalance: 12,
	}
}

func TestRewardClaimedEmail(t *testing.T) {
	client := &fakeSES{}
	svc := newEmailService(client, "noreply@example.com", "Routinely", "https://app.example.com", false)

	if err := svc.RewardClaimed(context.Background(), testNotification()); err != nil {
		t.Fatalf("RewardClaimed() error = %v", err)
	}
	if len(client.inputs) != 1 {
		t.Fatalf("sent %d emails, want 1", len(client.inputs))
	}

	input := client.inputs[0]
	if got := aws.ToString(input.FromEmailAddress); got != "Routinely <noreply@example.com>" {
		t.Errorf("from = %q", got)
	}
	if input.Destination.ToAddresses[0] != "alex@example.com" {
		t.Errorf("to = %v", input.Destination.ToAddresses)
	}
	subject := aws.ToString(input.Content.Simple.Subject.Data)
	if !strings.Contains(subject, "Cinema") {
		t.Errorf("subject %q does not name the reward", subject)
	}
	htmlBody := aws.ToString(input.Content.Simple.Body.Html.Data)
	if !strings.Contains(htmlBody, "Sam &lt;3") {
		t.Error("html body does not escape the child's name")
	}
	if !strings.Contains(htmlBody, "https://app.example.com/children/child-1/points") {
		t.Error("html body is missing the history link")
	}
}

func TestRewardClaimedEmailFailures(t *testing.T) {
	disabled := &EmailService{}
	if err := disabled.RewardClaimed(context.Background(), testNotification()); err != nil {
		t.Errorf("disabled service error = %v, want nil", err)
	}

	client := &fakeSES{err: errors.New("throttled")}
	svc := newEmailService(client, "noreply@example.com", "", "https://app.example.com", false)
	if err := svc.RewardClaimed(context.Background(), testNotification()); err == nil {
		t.Error("expected SES failure to be returned")
	}
}
