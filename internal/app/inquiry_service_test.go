package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"school_portal_core/internal/apperr"
	"school_portal_core/internal/infra/ratelimit"
)

func validInquiry() Inquiry {
	return Inquiry{Name: "Pat", Email: "pat@example.com", Phone: "604-555-0100", Message: "Do you have Saturday classes?"}
}

func TestInquirySubmit(t *testing.T) {
	ctx := context.Background()
	sender := &recordingSender{}
	log, _ := testLogger()
	svc := NewInquiryService(ratelimit.NewMemoryStore(2, time.Hour), sender, "office@example.com", log)

	require.NoError(t, svc.Submit(ctx, "10.0.0.1", validInquiry()))
	msgs := sender.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"office@example.com"}, msgs[0].To)
	assert.Equal(t, "pat@example.com", msgs[0].ReplyTo)
	assert.Equal(t, "New inquiry from Pat", msgs[0].Subject)
	assert.Contains(t, msgs[0].HTML, "Saturday classes")
}

func TestInquiryRateLimited(t *testing.T) {
	ctx := context.Background()
	sender := &recordingSender{}
	log, _ := testLogger()
	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	svc := NewInquiryService(ratelimit.NewMemoryStore(2, time.Hour), sender, "office@example.com", log)
	svc.now = func() time.Time { return start }

	require.NoError(t, svc.Submit(ctx, "10.0.0.1", validInquiry()))
	require.NoError(t, svc.Submit(ctx, "10.0.0.1", validInquiry()))

	err := svc.Submit(ctx, "10.0.0.1", validInquiry())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindRateLimited))
	assert.Equal(t, 429, apperr.StatusOf(err))
	assert.Contains(t, err.Error(), "2024-06-01T11:00:00Z")

	assert.NoError(t, svc.Submit(ctx, "10.0.0.2", validInquiry()), "other callers unaffected")

	svc.now = func() time.Time { return start.Add(time.Hour) }
	assert.NoError(t, svc.Submit(ctx, "10.0.0.1", validInquiry()), "window reset")
	assert.Len(t, sender.messages(), 4)
}

func TestInquiryValidation(t *testing.T) {
	ctx := context.Background()
	log, _ := testLogger()
	svc := NewInquiryService(ratelimit.NewMemoryStore(100, time.Hour), &recordingSender{}, "office@example.com", log)

	bad := []Inquiry{
		{Email: "pat@example.com", Message: "hi"},
		{Name: "Pat", Email: "nope", Message: "hi"},
		{Name: "Pat", Email: "pat@example.com", Message: "   "},
	}
	for _, in := range bad {
		err := svc.Submit(ctx, "", in)
		assert.True(t, apperr.Is(err, apperr.KindValidation), "%+v", in)
	}

	noInbox := NewInquiryService(ratelimit.NewMemoryStore(100, time.Hour), &recordingSender{}, "", log)
	assert.True(t, apperr.Is(noInbox.Submit(ctx, "", validInquiry()), apperr.KindValidation))
}
