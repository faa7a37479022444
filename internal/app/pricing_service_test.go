package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"school_portal_core/internal/apperr"
	"school_portal_core/internal/domain/class"
	"school_portal_core/internal/domain/pricing"
	"school_portal_core/internal/domain/term"
)

func TestQuoteForClass(t *testing.T) {
	ctx := context.Background()
	day := func(s string) time.Time { d, _ := term.ParseDate(s); return d }
	terms := memTerms{
		// 10 weeks.
		"fall": {ID: "fall", Name: "Fall 2024", StartDate: day("2024-09-02"), EndDate: day("2024-11-11")},
		"bad":  {ID: "bad", Name: "Broken", StartDate: day("2024-09-02"), EndDate: day("2024-08-01")},
	}
	classes := &memClasses{classes: []class.Class{
		{ID: "c1", Category: "public_speaking", TermID: "fall"},
		{ID: "c2", Category: "chess", TermID: "fall"},
		{ID: "c3", Category: "novice", TermID: "missing"},
		{ID: "c4", Category: "novice", TermID: "bad"},
	}}
	log, hook := testLogger()
	svc := NewPricingService(classes, terms, log)

	q, err := svc.QuoteForClass(ctx, "c1", day("2024-08-20"))
	require.NoError(t, err)
	assert.Equal(t, pricing.TierPublicSpeaking, q.Tier.Key)
	assert.Equal(t, int64(280), q.Price, "joining before the term pays full price")
	assert.False(t, q.Prorated())

	q, err = svc.QuoteForClass(ctx, "c1", day("2024-10-07"))
	require.NoError(t, err)
	assert.Equal(t, 10, q.TotalWeeks)
	assert.Equal(t, 5, q.RemainingWeeks)
	assert.Equal(t, int64(140), q.Price)

	q, err = svc.QuoteForClass(ctx, "c2", day("2024-08-20"))
	require.NoError(t, err)
	assert.Equal(t, pricing.TierAdvanced, q.Tier.Key)
	assert.False(t, q.CategoryMapped)
	assert.Equal(t, "Unmapped class category priced with the advanced tier", hook.LastEntry().Message)

	_, err = svc.QuoteForClass(ctx, "nope", time.Now())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = svc.QuoteForClass(ctx, "c3", time.Now())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = svc.QuoteForClass(ctx, "c4", time.Now())
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
