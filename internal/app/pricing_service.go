package app

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"school_portal_core/internal/apperr"
	"school_portal_core/internal/domain/class"
	"school_portal_core/internal/domain/pricing"
	"school_portal_core/internal/domain/term"
)

// PricingService quotes tuition for joining a class part-way through its term.
type PricingService struct {
	classes class.Repository
	terms   term.Repository
	logger  *logrus.Entry
}

func NewPricingService(classes class.Repository, terms term.Repository, logger *logrus.Entry) *PricingService {
	return &PricingService{classes: classes, terms: terms, logger: logger}
}

// QuoteForClass prices classID for a student joining on asOf.
func (s *PricingService) QuoteForClass(ctx context.Context, classID string, asOf time.Time) (pricing.Quote, error) {
	c, err := s.classes.GetByID(ctx, classID)
	if errors.Is(err, class.ErrClassNotFound) {
		return pricing.Quote{}, apperr.NotFound("class", classID)
	}
	if err != nil {
		return pricing.Quote{}, apperr.Upstream("storage", err)
	}
	t, err := s.terms.GetByID(ctx, c.TermID)
	if errors.Is(err, term.ErrTermNotFound) {
		return pricing.Quote{}, apperr.NotFound("term", c.TermID)
	}
	if err != nil {
		return pricing.Quote{}, apperr.Upstream("storage", err)
	}
	if err := t.Validate(); err != nil {
		return pricing.Quote{}, apperr.ValidationWrap(err, "term %s is not priceable", t.ID)
	}

	q, err := pricing.QuoteFor(c.Category, *t, asOf)
	if err != nil {
		return pricing.Quote{}, apperr.ValidationWrap(err, "cannot prorate class %s", classID)
	}
	if !q.CategoryMapped {
		s.logger.WithFields(logrus.Fields{"class_id": classID, "category": c.Category}).
			Warn("Unmapped class category priced with the advanced tier")
	}
	return q, nil
}
