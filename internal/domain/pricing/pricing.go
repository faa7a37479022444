package pricing

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"school_portal_core/internal/domain/term"
)

var ErrZeroLengthTerm = errors.New("total weeks must be greater than zero")

// TierKey identifies a tuition tier.
type TierKey string

const (
	TierNoviceIntermediate TierKey = "novice-intermediate"
	TierPublicSpeaking     TierKey = "public-speaking"
	TierWorldScholarsCup   TierKey = "world-scholars-cup"
	TierAdvanced           TierKey = "advanced"
)

// Tier is a base tuition price in whole CAD.
type Tier struct {
	Key          TierKey
	BaseCADPrice int64
}

var tiers = map[TierKey]Tier{
	TierNoviceIntermediate: {Key: TierNoviceIntermediate, BaseCADPrice: 300},
	TierPublicSpeaking:     {Key: TierPublicSpeaking, BaseCADPrice: 280},
	TierWorldScholarsCup:   {Key: TierWorldScholarsCup, BaseCADPrice: 350},
	TierAdvanced:           {Key: TierAdvanced, BaseCADPrice: 400},
}

// categoryTiers lists every known class category. Categories absent here
// fall back to TierAdvanced in TierForClassCategory.
var categoryTiers = map[string]TierKey{
	"novice":             TierNoviceIntermediate,
	"intermediate":       TierNoviceIntermediate,
	"public-speaking":    TierPublicSpeaking,
	"world-scholars-cup": TierWorldScholarsCup,
	"advanced":           TierAdvanced,
	"senior":             TierAdvanced,
}

// TierByKey returns the tier for key.
func TierByKey(key TierKey) (Tier, bool) {
	t, ok := tiers[key]
	return t, ok
}

// TierForClassCategory maps a class category to its tier. Unknown categories
// get the advanced tier and mapped=false so callers can log the fallback.
func TierForClassCategory(category string) (tier Tier, mapped bool) {
	key, ok := categoryTiers[normalizeCategory(category)]
	if !ok {
		return tiers[TierAdvanced], false
	}
	return tiers[key], true
}

func normalizeCategory(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	c = strings.NewReplacer("_", "-", " ", "-").Replace(c)
	return c
}

// WeeksRemainingInTerm counts whole weeks from asOf to termEnd, floored and
// clamped at 0 once the term has ended.
func WeeksRemainingInTerm(termEnd, asOf time.Time) int {
	days := term.DaysBetween(asOf, termEnd)
	if days <= 0 {
		return 0
	}
	return days / 7
}

// ProratedPrice scales fullPrice by remainingWeeks/totalWeeks, rounded half
// away from zero to whole units. The result is always within [0, fullPrice].
func ProratedPrice(fullPrice int64, totalWeeks, remainingWeeks int) (int64, error) {
	if totalWeeks <= 0 {
		return 0, ErrZeroLengthTerm
	}
	if remainingWeeks >= totalWeeks {
		return fullPrice, nil
	}
	if remainingWeeks <= 0 || fullPrice <= 0 {
		return 0, nil
	}
	price := decimal.NewFromInt(fullPrice).
		Mul(decimal.NewFromInt(int64(remainingWeeks))).
		Div(decimal.NewFromInt(int64(totalWeeks))).
		Round(0).
		IntPart()
	if price > fullPrice {
		return fullPrice, nil
	}
	return price, nil
}

// Quote is the price a student joining on AsOf pays for a class.
type Quote struct {
	Tier           Tier
	CategoryMapped bool
	TotalWeeks     int
	RemainingWeeks int
	FullPrice      int64
	Price          int64
	AsOf           time.Time
}

// Prorated reports whether the quote is below the full tier price.
func (q Quote) Prorated() bool { return q.Price < q.FullPrice }

// QuoteFor composes tier lookup and proration for category in t as of asOf.
func QuoteFor(category string, t term.Term, asOf time.Time) (Quote, error) {
	tier, mapped := TierForClassCategory(category)
	total := t.TotalWeeks()
	remaining := WeeksRemainingInTerm(t.EndDate, asOf)
	if term.Day(asOf).Before(term.Day(t.StartDate)) {
		remaining = total
	}
	price, err := ProratedPrice(tier.BaseCADPrice, total, remaining)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		Tier:           tier,
		CategoryMapped: mapped,
		TotalWeeks:     total,
		RemainingWeeks: remaining,
		FullPrice:      tier.BaseCADPrice,
		Price:          price,
		AsOf:           asOf,
	}, nil
}
