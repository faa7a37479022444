package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"school_portal_core/internal/domain/class"
	"school_portal_core/internal/domain/notification"
	"school_portal_core/internal/domain/payroll"
	"school_portal_core/internal/domain/referral"
	"school_portal_core/internal/domain/reportcard"
	"school_portal_core/internal/domain/term"
	"school_portal_core/internal/infra/email"
)

func testLogger() (*logrus.Entry, *test.Hook) {
	l, hook := test.NewNullLogger()
	l.SetLevel(logrus.DebugLevel)
	return logrus.NewEntry(l), hook
}

// memReferrals emulates the unique constraints and guarded updates of the
// referral tables.
type memReferrals struct {
	mu        sync.Mutex
	byUser    map[string]*referral.Code
	byCode    map[string]*referral.Code
	referrals map[string]*referral.Referral
	seq       int
	// beforeInsert runs (unlocked) before InsertCode takes the lock.
	beforeInsert func(c *referral.Code)
}

func newMemReferrals() *memReferrals {
	return &memReferrals{
		byUser:    map[string]*referral.Code{},
		byCode:    map[string]*referral.Code{},
		referrals: map[string]*referral.Referral{},
	}
}

func (m *memReferrals) GetCodeByUser(_ context.Context, userID string) (*referral.Code, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.byUser[userID]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, referral.ErrCodeNotFound
}

func (m *memReferrals) GetCodeByValue(_ context.Context, code string) (*referral.Code, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.byCode[code]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, referral.ErrCodeNotFound
}

func (m *memReferrals) InsertCode(_ context.Context, c *referral.Code) error {
	if m.beforeInsert != nil {
		m.beforeInsert(c)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byUser[c.UserID]; ok {
		return referral.ErrCodeConflict
	}
	if _, ok := m.byCode[c.Code]; ok {
		return referral.ErrCodeConflict
	}
	cp := *c
	m.byUser[c.UserID] = &cp
	m.byCode[c.Code] = &cp
	return nil
}

func (m *memReferrals) Create(_ context.Context, r *referral.Referral) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	if r.ID == "" {
		r.ID = fmt.Sprintf("ref-%03d", m.seq)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Date(2024, 1, 1, 0, 0, m.seq, 0, time.UTC)
	}
	cp := *r
	m.referrals[r.ID] = &cp
	return nil
}

func (m *memReferrals) GetByID(_ context.Context, id string) (*referral.Referral, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.referrals[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, referral.ErrReferralNotFound
}

func (m *memReferrals) oldest(match func(r *referral.Referral) bool) (*referral.Referral, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found []*referral.Referral
	for _, r := range m.referrals {
		if match(r) {
			found = append(found, r)
		}
	}
	if len(found) == 0 {
		return nil, referral.ErrReferralNotFound
	}
	sort.Slice(found, func(i, j int) bool {
		if !found[i].CreatedAt.Equal(found[j].CreatedAt) {
			return found[i].CreatedAt.Before(found[j].CreatedAt)
		}
		return found[i].ID < found[j].ID
	})
	cp := *found[0]
	return &cp, nil
}

func (m *memReferrals) OldestPendingForEmail(_ context.Context, email string) (*referral.Referral, error) {
	return m.oldest(func(r *referral.Referral) bool {
		return r.Status == referral.StatusPending && strings.EqualFold(r.ReferredEmail, email)
	})
}

func (m *memReferrals) OldestRegisteredForStudent(_ context.Context, studentID string) (*referral.Referral, error) {
	return m.oldest(func(r *referral.Referral) bool {
		return r.Status == referral.StatusRegistered && r.ReferredStudentID != nil && *r.ReferredStudentID == studentID
	})
}

func (m *memReferrals) cas(id string, from referral.Status, apply func(r *referral.Referral)) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.referrals[id]
	if !ok || r.Status != from {
		return false, nil
	}
	apply(r)
	return true, nil
}

func (m *memReferrals) MarkRegistered(_ context.Context, id, studentID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.referrals[id]
	if !ok || r.Status != referral.StatusPending {
		return false, nil
	}
	for _, other := range m.referrals {
		if other.ReferredStudentID != nil && *other.ReferredStudentID == studentID && other.Status != referral.StatusPending {
			return false, nil
		}
	}
	r.Status = referral.StatusRegistered
	r.ReferredStudentID = &studentID
	r.RegisteredAt = &at
	return true, nil
}

func (m *memReferrals) MarkConverted(_ context.Context, id string, amount int64, at time.Time) (bool, error) {
	return m.cas(id, referral.StatusRegistered, func(r *referral.Referral) {
		r.Status = referral.StatusConverted
		r.CreditAmount = amount
		r.ConvertedAt = &at
	})
}

func (m *memReferrals) MarkCredited(_ context.Context, id string, at time.Time) (bool, error) {
	return m.cas(id, referral.StatusConverted, func(r *referral.Referral) {
		r.Status = referral.StatusCredited
		r.CreditedAt = &at
	})
}

func (m *memReferrals) countStatus(s referral.Status) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.referrals {
		if r.Status == s {
			n++
		}
	}
	return n
}

// sequenceGenerator returns codes in order and repeats the last one.
type sequenceGenerator struct {
	mu    sync.Mutex
	codes []string
	calls int
}

func (g *sequenceGenerator) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.calls
	if i >= len(g.codes) {
		i = len(g.codes) - 1
	}
	g.calls++
	return g.codes[i], nil
}

// memReportCards emulates status-guarded report card updates.
type memReportCards struct {
	mu    sync.Mutex
	cards map[string]*reportcard.ReportCard
}

func newMemReportCards(cards ...reportcard.ReportCard) *memReportCards {
	m := &memReportCards{cards: map[string]*reportcard.ReportCard{}}
	for i := range cards {
		c := cards[i]
		m.cards[c.ID] = &c
	}
	return m
}

func (m *memReportCards) GetByID(_ context.Context, id string) (*reportcard.ReportCard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.cards[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, reportcard.ErrReportCardNotFound
}

func (m *memReportCards) ApplyTransition(_ context.Context, tr reportcard.Transition) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cards[tr.ID]
	if !ok || c.Status != tr.From {
		return false, nil
	}
	at := tr.At
	c.Status = tr.To
	switch tr.To {
	case reportcard.StatusSubmitted:
		c.FilePath = tr.FilePath
		c.SubmittedAt = &at
	default:
		c.ReviewerID = tr.ReviewerID
		c.ReviewNote = tr.ReviewNote
		c.ReviewedAt = &at
	}
	return true, nil
}

// recordingSender captures messages and fails for configured recipients.
type recordingSender struct {
	mu     sync.Mutex
	sent   []email.Message
	failTo map[string]bool
}

func (r *recordingSender) Send(_ context.Context, msg email.Message) (email.Result, error) {
	if err := email.Validate(msg); err != nil {
		return email.Result{}, err
	}
	if r.failTo[msg.To[0]] {
		return email.Result{}, fmt.Errorf("mailbox %s unavailable", msg.To[0])
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return email.Result{MessageID: fmt.Sprintf("m-%d", len(r.sent))}, nil
}

func (r *recordingSender) messages() []email.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]email.Message, len(r.sent))
	copy(out, r.sent)
	return out
}

type memClasses struct {
	classes    []class.Class
	recipients map[string][]class.Recipient
}

func (m *memClasses) GetByID(_ context.Context, id string) (*class.Class, error) {
	for _, c := range m.classes {
		if c.ID == id {
			cp := c
			return &cp, nil
		}
	}
	return nil, class.ErrClassNotFound
}

func (m *memClasses) ListActive(context.Context) ([]class.Class, error) {
	var out []class.Class
	for _, c := range m.classes {
		if c.Active {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memClasses) ListRecipients(_ context.Context, classID string) ([]class.Recipient, error) {
	return m.recipients[classID], nil
}

type memTerms map[string]term.Term

func (m memTerms) GetByID(_ context.Context, id string) (*term.Term, error) {
	if t, ok := m[id]; ok {
		return &t, nil
	}
	return nil, term.ErrTermNotFound
}

type memClaims struct {
	mu     sync.Mutex
	claims map[notification.ReminderClaim]bool
}

func newMemClaims() *memClaims {
	return &memClaims{claims: map[notification.ReminderClaim]bool{}}
}

func claimKey(c notification.ReminderClaim) notification.ReminderClaim {
	c.ClaimedAt = time.Time{}
	return c
}

func (m *memClaims) ClaimReminder(_ context.Context, c notification.ReminderClaim) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := claimKey(c)
	if m.claims[k] {
		return false, nil
	}
	m.claims[k] = true
	return true, nil
}

func (m *memClaims) ReleaseReminder(_ context.Context, c notification.ReminderClaim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claims, claimKey(c))
	return nil
}

type memPayroll struct {
	records []payroll.SessionRecord
	err     error
}

func (m *memPayroll) ListSessions(_ context.Context, _ payroll.DateRange, _ string) ([]payroll.SessionRecord, error) {
	return m.records, m.err
}

type recordingTelegram struct {
	mu       sync.Mutex
	messages map[int64][]string
	err      error
}

func (r *recordingTelegram) SendMessage(chatID int64, text string) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.messages == nil {
		r.messages = map[int64][]string{}
	}
	r.messages[chatID] = append(r.messages[chatID], text)
	return nil
}
