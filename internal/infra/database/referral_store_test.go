package database

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"school_portal_core/internal/domain/referral"
)

func TestReferralStoreCodes(t *testing.T) {
	ctx := context.Background()
	store := NewReferralStore(openTestDB(t))

	_, err := store.GetCodeByUser(ctx, "u1")
	assert.ErrorIs(t, err, referral.ErrCodeNotFound)

	created := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.InsertCode(ctx, &referral.Code{UserID: "u1", Code: "REF-ABCDEF", CreatedAt: created}))

	got, err := store.GetCodeByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "REF-ABCDEF", got.Code)
	assert.True(t, created.Equal(got.CreatedAt))

	byValue, err := store.GetCodeByValue(ctx, " ref-abcdef ")
	require.NoError(t, err)
	assert.Equal(t, "u1", byValue.UserID)

	t.Run("second code for same user conflicts", func(t *testing.T) {
		err := store.InsertCode(ctx, &referral.Code{UserID: "u1", Code: "REF-GHJKMN"})
		assert.ErrorIs(t, err, referral.ErrCodeConflict)
		assert.ErrorIs(t, err, ErrUniqueViolation)
	})

	t.Run("same code for another user conflicts", func(t *testing.T) {
		err := store.InsertCode(ctx, &referral.Code{UserID: "u2", Code: "REF-ABCDEF"})
		assert.ErrorIs(t, err, referral.ErrCodeConflict)
	})
}

func TestReferralStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewReferralStore(openTestDB(t))
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	older := &referral.Referral{ReferrerID: "u1", ReferredEmail: "Kid@Example.com", CreatedAt: base}
	newer := &referral.Referral{ReferrerID: "u2", ReferredEmail: "kid@example.com", CreatedAt: base.Add(time.Hour)}
	require.NoError(t, store.Create(ctx, newer))
	require.NoError(t, store.Create(ctx, older))
	require.NotEmpty(t, older.ID)
	assert.Equal(t, referral.StatusPending, older.Status)

	pending, err := store.OldestPendingForEmail(ctx, "KID@example.com")
	require.NoError(t, err)
	assert.Equal(t, older.ID, pending.ID)

	ok, err := store.MarkRegistered(ctx, older.ID, "s1", base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.MarkRegistered(ctx, older.ID, "s1", base.Add(3*time.Hour))
	require.NoError(t, err)
	assert.False(t, ok, "already registered")

	registered, err := store.OldestRegisteredForStudent(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, older.ID, registered.ID)
	require.NotNil(t, registered.ReferredStudentID)
	assert.Equal(t, "s1", *registered.ReferredStudentID)
	require.NotNil(t, registered.RegisteredAt)

	ok, err = store.MarkCredited(ctx, older.ID, base)
	require.NoError(t, err)
	assert.False(t, ok, "cannot credit before conversion")

	ok, err = store.MarkConverted(ctx, older.ID, 50, base.Add(4*time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)

	converted, err := store.GetByID(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, referral.StatusConverted, converted.Status)
	assert.Equal(t, int64(50), converted.CreditAmount)
	require.NotNil(t, converted.ConvertedAt)
	assert.True(t, base.Add(4*time.Hour).Equal(*converted.ConvertedAt))

	_, err = store.OldestRegisteredForStudent(ctx, "s1")
	assert.ErrorIs(t, err, referral.ErrReferralNotFound)

	ok, err = store.MarkCredited(ctx, older.ID, base.Add(5*time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, referral.ErrReferralNotFound)
}

func TestReferralStoreMarkConvertedOnlyOnce(t *testing.T) {
	ctx := context.Background()
	store := NewReferralStore(openTestDB(t))
	student := "s1"
	r := &referral.Referral{ReferrerID: "u1", ReferredEmail: "a@b.c", ReferredStudentID: &student, Status: referral.StatusRegistered}
	require.NoError(t, store.Create(ctx, r))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.MarkConverted(ctx, r.ID, 50, time.Now())
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestReferralStoreOneRegisteredReferralPerStudent(t *testing.T) {
	ctx := context.Background()
	store := NewReferralStore(openTestDB(t))
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	first := &referral.Referral{ReferrerID: "u1", ReferredEmail: "kid@example.com", CreatedAt: base}
	second := &referral.Referral{ReferrerID: "u2", ReferredEmail: "kid@example.com", CreatedAt: base.Add(time.Hour)}
	require.NoError(t, store.Create(ctx, first))
	require.NoError(t, store.Create(ctx, second))

	ok, err := store.MarkRegistered(ctx, first.ID, "s1", base.Add(2*time.Hour))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.MarkRegistered(ctx, second.ID, "s1", base.Add(3*time.Hour))
	require.NoError(t, err)
	assert.False(t, ok, "student already holds a registered referral")

	got, err := store.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, referral.StatusPending, got.Status)
	assert.Nil(t, got.ReferredStudentID)

	ok, err = store.MarkConverted(ctx, first.ID, 50, base.Add(4*time.Hour))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.MarkRegistered(ctx, second.ID, "s1", base.Add(5*time.Hour))
	require.NoError(t, err)
	assert.False(t, ok, "converted referral still counts")

	ok, err = store.MarkRegistered(ctx, second.ID, "s2", base.Add(5*time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)

	t.Run("unique index rejects a second registered row", func(t *testing.T) {
		student := "s2"
		err := store.Create(ctx, &referral.Referral{
			ReferrerID: "u3", ReferredEmail: "kid2@example.com",
			ReferredStudentID: &student, Status: referral.StatusRegistered,
		})
		require.Error(t, err)
		assert.True(t, isUniqueViolation(err))
	})
}
