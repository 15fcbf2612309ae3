//go:build integration

package repository_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raisedeck/accesslink/internal/domain/access"
	"github.com/raisedeck/accesslink/internal/repository"
)

func setupDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Fatal("DATABASE_URL must be set for integration tests")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect db: %v", err)
	}

	return pool
}

func newRepo(t *testing.T, db *pgxpool.Pool) *repository.PostgresAccessRepo {
	t.Helper()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return repository.NewPostgresAccessRepo(db, node)
}

func cleanupRecord(t *testing.T, db *pgxpool.Pool, uid string) {
	t.Helper()
	t.Cleanup(func() {
		_, _ = db.Exec(context.Background(), `DELETE FROM access_records WHERE uid = $1`, uid)
	})
}

func TestAccessRepo_GetMissingReturnsDefaults_Integration(t *testing.T) {
	db := setupDB(t)
	defer db.Close()
	repo := newRepo(t, db)

	rec, err := repo.Get(context.Background(), "it-never-seen")
	assert.NoError(t, err)
	assert.Equal(t, "it-never-seen", rec.UID)
	assert.Zero(t, rec.ID)
	assert.Empty(t, rec.SourceControl.Selected)
	assert.Empty(t, rec.SourceControl.Providers)
	assert.True(t, rec.CreatedAt.IsZero())
}

func TestAccessRepo_UpsertCreatedAtStable_Integration(t *testing.T) {
	db := setupDB(t)
	defer db.Close()
	repo := newRepo(t, db)
	ctx := context.Background()

	uid := "it-upsert-stable"
	cleanupRecord(t, db, uid)

	rec := access.EmptyRecord(uid)
	rec.Notes = "first"
	first, err := repo.Upsert(ctx, rec)
	require.NoError(t, err)
	assert.NotZero(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())
	assert.WithinDuration(t, first.CreatedAt, first.UpdatedAt, time.Second)

	time.Sleep(10 * time.Millisecond)

	first.Notes = "second"
	second, err := repo.Upsert(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "second", second.Notes)
	// created_at is pinned on first insert; only updated_at moves.
	assert.True(t, second.CreatedAt.Equal(first.CreatedAt))
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt) || second.UpdatedAt.Equal(first.UpdatedAt))
}

func TestAccessRepo_SectionsRoundTrip_Integration(t *testing.T) {
	db := setupDB(t)
	defer db.Close()
	repo := newRepo(t, db)
	ctx := context.Background()

	uid := "it-sections"
	cleanupRecord(t, db, uid)

	rec := access.EmptyRecord(uid)
	rec.SourceControl = access.MarkProviderAuthorized(nil, "github", access.ProviderGrant{
		"access_token": "tok",
	}, time.Now())

	_, err := repo.Upsert(ctx, rec)
	require.NoError(t, err)

	got, err := repo.Get(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, []string{"github"}, got.SourceControl.Selected)
	grant := got.SourceControl.Providers["github"]
	assert.True(t, grant.Authorized())
	assert.Equal(t, "tok", grant["access_token"])
}

func TestAccessRepo_InTxRollsBackOnError_Integration(t *testing.T) {
	db := setupDB(t)
	defer db.Close()
	repo := newRepo(t, db)
	ctx := context.Background()

	uid := "it-rollback"
	cleanupRecord(t, db, uid)

	boom := errors.New("boom")
	err := repo.InTx(ctx, func(store repository.AccessStore) error {
		rec := access.EmptyRecord(uid)
		rec.Notes = "should not survive"
		if _, err := store.Upsert(ctx, rec); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := repo.Get(ctx, uid)
	require.NoError(t, err)
	assert.Zero(t, got.ID, "write inside a failed transaction must not persist")
	assert.Empty(t, got.Notes)
}

func TestAccessRepo_InTxCommits_Integration(t *testing.T) {
	db := setupDB(t)
	defer db.Close()
	repo := newRepo(t, db)
	ctx := context.Background()

	uid := "it-commit"
	cleanupRecord(t, db, uid)

	err := repo.InTx(ctx, func(store repository.AccessStore) error {
		rec := access.EmptyRecord(uid)
		rec.Notes = "committed"
		_, err := store.Upsert(ctx, rec)
		return err
	})
	require.NoError(t, err)

	got, err := repo.Get(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, "committed", got.Notes)
	assert.NotZero(t, got.ID)
}
