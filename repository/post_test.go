package repository

import (
	"context"
	"testing"

	"whisperwall/database"
	"whisperwall/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupRepos(t *testing.T) (*gorm.DB, PostRepository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db, NewPostRepository(db)
}

func seedPost(t *testing.T, repo PostRepository, status string, hidden bool) *models.Post {
	t.Helper()
	post := &models.Post{
		Title:        "t",
		Content:      "c",
		Author:       "alice",
		RealAuthorID: 1,
		Status:       status,
		IsHidden:     hidden,
	}
	require.NoError(t, repo.Create(context.Background(), post))
	return post
}

func TestListVisible_FiltersStatusAndHidden(t *testing.T) {
	_, repo := setupRepos(t)
	ctx := context.Background()

	visible := seedPost(t, repo, models.StatusApproved, false)
	seedPost(t, repo, models.StatusApproved, true)
	seedPost(t, repo, models.StatusPending, false)
	seedPost(t, repo, models.StatusRejected, false)

	posts, err := repo.ListVisible(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, visible.ID, posts[0].ID)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestToggleLike_SessionSignal(t *testing.T) {
	_, repo := setupRepos(t)
	ctx := context.Background()
	post := seedPost(t, repo, models.StatusApproved, false)

	anon := LikerIdentity{SessionID: "sess-1", IPAddress: "10.0.0.1"}

	result, err := repo.ToggleLike(ctx, post.ID, anon)
	require.NoError(t, err)
	assert.Equal(t, "liked", result.Action)
	assert.Equal(t, 1, result.Likes)

	// A different session on the same IP is a distinct actor.
	other := LikerIdentity{SessionID: "sess-2", IPAddress: "10.0.0.1"}
	result, err = repo.ToggleLike(ctx, post.ID, other)
	require.NoError(t, err)
	assert.Equal(t, "liked", result.Action)
	assert.Equal(t, 2, result.Likes)

	// Toggling back down.
	result, err = repo.ToggleLike(ctx, post.ID, anon)
	require.NoError(t, err)
	assert.Equal(t, "unliked", result.Action)
	assert.Equal(t, 1, result.Likes)

	liked, err := repo.HasLiked(ctx, post.ID, anon)
	require.NoError(t, err)
	assert.False(t, liked)
	liked, err = repo.HasLiked(ctx, post.ID, other)
	require.NoError(t, err)
	assert.True(t, liked)
}

func TestToggleLike_UserAndSessionDoNotCollide(t *testing.T) {
	_, repo := setupRepos(t)
	ctx := context.Background()
	post := seedPost(t, repo, models.StatusApproved, false)

	userID := uint(1)
	user := LikerIdentity{UserID: &userID}
	anon := LikerIdentity{SessionID: "sess-1", IPAddress: "10.0.0.1"}

	result, err := repo.ToggleLike(ctx, post.ID, user)
	require.NoError(t, err)
	require.Equal(t, "liked", result.Action)

	result, err = repo.ToggleLike(ctx, post.ID, anon)
	require.NoError(t, err)
	assert.Equal(t, "liked", result.Action)
	assert.Equal(t, 2, result.Likes)
}

func TestToggleLike_CounterNeverNegative(t *testing.T) {
	db, repo := setupRepos(t)
	ctx := context.Background()
	post := seedPost(t, repo, models.StatusApproved, false)

	userID := uint(1)
	liker := LikerIdentity{UserID: &userID}

	_, err := repo.ToggleLike(ctx, post.ID, liker)
	require.NoError(t, err)

	// Simulate a drifted counter: the unlike must clamp at zero.
	require.NoError(t, db.Model(&models.Post{}).Where("id = ?", post.ID).
		Update("likes", 0).Error)

	result, err := repo.ToggleLike(ctx, post.ID, liker)
	require.NoError(t, err)
	assert.Equal(t, "unliked", result.Action)
	assert.Equal(t, 0, result.Likes)
}

func TestIncrementViews(t *testing.T) {
	_, repo := setupRepos(t)
	ctx := context.Background()
	post := seedPost(t, repo, models.StatusApproved, false)

	require.NoError(t, repo.IncrementViews(ctx, post.ID))
	require.NoError(t, repo.IncrementViews(ctx, post.ID))

	got, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Views)
}

func TestDeanonymize_ResolvesAuthor(t *testing.T) {
	db, repo := setupRepos(t)
	ctx := context.Background()

	author := models.User{Username: "alice", Email: "alice@example.com", Password: "x"}
	require.NoError(t, db.Create(&author).Error)

	post := &models.Post{
		Title: "t", Content: "c", Author: models.AnonymousAuthor,
		RealAuthorID: author.ID, IsAnonymous: true, Status: models.StatusApproved,
	}
	require.NoError(t, repo.Create(ctx, post))

	result, err := repo.Deanonymize(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", result.RealAuthorName)
	assert.Equal(t, "alice@example.com", result.RealAuthorEmail)
}
