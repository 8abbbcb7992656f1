package repository

import (
	"context"
	"errors"
	"testing"

	"whisperwall/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserCreate_DuplicateIsValidationError(t *testing.T) {
	db, _ := setupRepos(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	first := &models.User{Username: "alice", Email: "alice@example.com", Password: "x"}
	require.NoError(t, repo.Create(ctx, first))

	// A racing insert lands on the unique index after the handler's
	// lookup passed; the caller must still see a validation error, not a
	// server fault.
	tests := []struct {
		name string
		user *models.User
	}{
		{"same email", &models.User{Username: "alice2", Email: "alice@example.com", Password: "x"}},
		{"same username", &models.User{Username: "alice", Email: "alice2@example.com", Password: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.Create(ctx, tt.user)
			require.Error(t, err)

			var appErr *models.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, models.CodeValidation, appErr.Code)
		})
	}
}

func TestUserDelete_CascadesOwnedContent(t *testing.T) {
	db, postRepo := setupRepos(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := &models.User{Username: "bob", Email: "bob@example.com", Password: "x"}
	require.NoError(t, repo.Create(ctx, user))

	post := &models.Post{
		Title: "t", Content: "c", Author: models.AnonymousAuthor,
		RealAuthorID: user.ID, IsAnonymous: true, Status: models.StatusApproved,
	}
	require.NoError(t, postRepo.Create(ctx, post))
	require.NoError(t, db.Create(&models.Comment{
		PostID: post.ID, Content: "c", Author: models.AnonymousAuthor,
		RealAuthorID: user.ID, IsAnonymous: true,
	}).Error)
	_, err := postRepo.ToggleLike(ctx, post.ID, LikerIdentity{UserID: &user.ID})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, user.ID))

	for _, model := range []any{&models.User{}, &models.Post{}, &models.Comment{}, &models.PostLike{}} {
		var count int64
		require.NoError(t, db.Model(model).Count(&count).Error)
		assert.Zero(t, count)
	}
}
