package repository

import (
	"context"
	"errors"

	"whisperwall/models"

	"gorm.io/gorm"
)

// LikeResult describes the outcome of a like toggle.
type LikeResult struct {
	Action    string `json:"action"`
	Likes     int    `json:"likes"`
	UserLiked bool   `json:"userLiked"`
}

// LikerIdentity is the identity signal a like is keyed by: the user ID
// for authenticated callers, else the (session, IP) pair.
type LikerIdentity struct {
	UserID    *uint
	SessionID string
	IPAddress string
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	ListVisible(ctx context.Context) ([]models.Post, error)
	ListAll(ctx context.Context) ([]models.Post, error)
	ListByRealAuthor(ctx context.Context, userID uint) ([]models.Post, error)
	UpdateFields(ctx context.Context, id uint, fields map[string]any) error
	Delete(ctx context.Context, id uint) error
	IncrementViews(ctx context.Context, id uint) error
	ToggleLike(ctx context.Context, postID uint, liker LikerIdentity) (*LikeResult, error)
	HasLiked(ctx context.Context, postID uint, liker LikerIdentity) (bool, error)
	Deanonymize(ctx context.Context, id uint) (*models.DeanonymizedPost, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

// ListVisible returns the posts shown on public paths: approved and not
// hidden.
func (r *postRepository) ListVisible(ctx context.Context) ([]models.Post, error) {
	var posts []models.Post
	if err := r.db.WithContext(ctx).
		Where("status = ? AND is_hidden = ?", models.StatusApproved, false).
		Order("created_at DESC").
		Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) ListAll(ctx context.Context) ([]models.Post, error) {
	var posts []models.Post
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) ListByRealAuthor(ctx context.Context, userID uint) ([]models.Post, error) {
	var posts []models.Post
	if err := r.db.WithContext(ctx).
		Where("real_author_id = ?", userID).
		Order("created_at DESC").
		Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) UpdateFields(ctx context.Context, id uint, fields map[string]any) error {
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Delete removes a post together with its comments and likes.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.PostLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Post{}, id).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// IncrementViews bumps the view counter as a single atomic statement.
func (r *postRepository) IncrementViews(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + 1")).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func likeScope(q *gorm.DB, postID uint, liker LikerIdentity) *gorm.DB {
	q = q.Where("post_id = ?", postID)
	if liker.UserID != nil {
		return q.Where("user_id = ?", *liker.UserID)
	}
	return q.Where("session_id = ? AND ip_address = ?", liker.SessionID, liker.IPAddress)
}

// ToggleLike inserts or removes the PostLike row for the identity signal
// and adjusts the denormalized counter in the same transaction, clamped
// at zero.
func (r *postRepository) ToggleLike(ctx context.Context, postID uint, liker LikerIdentity) (*LikeResult, error) {
	result := &LikeResult{}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.PostLike
		err := likeScope(tx, postID, liker).First(&existing).Error

		switch {
		case err == nil:
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.Post{}).
				Where("id = ? AND likes > 0", postID).
				UpdateColumn("likes", gorm.Expr("likes - 1")).Error; err != nil {
				return err
			}
			result.Action = "unliked"
			result.UserLiked = false

		case errors.Is(err, gorm.ErrRecordNotFound):
			like := models.PostLike{PostID: postID, UserID: liker.UserID}
			if liker.UserID == nil {
				sessionID, ipAddress := liker.SessionID, liker.IPAddress
				like.SessionID = &sessionID
				like.IPAddress = &ipAddress
			}
			if err := tx.Create(&like).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.Post{}).
				Where("id = ?", postID).
				UpdateColumn("likes", gorm.Expr("likes + 1")).Error; err != nil {
				return err
			}
			result.Action = "liked"
			result.UserLiked = true

		default:
			return err
		}

		var likes int
		if err := tx.Model(&models.Post{}).
			Where("id = ?", postID).
			Pluck("likes", &likes).Error; err != nil {
			return err
		}
		result.Likes = likes
		return nil
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return result, nil
}

func (r *postRepository) HasLiked(ctx context.Context, postID uint, liker LikerIdentity) (bool, error) {
	var count int64
	if err := likeScope(r.db.WithContext(ctx).Model(&models.PostLike{}), postID, liker).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// Deanonymize resolves the post's retained real author.
func (r *postRepository) Deanonymize(ctx context.Context, id uint) (*models.DeanonymizedPost, error) {
	post, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &models.DeanonymizedPost{Post: *post}
	if post.RealAuthorID != 0 {
		var author models.User
		if err := r.db.WithContext(ctx).First(&author, post.RealAuthorID).Error; err == nil {
			result.RealAuthorName = author.Username
			result.RealAuthorEmail = author.Email
		}
	}
	return result, nil
}
