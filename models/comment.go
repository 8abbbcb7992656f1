package models

import (
	"time"
)

// Comment is a comment on a post. Same anonymity contract as Post:
// public author fields suppressed when anonymous, real author retained.
type Comment struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	PostID       uint   `gorm:"not null;index" json:"postId"`
	Content      string `gorm:"not null" json:"content"`
	Author       string `gorm:"not null" json:"author"`
	AuthorID     *uint  `json:"authorId"`
	RealAuthorID uint   `gorm:"not null;index" json:"realAuthorId"`
	IsAnonymous  bool   `gorm:"not null;default:false" json:"isAnonymous"`

	IPAddress          string `json:"ipAddress,omitempty"`
	UserAgent          string `json:"userAgent,omitempty"`
	BrowserFingerprint string `json:"browserFingerprint,omitempty"`
	SessionID          string `json:"sessionId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Post Post `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
}

// CommentView is the public projection of a comment.
type CommentView struct {
	ID          uint      `json:"id"`
	PostID      uint      `json:"postId"`
	Content     string    `json:"content"`
	Author      string    `json:"author"`
	AuthorID    *uint     `json:"authorId"`
	IsAnonymous bool      `json:"isAnonymous"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Public returns the comment's public projection.
func (c *Comment) Public() CommentView {
	return CommentView{
		ID:          c.ID,
		PostID:      c.PostID,
		Content:     c.Content,
		Author:      c.Author,
		AuthorID:    c.AuthorID,
		IsAnonymous: c.IsAnonymous,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}
