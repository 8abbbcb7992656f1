package models

import (
	"time"
)

// AnonymousAuthor is the public author label for anonymous content.
const AnonymousAuthor = "Anonymous"

// Post statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Post is a forum post. Author and AuthorID are the public presentation
// and are suppressed when IsAnonymous is set; RealAuthorID is always
// populated and only ever surfaced through admin paths.
type Post struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Title        string `gorm:"not null" json:"title"`
	Content      string `gorm:"not null" json:"content"`
	Author       string `json:"author"`
	AuthorID     *uint  `json:"authorId"`
	RealAuthorID uint   `gorm:"not null;index" json:"realAuthorId"`
	IsAnonymous  bool   `gorm:"not null;default:false" json:"isAnonymous"`
	Status       string `gorm:"not null;default:pending" json:"status"`

	// Identifying metadata captured at publish time.
	IPAddress          string `json:"ipAddress,omitempty"`
	UserAgent          string `json:"userAgent,omitempty"`
	BrowserFingerprint string `json:"browserFingerprint,omitempty"`
	SessionID          string `json:"sessionId,omitempty"`

	Likes int `gorm:"not null;default:0" json:"likes"`
	Views int `gorm:"not null;default:0" json:"views"`

	IsHidden  bool `gorm:"not null;default:false" json:"isHidden"`
	IsFlagged bool `gorm:"not null;default:false" json:"isFlagged"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PostView is the public projection of a post. It structurally cannot
// carry the real author or any identifying metadata.
type PostView struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Author      string    `json:"author"`
	AuthorID    *uint     `json:"authorId"`
	IsAnonymous bool      `json:"isAnonymous"`
	Likes       int       `json:"likes"`
	Views       int       `json:"views"`
	UserLiked   bool      `json:"userLiked"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Public returns the post's public projection with the caller's like state.
func (p *Post) Public(userLiked bool) PostView {
	return PostView{
		ID:          p.ID,
		Title:       p.Title,
		Content:     p.Content,
		Author:      p.Author,
		AuthorID:    p.AuthorID,
		IsAnonymous: p.IsAnonymous,
		Likes:       p.Likes,
		Views:       p.Views,
		UserLiked:   userLiked,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
