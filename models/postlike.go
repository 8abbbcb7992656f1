package models

import (
	"time"
)

// PostLike records one like per actor per post. The actor is either an
// authenticated user (UserID set, session fields nil) or an anonymous
// caller identified by a (SessionID, IPAddress) pair. The two unique
// indexes are the de-duplication invariant; NULLs keep the keys from
// colliding across actor kinds.
type PostLike struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	PostID    uint    `gorm:"not null;uniqueIndex:idx_like_post_user;uniqueIndex:idx_like_post_session" json:"postId"`
	UserID    *uint   `gorm:"uniqueIndex:idx_like_post_user" json:"userId"`
	SessionID *string `gorm:"uniqueIndex:idx_like_post_session" json:"sessionId"`
	IPAddress *string `gorm:"uniqueIndex:idx_like_post_session" json:"ipAddress"`

	CreatedAt time.Time `json:"createdAt"`

	Post Post `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
}
