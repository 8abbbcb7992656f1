package server

import (
	"math"
	"time"

	"whisperwall/models"

	"github.com/gofiber/fiber/v2"
)

// adminUserEntry is a user as shown in the admin listing, with the
// moderation heuristics attached.
type adminUserEntry struct {
	models.User
	RiskScore          int `json:"riskScore"`
	PostCount          int `json:"postCount"`
	AnonymousPostCount int `json:"anonymousPostCount"`
}

// adminPostEntry is a post as shown in the admin listing: full metadata
// plus the resolved real author.
type adminPostEntry struct {
	models.Post
	AuthorDisplay string `json:"authorDisplay"`
	RealAuthor    string `json:"realAuthor"`
}

type contentStats struct {
	TotalUsers        int64 `json:"totalUsers"`
	TotalPosts        int64 `json:"totalPosts"`
	TotalComments     int64 `json:"totalComments"`
	ApprovedPosts     int64 `json:"approvedPosts"`
	PendingPosts      int64 `json:"pendingPosts"`
	AnonymousPosts    int64 `json:"anonymousPosts"`
	AnonymousComments int64 `json:"anonymousComments"`
}

type securityStats struct {
	TotalUsers     int64     `json:"totalUsers"`
	BlockedUsers   int64     `json:"blockedUsers"`
	PendingUsers   int64     `json:"pendingUsers"`
	HighRiskUsers  int       `json:"highRiskUsers"`
	TotalPosts     int64     `json:"totalPosts"`
	AnonymousPosts int64     `json:"anonymousPosts"`
	HiddenPosts    int64     `json:"hiddenPosts"`
	FlaggedPosts   int64     `json:"flaggedPosts"`
	LastScanTime   time.Time `json:"lastScanTime"`
}

// riskScore is a coarse moderation heuristic built from the user's
// anonymous-posting ratio, account age, and posting rate. It is a
// triage hint, not a real signal.
func riskScore(user *models.User, posts []models.Post) int {
	anonymous := 0
	for i := range posts {
		if posts[i].IsAnonymous {
			anonymous++
		}
	}

	score := 0.0
	if len(posts) > 0 {
		score += float64(anonymous) / float64(len(posts)) * 100 * 0.3
	}

	ageDays := time.Since(user.CreatedAt).Hours() / 24
	switch {
	case ageDays < 7:
		score += 30
	case ageDays < 30:
		score += 15
	}

	postsPerDay := float64(len(posts)) / math.Max(ageDays, 1)
	if postsPerDay > 5 {
		score += 20
	}
	if postsPerDay < 0.1 && ageDays > 7 {
		score += 10
	}

	return int(math.Min(math.Round(score), 100))
}

// AdminStats handles GET /api/admin/stats
func (s *Server) AdminStats(c *fiber.Ctx) error {
	ctx := c.Context()

	var stats contentStats
	err := s.cache.Aside(ctx, "admin:stats", &stats, 30*time.Second, func() error {
		db := s.db.WithContext(ctx)
		queries := []error{
			db.Model(&models.User{}).Count(&stats.TotalUsers).Error,
			db.Model(&models.Post{}).Count(&stats.TotalPosts).Error,
			db.Model(&models.Comment{}).Count(&stats.TotalComments).Error,
			db.Model(&models.Post{}).Where("status = ?", models.StatusApproved).Count(&stats.ApprovedPosts).Error,
			db.Model(&models.Post{}).Where("status = ?", models.StatusPending).Count(&stats.PendingPosts).Error,
			db.Model(&models.Post{}).Where("is_anonymous = ?", true).Count(&stats.AnonymousPosts).Error,
			db.Model(&models.Comment{}).Where("is_anonymous = ?", true).Count(&stats.AnonymousComments).Error,
		}
		for _, qerr := range queries {
			if qerr != nil {
				return models.NewInternalError(qerr)
			}
		}
		return nil
	})
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"stats":   stats,
	})
}

// AdminListUsers handles GET /api/admin/users
func (s *Server) AdminListUsers(c *fiber.Ctx) error {
	ctx := c.Context()

	users, err := s.userRepo.List(ctx)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	entries := make([]adminUserEntry, 0, len(users))
	for i := range users {
		posts, err := s.postRepo.ListByRealAuthor(ctx, users[i].ID)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError, err)
		}

		anonymous := 0
		for j := range posts {
			if posts[j].IsAnonymous {
				anonymous++
			}
		}

		entries = append(entries, adminUserEntry{
			User:               users[i],
			RiskScore:          riskScore(&users[i], posts),
			PostCount:          len(posts),
			AnonymousPostCount: anonymous,
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"users":   entries,
	})
}

// AdminListPendingUsers handles GET /api/admin/users/pending
func (s *Server) AdminListPendingUsers(c *fiber.Ctx) error {
	users, err := s.userRepo.ListPending(c.Context())
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"users":   users,
	})
}

// AdminVerifyUser handles POST /api/admin/users/:id/verify
func (s *Server) AdminVerifyUser(c *fiber.Ctx) error {
	ctx := c.Context()
	admin := c.Locals("user").(*models.User)

	userID, ok := parseIDParam(c)
	if !ok {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid user ID"))
	}

	target, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusNotFound, err)
	}

	now := time.Now()
	err = s.userRepo.UpdateFields(ctx, target.ID, map[string]any{
		"is_verified": true,
		"verified_at": now,
		"verified_by": admin.ID,
	})
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "User " + target.Username + " verified",
	})
}

// AdminUnverifyUser handles POST /api/admin/users/:id/unverify.
// Idempotent; rejects administrator targets.
func (s *Server) AdminUnverifyUser(c *fiber.Ctx) error {
	ctx := c.Context()

	userID, ok := parseIDParam(c)
	if !ok {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid user ID"))
	}

	target, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusNotFound, err)
	}

	if target.IsAdmin {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("Cannot unverify an administrator"))
	}

	err = s.userRepo.UpdateFields(ctx, target.ID, map[string]any{
		"is_verified": false,
		"verified_at": nil,
		"verified_by": nil,
	})
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "User " + target.Username + " unverified",
	})
}

// AdminBlockUser handles POST /api/admin/users/:id/block. Rejects
// administrator targets.
func (s *Server) AdminBlockUser(c *fiber.Ctx) error {
	ctx := c.Context()

	userID, ok := parseIDParam(c)
	if !ok {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid user ID"))
	}

	target, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusNotFound, err)
	}

	if target.IsAdmin {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("Cannot block an administrator"))
	}

	if err := s.userRepo.UpdateFields(ctx, target.ID, map[string]any{"is_blocked": true}); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "User " + target.Username + " blocked",
	})
}

// AdminUnblockUser handles POST /api/admin/users/:id/unblock
func (s *Server) AdminUnblockUser(c *fiber.Ctx) error {
	ctx := c.Context()

	userID, ok := parseIDParam(c)
	if !ok {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid user ID"))
	}

	target, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusNotFound, err)
	}

	if err := s.userRepo.UpdateFields(ctx, target.ID, map[string]any{"is_blocked": false}); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "User " + target.Username + " unblocked",
	})
}

// AdminUpdateUserRole handles PUT /api/admin/users/:id/role
func (s *Server) AdminUpdateUserRole(c *fiber.Ctx) error {
	ctx := c.Context()

	userID, ok := parseIDParam(c)
	if !ok {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid user ID"))
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.Role != "user" && req.Role != "admin" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid role"))
	}

	target, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusNotFound, err)
	}

	if err := s.userRepo.UpdateFields(ctx, target.ID, map[string]any{"is_admin": req.Role == "admin"}); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	updated, err := s.userRepo.GetByID(ctx, target.ID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "User role updated",
		"user":    updated,
	})
}

// AdminDeleteUser handles DELETE /api/admin/users/:id. Forbidden on
// administrators and on self; cascades the user's likes, comments, and
// posts.
func (s *Server) AdminDeleteUser(c *fiber.Ctx) error {
	ctx := c.Context()
	admin := c.Locals("user").(*models.User)

	userID, ok := parseIDParam(c)
	if !ok {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid user ID"))
	}

	target, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusNotFound, err)
	}

	if target.IsAdmin {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("Cannot delete an administrator"))
	}
	if target.ID == admin.ID {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("Cannot delete your own account"))
	}

	if err := s.userRepo.Delete(ctx, target.ID); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "User " + target.Username + " deleted",
	})
}

// AdminListPosts handles GET /api/admin/posts: every post with the full
// metadata set and the resolved real author.
func (s *Server) AdminListPosts(c *fiber.Ctx) error {
	ctx := c.Context()

	posts, err := s.postRepo.ListAll(ctx)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	users, err := s.userRepo.List(ctx)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	usernames := make(map[uint]string, len(users))
	for i := range users {
		usernames[users[i].ID] = users[i].Username
	}

	entries := make([]adminPostEntry, 0, len(posts))
	for i := range posts {
		realAuthor := usernames[posts[i].RealAuthorID]
		display := posts[i].Author
		if posts[i].IsAnonymous {
			display = models.AnonymousAuthor
			if realAuthor != "" {
				display = models.AnonymousAuthor + " (" + realAuthor + ")"
			}
		}
		entries = append(entries, adminPostEntry{
			Post:          posts[i],
			AuthorDisplay: display,
			RealAuthor:    realAuthor,
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"posts":   entries,
	})
}

// AdminGetPost handles GET /api/admin/posts/:id: the post and its
// comments with real authors resolved.
func (s *Server) AdminGetPost(c *fiber.Ctx) error {
	ctx := c.Context()

	postID, ok := parseIDParam(c)
	if !ok {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid post ID"))
	}

	post, err := s.postRepo.Deanonymize(ctx, postID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusNotFound, err)
	}

	comments, err := s.commentRepo.ListByPost(ctx, postID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	deanonymized := make([]models.DeanonymizedComment, 0, len(comments))
	for i := range comments {
		dc, err := s.commentRepo.Deanonymize(ctx, comments[i].ID)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError, err)
		}
		deanonymized = append(deanonymized, *dc)
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"post":     post,
		"comments": deanonymized,
	})
}

// AdminDeanonymizePost handles GET /api/admin/posts/:id/deanonymize
func (s *Server) AdminDeanonymizePost(c *fiber.Ctx) error {
	ctx := c.Context()

	postID, ok := parseIDParam(c)
	if !ok {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid post ID"))
	}

	post, err := s.postRepo.Deanonymize(ctx, postID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusNotFound, err)
	}

	analysis := models.AnalyzeTracking(post.RealAuthorID, post.SessionID, post.IPAddress, post.BrowserFingerprint)

	return c.JSON(fiber.Map{
		"success":  true,
		"message":  "Deanonymization complete",
		"post":     post,
		"analysis": analysis,
	})
}

// AdminBulkDeanonymize handles POST /api/admin/posts/bulk-deanonymize.
// Processes at most 10 anonymous posts per request.
func (s *Server) AdminBulkDeanonymize(c *fiber.Ctx) error {
	ctx := c.Context()

	var req struct {
		PostIDs []uint `json:"postIds"`
	}
	if err := c.BodyParser(&req); err != nil || req.PostIDs == nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid postIds array"))
	}

	ids := req.PostIDs
	if len(ids) > 10 {
		ids = ids[:10]
	}

	type bulkResult struct {
		PostID   uint                     `json:"postId"`
		Post     *models.DeanonymizedPost `json:"post"`
		Analysis models.TrackingAnalysis  `json:"analysis"`
	}

	results := make([]bulkResult, 0, len(ids))
	for _, id := range ids {
		post, err := s.postRepo.Deanonymize(ctx, id)
		if err != nil || !post.IsAnonymous {
			continue
		}
		results = append(results, bulkResult{
			PostID:   id,
			Post:     post,
			Analysis: models.AnalyzeTracking(post.RealAuthorID, post.SessionID, post.IPAddress, post.BrowserFingerprint),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"results": results,
	})
}

// AdminUpdatePostStatus handles PUT /api/admin/posts/:id/status
func (s *Server) AdminUpdatePostStatus(c *fiber.Ctx) error {
	ctx := c.Context()

	postID, ok := parseIDParam(c)
	if !ok {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid post ID"))
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	switch req.Status {
	case models.StatusPending, models.StatusApproved, models.StatusRejected:
	default:
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid status"))
	}

	if _, err := s.postRepo.GetByID(ctx, postID); err != nil {
		return models.RespondWithError(c, fiber.StatusNotFound, err)
	}

	if err := s.postRepo.UpdateFields(ctx, postID, map[string]any{"status": req.Status}); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	updated, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Post status updated",
		"post":    updated,
	})
}

// setPostHidden flips the visibility flag; idempotent by construction.
func (s *Server) setPostHidden(c *fiber.Ctx, hidden bool, message string) error {
	ctx := c.Context()

	postID, ok := parseIDParam(c)
	if !ok {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid post ID"))
	}

	if _, err := s.postRepo.GetByID(ctx, postID); err != nil {
		return models.RespondWithError(c, fiber.StatusNotFound, err)
	}

	if err := s.postRepo.UpdateFields(ctx, postID, map[string]any{"is_hidden": hidden}); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	updated, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": message,
		"post":    updated,
	})
}

// AdminHidePost handles POST /api/admin/posts/:id/hide
func (s *Server) AdminHidePost(c *fiber.Ctx) error {
	return s.setPostHidden(c, true, "Post hidden")
}

// AdminUnhidePost handles POST /api/admin/posts/:id/unhide
func (s *Server) AdminUnhidePost(c *fiber.Ctx) error {
	return s.setPostHidden(c, false, "Post visible")
}

// AdminDeletePost handles DELETE /api/admin/posts/:id. Hard delete;
// cascades the post's comments and likes.
func (s *Server) AdminDeletePost(c *fiber.Ctx) error {
	ctx := c.Context()

	postID, ok := parseIDParam(c)
	if !ok {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid post ID"))
	}

	if _, err := s.postRepo.GetByID(ctx, postID); err != nil {
		return models.RespondWithError(c, fiber.StatusNotFound, err)
	}

	if err := s.postRepo.Delete(ctx, postID); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Post deleted",
	})
}

// AdminListComments handles GET /api/admin/comments
func (s *Server) AdminListComments(c *fiber.Ctx) error {
	comments, err := s.commentRepo.ListAll(c.Context())
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"comments": comments,
	})
}

// AdminDeanonymizeComment handles GET /api/admin/comments/:id/deanonymize
func (s *Server) AdminDeanonymizeComment(c *fiber.Ctx) error {
	ctx := c.Context()

	commentID, ok := parseIDParam(c)
	if !ok {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid comment ID"))
	}

	comment, err := s.commentRepo.Deanonymize(ctx, commentID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusNotFound, err)
	}

	analysis := models.AnalyzeTracking(comment.RealAuthorID, comment.SessionID, comment.IPAddress, comment.BrowserFingerprint)

	return c.JSON(fiber.Map{
		"success":  true,
		"message":  "Comment deanonymization complete",
		"comment":  comment,
		"analysis": analysis,
	})
}

// AdminDeleteComment handles DELETE /api/admin/comments/:id
func (s *Server) AdminDeleteComment(c *fiber.Ctx) error {
	ctx := c.Context()

	commentID, ok := parseIDParam(c)
	if !ok {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid comment ID"))
	}

	if _, err := s.commentRepo.GetByID(ctx, commentID); err != nil {
		return models.RespondWithError(c, fiber.StatusNotFound, err)
	}

	if err := s.commentRepo.Delete(ctx, commentID); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Comment deleted",
	})
}

// AdminSecurityStats handles GET /api/admin/surveillance/security-stats.
// All figures are deterministic counts; the high-risk bucket uses the
// same anonymous-ratio heuristic as the user listing.
func (s *Server) AdminSecurityStats(c *fiber.Ctx) error {
	ctx := c.Context()

	var stats securityStats
	err := s.cache.Aside(ctx, "admin:security-stats", &stats, 30*time.Second, func() error {
		db := s.db.WithContext(ctx)
		queries := []error{
			db.Model(&models.User{}).Count(&stats.TotalUsers).Error,
			db.Model(&models.User{}).Where("is_blocked = ?", true).Count(&stats.BlockedUsers).Error,
			db.Model(&models.User{}).Where("is_verified = ? AND is_admin = ?", false, false).Count(&stats.PendingUsers).Error,
			db.Model(&models.Post{}).Count(&stats.TotalPosts).Error,
			db.Model(&models.Post{}).Where("is_anonymous = ?", true).Count(&stats.AnonymousPosts).Error,
			db.Model(&models.Post{}).Where("is_hidden = ?", true).Count(&stats.HiddenPosts).Error,
			db.Model(&models.Post{}).Where("is_flagged = ?", true).Count(&stats.FlaggedPosts).Error,
		}
		for _, qerr := range queries {
			if qerr != nil {
				return models.NewInternalError(qerr)
			}
		}

		var posts []models.Post
		if qerr := db.Select("real_author_id", "is_anonymous").Find(&posts).Error; qerr != nil {
			return models.NewInternalError(qerr)
		}
		type ratio struct{ total, anonymous int }
		perUser := make(map[uint]*ratio)
		for i := range posts {
			r := perUser[posts[i].RealAuthorID]
			if r == nil {
				r = &ratio{}
				perUser[posts[i].RealAuthorID] = r
			}
			r.total++
			if posts[i].IsAnonymous {
				r.anonymous++
			}
		}
		for _, r := range perUser {
			if float64(r.anonymous)/float64(r.total) > 0.5 {
				stats.HighRiskUsers++
			}
		}

		stats.LastScanTime = time.Now().UTC()
		return nil
	})
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"stats":   stats,
	})
}
