package server

import (
	"whisperwall/models"

	"github.com/gofiber/fiber/v2"
)

func parseIDParam(c *fiber.Ctx) (uint, bool) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, false
	}
	return uint(id), true
}

// GetPosts handles GET /api/posts (public, optional auth for userLiked)
func (s *Server) GetPosts(c *fiber.Ctx) error {
	ctx := c.Context()

	posts, err := s.postRepo.ListVisible(ctx)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	liker := likerIdentity(c)
	views := make([]models.PostView, 0, len(posts))
	for i := range posts {
		liked, err := s.postRepo.HasLiked(ctx, posts[i].ID, liker)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError, err)
		}
		views = append(views, posts[i].Public(liked))
	}

	return c.JSON(fiber.Map{
		"success": true,
		"posts":   views,
	})
}

// GetPost handles GET /api/posts/:id (public, optional auth). Counts the
// view unless the same (post, session, IP) was seen within the window.
func (s *Server) GetPost(c *fiber.Ctx) error {
	ctx := c.Context()
	postID, ok := parseIDParam(c)
	if !ok {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid post ID"))
	}

	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusNotFound, err)
	}
	if post.IsHidden || post.Status != models.StatusApproved {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("Post", postID))
	}

	sessionID := sessionIDFrom(c)
	views := post.Views
	if s.views.ShouldCount(post.ID, sessionID, c.IP()) {
		if err := s.postRepo.IncrementViews(ctx, post.ID); err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError, err)
		}
		views++
	}

	liked, err := s.postRepo.HasLiked(ctx, post.ID, likerIdentity(c))
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	comments, err := s.commentRepo.ListByPost(ctx, post.ID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	commentViews := make([]models.CommentView, 0, len(comments))
	for i := range comments {
		commentViews = append(commentViews, comments[i].Public())
	}

	view := post.Public(liked)
	view.Views = views

	return c.JSON(fiber.Map{
		"success":  true,
		"post":     view,
		"comments": commentViews,
	})
}

// CreatePost handles POST /api/posts (verified required). The anonymity
// flag only shapes the public projection; the real author and the
// identifying metadata are always recorded.
func (s *Server) CreatePost(c *fiber.Ctx) error {
	ctx := c.Context()
	user := c.Locals("user").(*models.User)

	var req struct {
		Title       string `json:"title"`
		Content     string `json:"content"`
		IsAnonymous bool   `json:"isAnonymous"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if req.Title == "" || req.Content == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Title and content are required"))
	}

	ipAddress := c.IP()
	userAgent := c.Get("User-Agent")

	post := &models.Post{
		Title:              req.Title,
		Content:            req.Content,
		RealAuthorID:       user.ID,
		IsAnonymous:        req.IsAnonymous,
		Status:             models.StatusApproved,
		IPAddress:          ipAddress,
		UserAgent:          userAgent,
		BrowserFingerprint: browserFingerprint(userAgent, ipAddress, c.Get("Accept-Language")),
		SessionID:          sessionIDFrom(c),
	}
	if req.IsAnonymous {
		post.Author = models.AnonymousAuthor
		post.AuthorID = nil
	} else {
		post.Author = user.Username
		authorID := user.ID
		post.AuthorID = &authorID
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Post created successfully",
		"post":    post.Public(false),
	})
}

// LikePost handles POST /api/posts/:id/like. Toggles the like for the
// caller's identity signal.
func (s *Server) LikePost(c *fiber.Ctx) error {
	ctx := c.Context()
	postID, ok := parseIDParam(c)
	if !ok {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid post ID"))
	}

	if _, err := s.postRepo.GetByID(ctx, postID); err != nil {
		return models.RespondWithError(c, fiber.StatusNotFound, err)
	}

	result, err := s.postRepo.ToggleLike(ctx, postID, likerIdentity(c))
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	message := "Like removed"
	if result.Action == "liked" {
		message = "Like added"
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"message":   message,
		"likes":     result.Likes,
		"userLiked": result.UserLiked,
		"action":    result.Action,
	})
}
