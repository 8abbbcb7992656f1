package server

import (
	"strings"

	"whisperwall/models"

	"github.com/gofiber/fiber/v2"
)

// CreateComment handles POST /api/posts/:id/comments (verified required).
// Same anonymity contract as posts.
func (s *Server) CreateComment(c *fiber.Ctx) error {
	ctx := c.Context()
	user := c.Locals("user").(*models.User)

	postID, ok := parseIDParam(c)
	if !ok {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid post ID"))
	}

	var req struct {
		Content     string `json:"content"`
		IsAnonymous bool   `json:"isAnonymous"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Comment content is required"))
	}

	if _, err := s.postRepo.GetByID(ctx, postID); err != nil {
		return models.RespondWithError(c, fiber.StatusNotFound, err)
	}

	ipAddress := c.IP()
	userAgent := c.Get("User-Agent")

	comment := &models.Comment{
		PostID:             postID,
		Content:            content,
		RealAuthorID:       user.ID,
		IsAnonymous:        req.IsAnonymous,
		IPAddress:          ipAddress,
		UserAgent:          userAgent,
		BrowserFingerprint: browserFingerprint(userAgent, ipAddress, c.Get("Accept-Language")),
		SessionID:          sessionIDFrom(c),
	}
	if req.IsAnonymous {
		comment.Author = models.AnonymousAuthor
		comment.AuthorID = nil
	} else {
		comment.Author = user.Username
		authorID := user.ID
		comment.AuthorID = &authorID
	}

	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Comment added successfully",
		"comment": comment.Public(),
	})
}

// GetComments handles GET /api/posts/:id/comments (public)
func (s *Server) GetComments(c *fiber.Ctx) error {
	ctx := c.Context()
	postID, ok := parseIDParam(c)
	if !ok {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid post ID"))
	}

	if _, err := s.postRepo.GetByID(ctx, postID); err != nil {
		return models.RespondWithError(c, fiber.StatusNotFound, err)
	}

	comments, err := s.commentRepo.ListByPost(ctx, postID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	views := make([]models.CommentView, 0, len(comments))
	for i := range comments {
		views = append(views, comments[i].Public())
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"comments": views,
	})
}
