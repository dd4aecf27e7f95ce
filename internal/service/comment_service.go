package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"fanwiki/internal/models"
	"fanwiki/internal/repository"
)

const maxCommentLength = 4000

type CommentService interface {
	Add(ctx context.Context, requester *models.User, kind models.Kind, slug, text string) (*models.Comment, error)
}

type commentService struct {
	posts    repository.PostRepository
	comments repository.CommentRepository
}

func NewCommentService(posts repository.PostRepository, comments repository.CommentRepository) CommentService {
	return &commentService{posts: posts, comments: comments}
}

func (c *commentService) Add(ctx context.Context, requester *models.User, kind models.Kind, slug, text string) (*models.Comment, error) {
	if requester == nil {
		return nil, Unauthorized()
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, BadRequest("comment cannot be empty")
	}
	if utf8.RuneCountInString(text) > maxCommentLength {
		return nil, BadRequest("comment is too long")
	}

	post, err := c.posts.GetBySlug(ctx, kind, slug)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFound("page")
		}
		return nil, Internal(err)
	}
	if post.State != models.StatePublic {
		return nil, NotFound("page")
	}

	comment := &models.Comment{
		PostID:   post.ID,
		AuthorID: requester.ID,
		Author:   requester.DisplayName,
		Contents: text,
	}
	if err := c.comments.Add(ctx, comment); err != nil {
		return nil, Internal(err)
	}
	return comment, nil
}
