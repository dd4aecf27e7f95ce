package service

import (
	"context"
	"errors"

	"fanwiki/internal/models"
	"fanwiki/internal/repository"
)

type PostService interface {
	List(ctx context.Context, kind models.Kind, page int, filter repository.Filter) (*PostPage, error)
	Get(ctx context.Context, viewer *models.User, kind models.Kind, slug string, filter repository.Filter) (*PostView, error)
	Characters(ctx context.Context) ([]*models.Post, error)
}

type PostPage struct {
	Kind   models.Kind
	Posts  []*models.Post
	Page   int
	Pages  int
	Filter repository.Filter
}

// PostView is everything a post page shows.
type PostView struct {
	Post     *models.Post
	Older    *models.Post
	Newer    *models.Post
	Comments []*models.Comment
	CanEdit  bool

	// story chapter links, nil when the referenced slug no longer resolves
	PrevChapter *models.Post
	NextChapter *models.Post
}

type postService struct {
	posts       repository.PostRepository
	attachments repository.AttachmentRepository
	details     repository.DetailsRepository
	comments    repository.CommentRepository
}

func NewPostService(repo *repository.Repository) PostService {
	return &postService{
		posts:       repo.Post,
		attachments: repo.Attachment,
		details:     repo.Details,
		comments:    repo.Comment,
	}
}

func (p *postService) List(ctx context.Context, kind models.Kind, page int, filter repository.Filter) (*PostPage, error) {
	count, err := p.posts.Count(ctx, kind, filter)
	if err != nil {
		return nil, Internal(err)
	}

	page, pages := Paginate(count, kind.PerPage(), page)
	posts, err := p.posts.List(ctx, kind, (page-1)*kind.PerPage(), kind.PerPage(), filter)
	if err != nil {
		return nil, Internal(err)
	}

	return &PostPage{Kind: kind, Posts: posts, Page: page, Pages: pages, Filter: filter}, nil
}

func (p *postService) Get(ctx context.Context, viewer *models.User, kind models.Kind, slug string, filter repository.Filter) (*PostView, error) {
	post, err := p.posts.GetBySlug(ctx, kind, slug)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFound("page")
		}
		return nil, Internal(err)
	}
	if post.State != models.StatePublic {
		return nil, NotFound("page")
	}

	post.AttachedKeys, err = p.attachments.AttachedFiles(ctx, post.ID)
	if err != nil {
		return nil, Internal(err)
	}

	view := &PostView{Post: post, CanEdit: viewer.CanEdit(post.OwnerID)}

	switch kind {
	case models.KindStories:
		if post.Story, err = p.details.GetStory(ctx, post.ID); err != nil {
			return nil, Internal(err)
		}
		if post.Story != nil {
			view.PrevChapter = p.chapter(ctx, post.Story.PrevSlug)
			view.NextChapter = p.chapter(ctx, post.Story.NextSlug)
		}
	case models.KindCharacters:
		if post.Character, err = p.details.GetCharacter(ctx, post.ID); err != nil {
			return nil, Internal(err)
		}
	}

	// neighbours stay within the post's own NSFW class
	filter.NSFW = post.IsNSFW
	if view.Older, view.Newer, err = p.posts.Neighbours(ctx, kind, post.Slug, filter); err != nil {
		return nil, Internal(err)
	}

	if view.Comments, err = p.comments.ListByPost(ctx, post.ID); err != nil {
		return nil, Internal(err)
	}

	return view, nil
}

func (p *postService) chapter(ctx context.Context, slug *string) *models.Post {
	if slug == nil {
		return nil
	}
	post, err := p.posts.GetBySlug(ctx, models.KindStories, *slug)
	if err != nil || post.State != models.StatePublic {
		return nil
	}
	return post
}

// Characters returns every public SFW character, newest first.
func (p *postService) Characters(ctx context.Context) ([]*models.Post, error) {
	count, err := p.posts.Count(ctx, models.KindCharacters, repository.Filter{})
	if err != nil {
		return nil, Internal(err)
	}
	if count == 0 {
		return []*models.Post{}, nil
	}

	characters, err := p.posts.List(ctx, models.KindCharacters, 0, int(count), repository.Filter{})
	if err != nil {
		return nil, Internal(err)
	}
	return characters, nil
}
