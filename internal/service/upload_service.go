package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"fanwiki/internal/config"
	"fanwiki/internal/logger"
	"fanwiki/internal/media"
	"fanwiki/internal/metrics"
	"fanwiki/internal/models"
	"fanwiki/internal/repository"
	"fanwiki/internal/storage"
)

var errUndecodable = errors.New("file could not be decoded")

type UploadService interface {
	PresignCreate(ctx context.Context, requester *models.User, kind models.Kind, fileAmount int) ([]string, error)
	PresignEdit(ctx context.Context, requester *models.User, kind models.Kind, slug string, fileAmount int) ([]string, error)
	Create(ctx context.Context, requester *models.User, kind models.Kind, input models.PostInput) (*models.Post, error)
	Edit(ctx context.Context, requester *models.User, kind models.Kind, slug string, input models.PostInput) (*models.Post, error)
	Delete(ctx context.Context, requester *models.User, kind models.Kind, slug string) error
}

type uploadService struct {
	posts       repository.PostRepository
	attachments repository.AttachmentRepository
	details     repository.DetailsRepository
	storage     storage.Storage
	codec       media.Codec
	bucket      string
	today       func() models.Date
}

func NewUploadService(repo *repository.Repository, store storage.Storage, codec media.Codec, cfg *config.Config) UploadService {
	return &uploadService{
		posts:       repo.Post,
		attachments: repo.Attachment,
		details:     repo.Details,
		storage:     store,
		codec:       codec,
		bucket:      cfg.S3.PublicBucket,
		today:       models.Today,
	}
}

func uploadLog(kind models.Kind) zerolog.Logger {
	return logger.Component(string(kind) + " upload")
}

// keyList collects object keys written by concurrent promotions.
type keyList struct {
	mu   sync.Mutex
	keys []string
}

func (l *keyList) add(key string) {
	l.mu.Lock()
	l.keys = append(l.keys, key)
	l.mu.Unlock()
}

func (l *keyList) remove(keys ...string) {
	l.mu.Lock()
	l.keys = slices.DeleteFunc(l.keys, func(k string) bool { return slices.Contains(keys, k) })
	l.mu.Unlock()
}

func (l *keyList) sorted() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := slices.Clone(l.keys)
	slices.Sort(out)
	return out
}

func (s *uploadService) PresignCreate(ctx context.Context, requester *models.User, kind models.Kind, fileAmount int) ([]string, error) {
	if requester == nil {
		return nil, Unauthorized()
	}
	if !requester.Permissions().CanPostArt {
		return nil, Forbidden()
	}
	return s.presign(ctx, kind, fileAmount)
}

func (s *uploadService) PresignEdit(ctx context.Context, requester *models.User, kind models.Kind, slug string, fileAmount int) ([]string, error) {
	if requester == nil {
		return nil, Unauthorized()
	}
	existing, err := s.getPost(ctx, kind, slug)
	if err != nil {
		return nil, err
	}
	if !requester.CanEdit(existing.OwnerID) {
		return nil, Forbidden()
	}
	return s.presign(ctx, kind, fileAmount)
}

// presign returns fileAmount URLs plus a final one for the thumbnail.
func (s *uploadService) presign(ctx context.Context, kind models.Kind, fileAmount int) ([]string, error) {
	if fileAmount < 0 {
		return nil, BadRequest("file_amount cannot be negative")
	}
	if fileAmount > maxFileAmount {
		return nil, BadRequest("don't put that many")
	}

	urls := make([]string, 0, fileAmount+1)
	for i := 0; i <= fileAmount; i++ {
		u, err := s.storage.PresignPut(ctx, string(kind))
		if err != nil {
			return nil, Internal(fmt.Errorf("presign upload url: %w", err))
		}
		urls = append(urls, u)
	}
	return urls, nil
}

func (s *uploadService) getPost(ctx context.Context, kind models.Kind, slug string) (*models.Post, error) {
	post, err := s.posts.GetBySlug(ctx, kind, slug)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFound("post")
		}
		return nil, Internal(err)
	}
	return post, nil
}

func requireTemp(keys ...string) *Error {
	for _, key := range keys {
		if !storage.IsTempKey(key) {
			return BadRequest("uploaded files must come from a presigned url: " + key)
		}
	}
	return nil
}

func promotionError(err error) error {
	if errors.Is(err, media.ErrUnknownFiletype) || errors.Is(err, errUndecodable) {
		return &Error{Code: CodeBadRequest, Message: "one of the uploaded files has an unsupported type", Err: err}
	}
	return Internal(err)
}

func (s *uploadService) Create(ctx context.Context, requester *models.User, kind models.Kind, input models.PostInput) (post *models.Post, err error) {
	log := uploadLog(kind)
	defer func() {
		metrics.UploadsTotal.WithLabelValues(string(kind), "create", metrics.Result(err)).Inc()
	}()

	if requester == nil {
		return nil, Unauthorized()
	}
	if !requester.Permissions().CanPostArt {
		return nil, Forbidden()
	}

	sanitizeInput(&input, s.bucket)
	if verr := validateInput(kind, &input, s.today()); verr != nil {
		return nil, verr
	}
	if verr := requireTemp(append([]string{input.ThumbnailKey}, input.AttachedKeys...)...); verr != nil {
		return nil, verr
	}
	if c := input.Character; c != nil && c.LogoKey != nil {
		if verr := requireTemp(*c.LogoKey); verr != nil {
			return nil, verr
		}
	}

	exists, err := s.posts.SlugExists(ctx, kind, input.Slug)
	if err != nil {
		return nil, Internal(err)
	}
	if exists {
		return nil, BadRequest("a post with this slug already exists")
	}

	consumed := consumedTempKeys(&input)

	post = newPost(kind, &input, requester)
	id, err := s.posts.Insert(ctx, post)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, BadRequest("a post with this slug already exists")
		}
		return nil, Internal(err)
	}
	post.ID = id
	folder := post.Folder()

	var promoted keyList
	fail := func(cause error) (*models.Post, error) {
		log.Error().Err(cause).Int32("post_id", post.ID).Str("slug", post.Slug).Msg("upload failed, rolling back")
		s.discard(ctx, log, post.ID, promoted.sorted())
		return nil, promotionError(cause)
	}

	thumbSettings := kind.ThumbnailSettings()
	thumbKey, err := s.promote(ctx, kind, input.ThumbnailKey, folder, "thumbnail", &thumbSettings)
	if err != nil {
		return fail(err)
	}
	promoted.add(thumbKey)
	if err := s.posts.SetThumbnail(ctx, post.ID, thumbKey); err != nil {
		return fail(err)
	}
	post.ThumbnailKey = thumbKey

	finalKeys := make([]string, len(input.AttachedKeys))
	var g errgroup.Group
	for i, tempKey := range input.AttachedKeys {
		g.Go(func() error {
			final, err := s.promote(ctx, kind, tempKey, folder, storage.BaseName(tempKey), nil)
			if err != nil {
				return fmt.Errorf("attachment %d: %w", i+1, err)
			}
			promoted.add(final)
			finalKeys[i] = final
			return s.attachments.Put(ctx, post.ID, i+1, final)
		})
	}
	if err := g.Wait(); err != nil {
		return fail(err)
	}
	post.AttachedKeys = finalKeys

	if err := s.saveDetails(ctx, kind, post, &input, &promoted); err != nil {
		return fail(err)
	}

	if err := s.posts.SetState(ctx, post.ID, models.StatePublic); err != nil {
		return fail(err)
	}
	post.State = models.StatePublic

	if err := s.storage.DeleteMany(ctx, storage.BucketPublic, consumed); err != nil {
		log.Warn().Err(err).Strs("keys", consumed).Msg("could not delete consumed temp files")
	}

	log.Info().Int32("post_id", post.ID).Str("slug", post.Slug).Int("files", len(finalKeys)).Msg("post created")
	return post, nil
}

// discard removes a post that never became Public along with the keys it wrote.
func (s *uploadService) discard(ctx context.Context, log zerolog.Logger, id int32, keys []string) {
	ctx = context.WithoutCancel(ctx)
	if err := s.storage.DeleteMany(ctx, storage.BucketPublic, keys); err != nil {
		log.Warn().Err(err).Strs("keys", keys).Msg("could not delete promoted files")
	}
	if err := s.posts.Delete(ctx, id); err != nil {
		log.Warn().Err(err).Int32("post_id", id).Msg("could not delete processing post")
	}
}

// promote copies a temp object into folder as name.<ext>, re-encoding it on
// the way: lossy when settings are given, lossless otherwise.
func (s *uploadService) promote(ctx context.Context, kind models.Kind, tempKey, folder, name string, lossy *models.LossySettings) (string, error) {
	data, _, err := s.storage.Get(ctx, storage.BucketPublic, tempKey)
	if err != nil {
		return "", err
	}

	mime, err := media.DetectMIME(data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", tempKey, err)
	}

	var out []byte
	var outMime string
	if lossy != nil {
		var ok bool
		out, outMime, ok = s.codec.CompressLossy(data, mime, *lossy)
		if !ok {
			return "", fmt.Errorf("%s (%s): %w", tempKey, mime, errUndecodable)
		}
	} else {
		out, outMime = s.codec.CompressLossless(data, mime)
	}

	key := folder + name + "." + media.Extension(outMime)
	if err := s.storage.Put(ctx, storage.BucketPublic, key, out, outMime); err != nil {
		return "", err
	}
	metrics.PromotedBytesTotal.WithLabelValues(string(kind)).Add(float64(len(out)))
	return key, nil
}

func (s *uploadService) saveDetails(ctx context.Context, kind models.Kind, post *models.Post, input *models.PostInput, promoted *keyList) error {
	switch {
	case kind == models.KindStories && input.Story != nil:
		if err := s.details.SaveStory(ctx, post.ID, input.Story); err != nil {
			return err
		}
		post.Story = input.Story
	case kind == models.KindCharacters && input.Character != nil:
		character := input.Character
		if character.LogoKey != nil && storage.IsTempKey(*character.LogoKey) {
			logoKey, err := s.promote(ctx, kind, *character.LogoKey, post.Folder(), "logo", nil)
			if err != nil {
				return err
			}
			promoted.add(logoKey)
			character.LogoKey = &logoKey
		}
		if err := s.details.SaveCharacter(ctx, post.ID, character); err != nil {
			return err
		}
		post.Character = character
	}
	return nil
}

func newPost(kind models.Kind, input *models.PostInput, requester *models.User) *models.Post {
	post := &models.Post{
		Kind:         kind,
		Slug:         input.Slug,
		Title:        input.Title,
		Creators:     pq.StringArray(input.Creators),
		CreationDate: input.CreationDate,
		Tags:         pq.StringArray(input.Tags),
		IsNSFW:       input.IsNSFW,
		Description:  input.Description,
		State:        models.StateProcessing,
	}
	if requester != nil {
		owner := requester.ID
		post.OwnerID = &owner
	}
	return post
}

func (s *uploadService) Edit(ctx context.Context, requester *models.User, kind models.Kind, slug string, input models.PostInput) (post *models.Post, err error) {
	log := uploadLog(kind)
	defer func() {
		metrics.UploadsTotal.WithLabelValues(string(kind), "edit", metrics.Result(err)).Inc()
	}()

	if requester == nil {
		return nil, Unauthorized()
	}
	existing, err := s.getPost(ctx, kind, slug)
	if err != nil {
		return nil, err
	}
	if !requester.CanEdit(existing.OwnerID) {
		return nil, Forbidden()
	}
	if existing.State == models.StateProcessing {
		return nil, Conflict("this post is being processed, try again in a few minutes")
	}

	sanitizeInput(&input, s.bucket)
	if verr := validateInput(kind, &input, s.today()); verr != nil {
		return nil, verr
	}

	oldKeys, err := s.attachments.AttachedFiles(ctx, existing.ID)
	if err != nil {
		return nil, Internal(err)
	}
	for _, key := range input.AttachedKeys {
		if !slices.Contains(oldKeys, key) {
			if verr := requireTemp(key); verr != nil {
				return nil, verr
			}
		}
	}
	thumbnailChanged := input.ThumbnailKey != existing.ThumbnailKey
	if thumbnailChanged {
		if verr := requireTemp(input.ThumbnailKey); verr != nil {
			return nil, verr
		}
	}
	var previousLogo *string
	if c := input.Character; kind == models.KindCharacters && c != nil {
		current, err := s.details.GetCharacter(ctx, existing.ID)
		if err != nil {
			return nil, Internal(err)
		}
		if current != nil {
			previousLogo = current.LogoKey
		}
		if c.LogoKey != nil && !storage.IsTempKey(*c.LogoKey) && (previousLogo == nil || *previousLogo != *c.LogoKey) {
			return nil, BadRequest("uploaded files must come from a presigned url: " + *c.LogoKey)
		}
	}
	consumed := consumedTempKeys(&input)

	if input.Slug != existing.Slug {
		exists, err := s.posts.SlugExists(ctx, kind, input.Slug)
		if err != nil {
			return nil, Internal(err)
		}
		if exists {
			return nil, BadRequest("a post with this slug already exists")
		}
	}

	if err := s.posts.UpdateFields(ctx, existing.ID, diffPost(existing, &input)); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, BadRequest("a post with this slug already exists")
		}
		return nil, Internal(err)
	}

	post = applyInput(existing, &input)
	folder := post.Folder()

	// keys written by this edit that nothing references yet
	var pending keyList
	fail := func(cause error) (*models.Post, error) {
		log.Error().Err(cause).Int32("post_id", existing.ID).Str("slug", existing.Slug).Msg("edit failed")
		cleanupCtx := context.WithoutCancel(ctx)
		if keys := pending.sorted(); len(keys) > 0 {
			if err := s.storage.DeleteMany(cleanupCtx, storage.BucketPublic, keys); err != nil {
				log.Warn().Err(err).Strs("keys", keys).Msg("could not delete promoted files")
			}
		}
		if err := s.posts.SetState(cleanupCtx, existing.ID, models.StatePublic); err != nil {
			log.Warn().Err(err).Int32("post_id", existing.ID).Msg("could not restore post state")
		}
		return nil, promotionError(cause)
	}

	updates, finalKeys, err := s.reorder(ctx, kind, folder, oldKeys, input.AttachedKeys, &pending)
	if err != nil {
		return fail(err)
	}
	if err := s.attachments.Rewrite(ctx, existing.ID, updates, len(finalKeys)); err != nil {
		return fail(err)
	}
	pending.remove(finalKeys...)
	post.AttachedKeys = finalKeys

	removed := []string{}
	for _, key := range oldKeys {
		if !slices.Contains(finalKeys, key) {
			removed = append(removed, key)
		}
	}

	if thumbnailChanged {
		thumbSettings := kind.ThumbnailSettings()
		thumbKey, err := s.promote(ctx, kind, input.ThumbnailKey, folder, "thumbnail", &thumbSettings)
		if err != nil {
			return fail(err)
		}
		if thumbKey != existing.ThumbnailKey {
			pending.add(thumbKey)
			if err := s.posts.SetThumbnail(ctx, existing.ID, thumbKey); err != nil {
				return fail(err)
			}
			pending.remove(thumbKey)
			if existing.ThumbnailKey != models.PlaceholderThumbnail {
				removed = append(removed, existing.ThumbnailKey)
			}
		}
		post.ThumbnailKey = thumbKey
	}

	if err := s.saveDetails(ctx, kind, post, &input, &pending); err != nil {
		return fail(err)
	}
	pending.remove(pendingLogo(post)...)
	if previousLogo != nil && !slices.Contains(pendingLogo(post), *previousLogo) {
		removed = append(removed, *previousLogo)
	}

	if err := s.posts.SetState(ctx, existing.ID, models.StatePublic); err != nil {
		return fail(err)
	}
	post.State = models.StatePublic

	obsolete := append(removed, consumed...)
	if err := s.storage.DeleteMany(ctx, storage.BucketPublic, obsolete); err != nil {
		log.Warn().Err(err).Strs("keys", obsolete).Msg("could not delete replaced files")
	}

	log.Info().Int32("post_id", post.ID).Str("slug", post.Slug).Int("removed", len(removed)).Msg("post edited")
	return post, nil
}

// consumedTempKeys lists the temp objects an upload reads from. They are
// deleted once the post is Public.
func consumedTempKeys(in *models.PostInput) []string {
	keys := []string{}
	for _, key := range append([]string{in.ThumbnailKey}, in.AttachedKeys...) {
		if storage.IsTempKey(key) {
			keys = append(keys, key)
		}
	}
	if c := in.Character; c != nil && c.LogoKey != nil && storage.IsTempKey(*c.LogoKey) {
		keys = append(keys, *c.LogoKey)
	}
	return keys
}

func pendingLogo(post *models.Post) []string {
	if post.Character != nil && post.Character.LogoKey != nil {
		return []string{*post.Character.LogoKey}
	}
	return nil
}

// reorder walks the submitted sequence against the stored one. Positions that
// already hold the same key are skipped, keys that moved are rewritten and new
// temp keys are promoted in parallel.
func (s *uploadService) reorder(ctx context.Context, kind models.Kind, folder string, oldKeys, newKeys []string, pending *keyList) ([]models.Attachment, []string, error) {
	finalKeys := make([]string, len(newKeys))
	changed := make([]bool, len(newKeys))

	var g errgroup.Group
	for i, key := range newKeys {
		switch {
		case i < len(oldKeys) && oldKeys[i] == key:
			finalKeys[i] = key
		case slices.Contains(oldKeys, key):
			finalKeys[i] = key
			changed[i] = true
		default:
			changed[i] = true
			g.Go(func() error {
				final, err := s.promote(ctx, kind, key, folder, storage.BaseName(key), nil)
				if err != nil {
					return fmt.Errorf("attachment %d: %w", i+1, err)
				}
				pending.add(final)
				finalKeys[i] = final
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	updates := []models.Attachment{}
	for i, key := range finalKeys {
		if changed[i] {
			updates = append(updates, models.Attachment{Position: i + 1, FileKey: key})
		}
	}
	return updates, finalKeys, nil
}

// diffPost lists the columns whose submitted value differs from the stored one.
func diffPost(existing *models.Post, in *models.PostInput) []repository.Change {
	var changes []repository.Change
	if in.Slug != existing.Slug {
		changes = append(changes, repository.Change{Column: "slug", Value: in.Slug})
	}
	if in.Title != existing.Title {
		changes = append(changes, repository.Change{Column: "title", Value: in.Title})
	}
	if !slices.Equal(in.Creators, []string(existing.Creators)) {
		changes = append(changes, repository.Change{Column: "creators", Value: pq.StringArray(in.Creators)})
	}
	if in.CreationDate.String() != existing.CreationDate.String() {
		changes = append(changes, repository.Change{Column: "creation_date", Value: in.CreationDate})
	}
	if !slices.Equal(in.Tags, []string(existing.Tags)) {
		changes = append(changes, repository.Change{Column: "tags", Value: pq.StringArray(in.Tags)})
	}
	if in.IsNSFW != existing.IsNSFW {
		changes = append(changes, repository.Change{Column: "is_nsfw", Value: in.IsNSFW})
	}
	if !equalOptional(in.Description, existing.Description) {
		changes = append(changes, repository.Change{Column: "description", Value: in.Description})
	}
	return changes
}

func equalOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func applyInput(existing *models.Post, in *models.PostInput) *models.Post {
	post := *existing
	post.Slug = in.Slug
	post.Title = in.Title
	post.Creators = pq.StringArray(in.Creators)
	post.CreationDate = in.CreationDate
	post.Tags = pq.StringArray(in.Tags)
	post.IsNSFW = in.IsNSFW
	post.Description = in.Description
	post.State = models.StateProcessing
	return &post
}

func (s *uploadService) Delete(ctx context.Context, requester *models.User, kind models.Kind, slug string) (err error) {
	log := uploadLog(kind)
	defer func() {
		metrics.UploadsTotal.WithLabelValues(string(kind), "delete", metrics.Result(err)).Inc()
	}()

	if requester == nil {
		return Unauthorized()
	}
	existing, err := s.getPost(ctx, kind, slug)
	if err != nil {
		return err
	}
	if !requester.CanEdit(existing.OwnerID) {
		return Forbidden()
	}

	keys, err := s.attachments.AttachedFiles(ctx, existing.ID)
	if err != nil {
		return Internal(err)
	}
	if existing.ThumbnailKey != models.PlaceholderThumbnail {
		keys = append(keys, existing.ThumbnailKey)
	}
	if kind == models.KindCharacters {
		character, err := s.details.GetCharacter(ctx, existing.ID)
		if err != nil {
			return Internal(err)
		}
		if character != nil && character.LogoKey != nil {
			keys = append(keys, *character.LogoKey)
		}
	}

	if err := s.posts.Delete(ctx, existing.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return NotFound("post")
		}
		return Internal(err)
	}

	if err := s.storage.DeleteMany(context.WithoutCancel(ctx), storage.BucketPublic, keys); err != nil {
		log.Warn().Err(err).Int32("post_id", existing.ID).Msg("post deleted but its files could not be removed")
	}

	log.Info().Int32("post_id", existing.ID).Str("slug", slug).Int32("by", requester.ID).Msg("post deleted")
	return nil
}
