package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"fanwiki/internal/models"
	"fanwiki/internal/repository"
	"fanwiki/internal/service"
)

const (
	nsfwCookie     = "NSFW_WARNING_SHOWN"
	maxJSONBody    = 1 << 20
	maxCommentBody = 64 << 10
)

var kindTitles = map[models.Kind]string{
	models.KindArt:        "Art",
	models.KindStories:    "Stories",
	models.KindCharacters: "Characters",
}

type UploadPage struct {
	Kind models.Kind
	// Post is nil on the new-post page.
	Post *models.Post
}

func kindOf(r *http.Request) (models.Kind, bool) {
	return models.ParseKind(mux.Vars(r)["kind"])
}

func kindTitle(kind models.Kind) string {
	if title, ok := kindTitles[kind]; ok {
		return title
	}
	return string(kind)
}

func filterFromQuery(q url.Values) repository.Filter {
	filter := repository.Filter{NSFW: q.Get("nsfw") == "true"}
	if tags := q.Get("tags"); tags != "" {
		filter.Tags = service.SanitizeTags(strings.Split(tags, ","))
	}
	return filter
}

func nsfwAcknowledged(r *http.Request) bool {
	c, err := r.Cookie(nsfwCookie)
	return err == nil && c.Value == "true"
}

// decodeStep reads a two-phase posting body. Unknown steps and malformed
// bodies are bad requests.
func decodeStep[T any](r *http.Request, validate *validator.Validate) (*models.PostingStep[T], error) {
	var step models.PostingStep[T]
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&step); err != nil {
		if errors.Is(err, models.ErrUnknownStep) {
			return nil, service.BadRequest("unknown posting step")
		}
		return nil, service.BadRequest("invalid request body")
	}
	if step.Metadata != nil {
		if err := validate.Struct(step.Metadata); err != nil {
			return nil, service.BadRequest(err.Error())
		}
	}
	return &step, nil
}

func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindOf(r)
	if !ok {
		h.NotFound(w, r)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	result, err := h.PostService.List(r.Context(), kind, page, filterFromQuery(r.URL.Query()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.page(w, r, http.StatusOK, "index", kindTitle(kind), result)
}

func (h *Handlers) PostPage(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindOf(r)
	if !ok {
		h.NotFound(w, r)
		return
	}

	ctx := r.Context()
	view, err := h.PostService.Get(ctx, UserFromContext(ctx), kind, mux.Vars(r)["slug"], filterFromQuery(r.URL.Query()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if view.Post.IsNSFW && !nsfwAcknowledged(r) {
		h.page(w, r, http.StatusOK, "nsfw", view.Post.Title, nil)
		return
	}
	h.page(w, r, http.StatusOK, "post", view.Post.Title, view)
}

func (h *Handlers) NewPostPage(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindOf(r)
	if !ok {
		h.NotFound(w, r)
		return
	}
	if UserFromContext(r.Context()) == nil {
		h.writeServiceError(w, r, service.Unauthorized())
		return
	}
	h.page(w, r, http.StatusOK, "upload", "New "+kindTitle(kind), UploadPage{Kind: kind})
}

func (h *Handlers) EditPostPage(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindOf(r)
	if !ok {
		h.NotFound(w, r)
		return
	}

	ctx := r.Context()
	user := UserFromContext(ctx)
	if user == nil {
		h.writeServiceError(w, r, service.Unauthorized())
		return
	}
	view, err := h.PostService.Get(ctx, user, kind, mux.Vars(r)["slug"], repository.Filter{})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if !view.CanEdit {
		h.writeServiceError(w, r, service.Forbidden())
		return
	}
	h.page(w, r, http.StatusOK, "upload", "Edit "+view.Post.Title, UploadPage{Kind: kind, Post: view.Post})
}

// CreatePost serves both phases of a new upload: presigned urls for step 1,
// a redirect to the finished post for step 2.
func (h *Handlers) CreatePost(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindOf(r)
	if !ok {
		h.NotFound(w, r)
		return
	}

	step, err := decodeStep[models.PostInput](r, h.Validate)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	ctx := r.Context()
	user := UserFromContext(ctx)
	if step.FileAmount != nil {
		urls, err := h.UploadService.PresignCreate(ctx, user, kind, *step.FileAmount)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeSuccess(w, models.PresignResponse{PresignedURLs: urls}, http.StatusOK)
		return
	}

	post, err := h.UploadService.Create(ctx, user, kind, *step.Metadata)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	http.Redirect(w, r, post.URL(), http.StatusSeeOther)
}

func (h *Handlers) EditPost(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindOf(r)
	if !ok {
		h.NotFound(w, r)
		return
	}

	step, err := decodeStep[models.PostInput](r, h.Validate)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	ctx := r.Context()
	user := UserFromContext(ctx)
	slug := mux.Vars(r)["slug"]
	if step.FileAmount != nil {
		urls, err := h.UploadService.PresignEdit(ctx, user, kind, slug, *step.FileAmount)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeSuccess(w, models.PresignResponse{PresignedURLs: urls}, http.StatusOK)
		return
	}

	post, err := h.UploadService.Edit(ctx, user, kind, slug, *step.Metadata)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	http.Redirect(w, r, post.URL(), http.StatusSeeOther)
}

func (h *Handlers) DeletePost(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindOf(r)
	if !ok {
		h.NotFound(w, r)
		return
	}

	ctx := r.Context()
	if err := h.UploadService.Delete(ctx, UserFromContext(ctx), kind, mux.Vars(r)["slug"]); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddComment takes the comment as a plain text body. Browser forms post it
// as the "text" field and are sent back to the post.
func (h *Handlers) AddComment(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindOf(r)
	if !ok {
		h.NotFound(w, r)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxCommentBody)
	fromForm := isForm(r)

	var text string
	if fromForm {
		if err := r.ParseForm(); err != nil {
			WriteError(w, "invalid form", http.StatusBadRequest)
			return
		}
		text = r.PostFormValue("text")
	} else {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			WriteError(w, "comment is too long", http.StatusBadRequest)
			return
		}
		text = string(body)
	}

	ctx := r.Context()
	slug := mux.Vars(r)["slug"]
	comment, err := h.CommentService.Add(ctx, UserFromContext(ctx), kind, slug, text)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if fromForm {
		http.Redirect(w, r, "/"+string(kind)+"/"+slug, http.StatusSeeOther)
		return
	}
	writeSuccess(w, comment, http.StatusCreated)
}

func isForm(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && (mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data")
}

// Tierlist shows a drag and drop tier list built from every character.
func (h *Handlers) Tierlist(w http.ResponseWriter, r *http.Request) {
	characters, err := h.PostService.Characters(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.page(w, r, http.StatusOK, "tierlist", "Tier list", characters)
}
