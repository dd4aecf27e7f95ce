package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"fanwiki/internal/models"
	"fanwiki/internal/service"
)

const defaultImportTokenTTL = 24 * time.Hour

type UserPage struct {
	Profile   *models.User
	CanModify bool
	Self      bool
	UserTypes []models.UserType
}

type ImportTokenRequest struct {
	TTLHours int `json:"ttl_hours" validate:"omitempty,min=1,max=720"`
}

type ImportTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func userIDOf(r *http.Request) (int32, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 32)
	return int32(id), err == nil
}

// canModify mirrors the user service rules so the page only offers the form
// when a save could succeed.
func canModify(requester, target *models.User) bool {
	if requester == nil {
		return false
	}
	if requester.ID == target.ID {
		return true
	}
	return requester.Permissions().CanModifyUsers && target.UserType.Rank() < requester.UserType.Rank()
}

func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDOf(r)
	if !ok {
		h.NotFound(w, r)
		return
	}

	ctx := r.Context()
	profile, err := h.UserService.Get(ctx, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	requester := UserFromContext(ctx)
	page := UserPage{
		Profile:   profile,
		CanModify: canModify(requester, profile),
		Self:      requester != nil && requester.ID == profile.ID,
	}
	for _, t := range []models.UserType{models.UserGuest, models.UserMember, models.UserUploader, models.UserAdmin} {
		if requester != nil && t.Rank() < requester.UserType.Rank() {
			page.UserTypes = append(page.UserTypes, t)
		}
	}
	h.page(w, r, http.StatusOK, "user", profile.DisplayName, page)
}

// ModifyUser is the two-phase profile change: step 1 presigns a profile
// picture upload, step 2 applies the changes.
func (h *Handlers) ModifyUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDOf(r)
	if !ok {
		h.NotFound(w, r)
		return
	}

	step, err := decodeStep[models.ModifiableUserInfo](r, h.Validate)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	ctx := r.Context()
	requester := UserFromContext(ctx)
	if step.FileAmount != nil {
		urls, err := h.UserService.PresignProfilePicture(ctx, requester, id, *step.FileAmount)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeSuccess(w, models.PresignResponse{PresignedURLs: urls}, http.StatusOK)
		return
	}

	if _, err := h.UserService.Modify(ctx, requester, id, *step.Metadata); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/user/%d", id), http.StatusSeeOther)
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	http.SetCookie(w, h.AuthService.Logout(ctx, SessionIDFromContext(ctx)))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// IssueImportToken hands an admin a bearer token for the batch importer.
func (h *Handlers) IssueImportToken(w http.ResponseWriter, r *http.Request) {
	var req ImportTokenRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}
	if err := h.Validate.Struct(req); err != nil {
		WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ttl := defaultImportTokenTTL
	if req.TTLHours > 0 {
		ttl = time.Duration(req.TTLHours) * time.Hour
	}

	ctx := r.Context()
	token, err := h.AuthService.IssueImportToken(ctx, UserFromContext(ctx), ttl)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, ImportTokenResponse{Token: token, ExpiresAt: time.Now().Add(ttl).UTC()}, http.StatusCreated)
}

// requireUser writes 401 and reports false for guests.
func (h *Handlers) requireUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user := UserFromContext(r.Context())
	if user == nil {
		h.writeServiceError(w, r, service.Unauthorized())
		return nil, false
	}
	return user, true
}
