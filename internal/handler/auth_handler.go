package handlers

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/markbates/goth/gothic"

	"fanwiki/internal/logger"
	"fanwiki/internal/service"
)

func (h *Handlers) knownProvider(r *http.Request) (string, bool) {
	provider := mux.Vars(r)["provider"]
	_, ok := h.Cfg.OAuth.Providers()[provider]
	return provider, ok
}

// BeginOAuth redirects to the provider's consent page.
func (h *Handlers) BeginOAuth(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.knownProvider(r)
	if !ok {
		h.NotFound(w, r)
		return
	}
	gothic.BeginAuthHandler(w, gothic.GetContextWithProvider(r, provider))
}

// CompleteOAuth finishes the handshake. A logged-in user gets the identity
// bound to their account; a guest is logged in, creating the account on the
// first visit.
func (h *Handlers) CompleteOAuth(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.knownProvider(r)
	if !ok {
		h.NotFound(w, r)
		return
	}

	log := logger.Component("openid")
	identity, err := gothic.CompleteUserAuth(w, gothic.GetContextWithProvider(r, provider))
	if err != nil {
		log.Warn().Err(err).Str("provider", provider).Msg("oauth handshake failed")
		h.writeServiceError(w, r, service.BadRequest("could not log in with "+provider))
		return
	}

	ctx := r.Context()
	if current := UserFromContext(ctx); current != nil {
		if err := h.AuthService.BindOpenID(ctx, current.ID, provider, identity.UserID); err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		http.Redirect(w, r, fmt.Sprintf("/user/%d", current.ID), http.StatusSeeOther)
		return
	}

	name := identity.Name
	if name == "" {
		name = identity.NickName
	}
	user, err := h.AuthService.LoginWithOpenID(ctx, provider, identity.UserID, name)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	cookie, err := h.AuthService.CreateSession(ctx, user)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	http.SetCookie(w, cookie)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
