package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"redbead/internal/domain"
	"redbead/internal/pkg/errs"
	"redbead/internal/service/checkout"
	"redbead/internal/service/guestsession"
)

type handlers struct {
	deps     Deps
	upgrader websocket.Upgrader
}

func (h *handlers) logger(c *gin.Context) *zerolog.Logger {
	return zerolog.Ctx(c.Request.Context())
}

func (h *handlers) guestStore(c *gin.Context) (*guestsession.Store, bool) {
	storage, ok := h.deviceStorage(c)
	if !ok {
		return nil, false
	}
	jar := guestsession.NewHeaderJar(c.GetHeader("Cookie"), guestsession.ExpireWith(c.Writer))
	return guestsession.New(storage, jar, *h.logger(c)), true
}

type guestSessionBody struct {
	SessionID string `json:"sessionId" binding:"required"`
}

func (h *handlers) getGuestSession(c *gin.Context) {
	store, ok := h.guestStore(c)
	if !ok {
		return
	}
	id, found := store.GuestSessionID(c.Request.Context())
	if !found {
		respondError(c, errs.NewError(errs.ErrGuestSessionNotFound))
		return
	}
	c.JSON(http.StatusOK, guestSessionBody{SessionID: id})
}

func (h *handlers) putGuestSession(c *gin.Context) {
	var body guestSessionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, errs.NewError(errs.ErrInvalidParams))
		return
	}
	store, ok := h.guestStore(c)
	if !ok {
		return
	}
	store.StoreGuestSessionID(c.Request.Context(), body.SessionID)
	c.Status(http.StatusNoContent)
}

func (h *handlers) deleteGuestSession(c *gin.Context) {
	store, ok := h.guestStore(c)
	if !ok {
		return
	}
	store.ClearGuestSession(c.Request.Context())
	c.Status(http.StatusNoContent)
}

type checkoutStateResponse struct {
	SessionID string                `json:"sessionId"`
	Step      int                   `json:"step"`
	State     *domain.CheckoutState `json:"state"`
}

func (h *handlers) persistor(c *gin.Context) (*checkout.Persistor, bool) {
	sessionID := checkout.NormalizeSessionID(c.Param("sessionId"))
	if sessionID == "" {
		respondError(c, errs.NewError(errs.ErrInvalidParams))
		return nil, false
	}
	storage, ok := h.deviceStorage(c)
	if !ok {
		return nil, false
	}
	return checkout.New(storage, sessionID, h.deps.Clock, h.deps.Config.CheckoutStateTTL, *h.logger(c)), true
}

func (h *handlers) getCheckoutState(c *gin.Context) {
	p, ok := h.persistor(c)
	if !ok {
		return
	}
	state := p.GetStoredState(c.Request.Context())
	if state == nil {
		respondError(c, errs.NewError(errs.ErrCheckoutStateNotFound))
		return
	}
	c.JSON(http.StatusOK, checkoutStateResponse{SessionID: p.SessionID(), Step: p.GetStoredStep(c.Request.Context()), State: state})
}

func (h *handlers) patchCheckoutState(c *gin.Context) {
	var patch domain.CheckoutPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondError(c, errs.NewError(errs.ErrInvalidParams))
		return
	}
	p, ok := h.persistor(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	p.StoreState(ctx, patch)
	state := p.GetStoredState(ctx)
	if state == nil {
		respondError(c, errs.NewError(errs.ErrStorageUnavailable))
		return
	}
	c.JSON(http.StatusOK, checkoutStateResponse{SessionID: p.SessionID(), Step: state.CurrentStep, State: state})
}

func (h *handlers) deleteCheckoutState(c *gin.Context) {
	p, ok := h.persistor(c)
	if !ok {
		return
	}
	p.ClearStoredSession(c.Request.Context())
	c.Status(http.StatusNoContent)
}

func (h *handlers) getCart(c *gin.Context) {
	ctx := c.Request.Context()
	backend := h.deps.Backend(c.Request)
	profile, err := backend.CurrentUserProfile(ctx)
	if err != nil {
		h.logger(c).Warn().Err(err).Msg("resolve user profile")
		respondError(c, errs.NewError(errs.ErrUpstreamUnavailable))
		return
	}
	if profile == nil {
		respondError(c, errs.NewError(errs.ErrUnauthorized))
		return
	}

	cart, err := h.deps.Carts.Get(ctx, profile.ID, backend)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusOK, domain.Cart{Items: []domain.CartLine{}})
			return
		}
		h.logger(c).Warn().Err(err).Msg("load cart")
		respondError(c, errs.NewError(errs.ErrUpstreamUnavailable))
		return
	}
	c.JSON(http.StatusOK, cart)
}
