// Package httpapi holds the gin handlers for the calls API. Handlers stay
// thin: parse and validate input, call a service, write the envelope.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"listenlink/internal/audit"
	"listenlink/internal/auth"
	"listenlink/internal/calls"
	"listenlink/internal/chat"
	"listenlink/internal/history"
	"listenlink/internal/invitations"
	"listenlink/internal/presence"
	"listenlink/internal/users"
	"listenlink/pkg/logger"
)

// Handlers groups HTTP handlers for dependency injection.
type Handlers struct {
	Auth        *auth.Manager
	Users       users.Repository
	Presence    presence.Tracker
	Invitations *invitations.Service
	Chat        *chat.Service
	History     *history.Service
	Audit       *audit.Service

	// RingWindow is passed to ExpireStale by the admin sweep.
	RingWindow time.Duration
}

func identity(c *gin.Context) (int64, bool) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil {
		fail(c, http.StatusUnauthorized, "identity required")
		return 0, false
	}
	return uid, true
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return 0
	}
	return n
}

// --- Auth ---

type loginRequest struct {
	UserID int64 `json:"user_id"`
}

// Login issues a token pair for a known user.
//
// NOTE: there is no credential check; accounts are provisioned out of band
// and this endpoint is meant for trusted networks.
func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID <= 0 {
		fail(c, http.StatusBadRequest, "user_id required")
		return
	}
	u, err := h.Users.Get(c.Request.Context(), req.UserID)
	if errors.Is(err, users.ErrNotFound) {
		fail(c, http.StatusUnauthorized, "unknown user")
		return
	}
	if err != nil {
		failErr(c, err)
		return
	}
	h.issue(c, u)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh trades a refresh token for a new pair. The role is re-read from
// the directory so demotions take effect.
func (h Handlers) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		fail(c, http.StatusBadRequest, "refresh_token required")
		return
	}
	claims, err := h.Auth.Verify(req.RefreshToken, auth.TokenTypeRefresh, time.Now())
	if err != nil {
		fail(c, http.StatusUnauthorized, "invalid token")
		return
	}
	u, err := h.Users.Get(c.Request.Context(), claims.UserID)
	if err != nil {
		fail(c, http.StatusUnauthorized, "unknown user")
		return
	}
	h.issue(c, u)
}

func (h Handlers) issue(c *gin.Context, u users.User) {
	pair, err := h.Auth.IssuePair(time.Now(), u.ID, u.Role)
	if err != nil {
		logger.FromGin(c).Error("token issuance failed", "user_id", u.ID, "err", err)
		fail(c, http.StatusInternalServerError, "token issuance failed")
		return
	}
	respond(c, http.StatusOK, pair)
}

// --- Users ---

func (h Handlers) userRef(ctx context.Context, id int64) (calls.UserRef, error) {
	u, err := h.Users.Get(ctx, id)
	if err != nil {
		return calls.UserRef{}, err
	}
	ref := calls.UserRef{ID: u.ID, DisplayName: u.DisplayName}
	if h.Presence != nil {
		online, err := h.Presence.Online(ctx, id)
		if err != nil {
			logger.From(ctx).Warn("presence lookup failed", "user_id", id, "err", err)
		}
		ref.Online = online
	}
	return ref, nil
}

func (h Handlers) GetUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ref, err := h.userRef(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusOK, ref)
}

// decorate fills the display records clients show next to a call. Missing
// directory entries leave the ref nil.
func (h Handlers) decorate(ctx context.Context, invs []calls.Invitation) {
	refs := map[int64]*calls.UserRef{}
	lookup := func(id int64) *calls.UserRef {
		if r, ok := refs[id]; ok {
			return r
		}
		var out *calls.UserRef
		if ref, err := h.userRef(ctx, id); err == nil {
			out = &ref
		}
		refs[id] = out
		return out
	}
	for i := range invs {
		invs[i].Caller = lookup(invs[i].CallerID)
		invs[i].Receiver = lookup(invs[i].ReceiverID)
	}
}

// --- Invitations ---

type createInvitationRequest struct {
	ReceiverID int64          `json:"receiver_id"`
	CallType   calls.CallType `json:"call_type"`
}

func (h Handlers) CreateInvitation(c *gin.Context) {
	uid, ok := identity(c)
	if !ok {
		return
	}
	var req createInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid json")
		return
	}
	if _, err := h.Users.Get(c.Request.Context(), req.ReceiverID); err != nil {
		failErr(c, err)
		return
	}
	inv, err := h.Invitations.Create(c.Request.Context(), uid, req.ReceiverID, req.CallType)
	if err != nil {
		failErr(c, err)
		return
	}
	out := []calls.Invitation{inv}
	h.decorate(c.Request.Context(), out)
	respond(c, http.StatusCreated, out[0])
}

type updateInvitationRequest struct {
	Status calls.Status `json:"status"`
	// EndedAt is unix seconds.
	EndedAt *int64 `json:"ended_at"`
}

func (h Handlers) UpdateInvitation(c *gin.Context) {
	uid, ok := identity(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid json")
		return
	}
	var endedAt *time.Time
	if req.EndedAt != nil {
		t := time.Unix(*req.EndedAt, 0).UTC()
		endedAt = &t
	}
	inv, err := h.Invitations.UpdateStatus(c.Request.Context(), uid, id, req.Status, endedAt)
	if err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusOK, inv)
}

func (h Handlers) PendingInvitations(c *gin.Context) {
	uid, ok := identity(c)
	if !ok {
		return
	}
	list, err := h.pending(c.Request.Context(), uid)
	if err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusOK, list)
}

func (h Handlers) pending(ctx context.Context, uid int64) ([]calls.Invitation, error) {
	list, err := h.Invitations.Pending(ctx, uid)
	if err != nil {
		return nil, err
	}
	h.decorate(ctx, list)
	return list, nil
}

func (h Handlers) GetInvitation(c *gin.Context) {
	uid, ok := identity(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	inv, err := h.Invitations.Get(c.Request.Context(), uid, id)
	if err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusOK, inv)
}

func (h Handlers) CallHistory(c *gin.Context) {
	uid, ok := identity(c)
	if !ok {
		return
	}
	sum, err := h.History.Summary(c.Request.Context(), uid, queryInt(c, "recent"))
	if err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusOK, sum)
}

// --- Chat ---

type sendMessageRequest struct {
	RecipientID int64  `json:"recipient_id"`
	Content     string `json:"content"`
}

func (h Handlers) SendMessage(c *gin.Context) {
	uid, ok := identity(c)
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid json")
		return
	}
	if _, err := h.Users.Get(c.Request.Context(), req.RecipientID); err != nil {
		failErr(c, err)
		return
	}
	m, err := h.Chat.Send(c.Request.Context(), uid, req.RecipientID, req.Content)
	if err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusCreated, m)
}

func (h Handlers) Thread(c *gin.Context) {
	uid, ok := identity(c)
	if !ok {
		return
	}
	other, ok := pathID(c, "id")
	if !ok {
		return
	}
	msgs, err := h.Chat.Thread(c.Request.Context(), uid, other, queryInt(c, "limit"))
	if err != nil {
		failErr(c, err)
		return
	}
	respond(c, http.StatusOK, msgs)
}

// --- Admin ---

// ExpireStale runs the ring-window sweep on demand.
// RBAC: admin, or the hidden support role.
func (h Handlers) ExpireStale(c *gin.Context) {
	uid, ok := identity(c)
	if !ok {
		return
	}
	n, err := h.Invitations.ExpireStale(c.Request.Context(), h.RingWindow)
	if err != nil {
		failErr(c, err)
		return
	}
	if h.Audit != nil {
		role, _ := auth.Role(c.Request.Context())
		msg := "expired " + strconv.Itoa(n) + " stale invitations"
		if err := h.Audit.LogAdminAction(c.Request.Context(), uid, role, c.ClientIP(), msg); err != nil {
			logger.FromGin(c).Warn("audit append failed", "err", err)
		}
	}
	respond(c, http.StatusOK, gin.H{"expired": n})
}

// AuditTrail lists the recorded transitions of one invitation.
func (h Handlers) AuditTrail(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	evs, err := h.Audit.Trail(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	if evs == nil {
		evs = []audit.Event{}
	}
	respond(c, http.StatusOK, evs)
}

func Healthz(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{"status": "ok"})
}
