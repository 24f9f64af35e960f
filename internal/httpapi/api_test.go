package httpapi_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"listenlink/internal/audit"
	"listenlink/internal/auth"
	"listenlink/internal/calls"
	"listenlink/internal/chat"
	"listenlink/internal/config"
	"listenlink/internal/history"
	"listenlink/internal/httpapi"
	"listenlink/internal/invitations"
	"listenlink/internal/presence"
	"listenlink/internal/transport"
	"listenlink/internal/users"
)

type stack struct {
	srv     *httptest.Server
	auth    *auth.Manager
	repo    *invitations.MemoryRepo
	audit   *audit.MemoryRepo
	limiter *httpapi.UserRateLimiter
}

func newStack(t *testing.T, invitesPerMinute int) *stack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mgr, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	dir := users.NewMemoryRepo(
		users.User{ID: 1, DisplayName: "Ann", Role: "member"},
		users.User{ID: 2, DisplayName: "Bea", Role: "listener"},
		users.User{ID: 3, DisplayName: "Sam", Role: "support"},
		users.User{ID: 4, DisplayName: "Dee", Role: "member"},
	)
	tracker := presence.NewMemoryTracker(time.Minute)
	hub := invitations.NewHub(nil)
	repo := invitations.NewMemoryRepo()
	auditRepo := audit.NewMemoryRepo()
	auditSvc := audit.NewService(auditRepo)
	svc := invitations.NewService(repo, tracker, invitations.WithNotifier(hub), invitations.WithAuditor(auditSvc))

	h := httpapi.Handlers{
		Auth:        mgr,
		Users:       dir,
		Presence:    tracker,
		Invitations: svc,
		Chat:        chat.NewService(chat.NewMemoryRepo(), nil),
		History:     history.NewService(repo),
		Audit:       auditSvc,
		RingWindow:  30 * time.Second,
	}
	limiter := httpapi.NewUserRateLimiter(invitesPerMinute)

	r := gin.New()
	httpapi.Register(r, httpapi.Routes{
		Handlers:      h,
		Streamer:      httpapi.Streamer{Handlers: h, Hub: hub},
		AuthMW:        auth.RequireAccessToken(mgr),
		CreateLimiter: limiter,
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &stack{srv: srv, auth: mgr, repo: repo, audit: auditRepo, limiter: limiter}
}

func (s *stack) token(t *testing.T, userID int64, role string) string {
	t.Helper()
	pair, err := s.auth.IssuePair(time.Now(), userID, role)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	return pair.AccessToken
}

func (s *stack) client(t *testing.T, userID int64, role string) *transport.Client {
	return transport.NewClient(s.srv.URL, s.token(t, userID, role))
}

func TestCallLifecycleOverHTTP(t *testing.T) {
	s := newStack(t, 10)
	ctx := context.Background()
	ann := s.client(t, 1, "member")
	bea := s.client(t, 2, "listener")

	// Any authenticated request marks Bea online.
	if list, err := bea.PendingInvitations(ctx); err != nil || len(list) != 0 {
		t.Fatalf("expected empty pending list, got %v %v", list, err)
	}
	ref, err := ann.User(ctx, 2)
	if err != nil || !ref.Online || ref.DisplayName != "Bea" {
		t.Fatalf("expected Bea online, got %+v %v", ref, err)
	}

	inv, err := ann.CreateInvitation(ctx, 2, calls.CallTypeVideo)
	if err != nil {
		t.Fatalf("CreateInvitation: %v", err)
	}
	if inv.Status != calls.StatusPending || inv.ChannelName != "ch_1_2" || inv.Caller == nil || inv.Caller.DisplayName != "Ann" {
		t.Fatalf("unexpected invitation %+v", inv)
	}

	pending, err := bea.PendingInvitations(ctx)
	if err != nil || len(pending) != 1 || pending[0].ID != inv.ID || pending[0].Caller == nil || !pending[0].Caller.Online {
		t.Fatalf("expected Ann's invitation pending for Bea, got %+v %v", pending, err)
	}

	if _, err := ann.UpdateInvitation(ctx, inv.ID, calls.StatusAccepted, nil); !errors.Is(err, transport.ErrForbidden) {
		t.Fatalf("expected caller accept forbidden, got %v", err)
	}
	if _, err := bea.UpdateInvitation(ctx, inv.ID, calls.StatusAccepted, nil); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if got, err := ann.GetInvitation(ctx, inv.ID); err != nil || got.Status != calls.StatusAccepted {
		t.Fatalf("expected accepted seen by caller, got %+v %v", got, err)
	}

	ended := time.Now().Unix()
	done, err := ann.UpdateInvitation(ctx, inv.ID, calls.StatusCompleted, &ended)
	if err != nil || done.Status != calls.StatusCompleted || done.EndedAt == nil || done.EndedAt.Unix() != ended {
		t.Fatalf("unexpected completion %+v %v", done, err)
	}
	if _, err := bea.UpdateInvitation(ctx, inv.ID, calls.StatusCompleted, nil); !errors.Is(err, transport.ErrConflict) {
		t.Fatalf("expected conflict for second end, got %v", err)
	}

	if err := ann.SendMessage(ctx, 2, calls.FormatCallLog(false, calls.StatusCompleted, 95)); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	thread, err := bea.Thread(ctx, 1)
	if err != nil || len(thread) != 1 || thread[0].Kind != chat.KindCallLog || thread[0].Content != "[CALL_LOG] VIDEO 01:35" {
		t.Fatalf("unexpected thread %+v %v", thread, err)
	}

	hist, err := ann.History(ctx)
	if err != nil || hist.CompletedCalls != 1 || len(hist.Recent) != 1 {
		t.Fatalf("unexpected history %+v %v", hist, err)
	}

	if n := len(s.audit.Events()); n != 2 {
		t.Fatalf("expected 2 audited transitions, got %d", n)
	}

	trailURL := s.srv.URL + "/v1/admin/invitations/" + strconv.FormatInt(inv.ID, 10) + "/audit"
	getJSON(t, trailURL, s.token(t, 1, "member"), http.StatusForbidden, nil)
	var trail []audit.Event
	getJSON(t, trailURL, s.token(t, 3, "support"), http.StatusOK, &trail)
	if len(trail) != 2 || trail[0].ToStatus != "accepted" || trail[0].ActorUserID != 2 || trail[1].ToStatus != "completed" {
		t.Fatalf("unexpected audit trail %+v", trail)
	}
}

func TestCreateInvitationRefusals(t *testing.T) {
	s := newStack(t, 10)
	ctx := context.Background()
	ann := s.client(t, 1, "member")

	if _, err := ann.CreateInvitation(ctx, 4, calls.CallTypeVoice); !errors.Is(err, transport.ErrConflict) {
		t.Fatalf("expected offline conflict, got %v", err)
	}
	if _, err := ann.CreateInvitation(ctx, 99, calls.CallTypeVoice); !errors.Is(err, transport.ErrNotFound) {
		t.Fatalf("expected unknown user, got %v", err)
	}
	var apiErr *transport.APIError
	if _, err := ann.CreateInvitation(ctx, 1, calls.CallTypeVoice); !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Fatalf("expected 400 for self call, got %v", err)
	}

	sam := s.client(t, 3, "support")
	if _, err := sam.CreateInvitation(ctx, 1, calls.CallTypeVoice); !errors.Is(err, transport.ErrForbidden) {
		t.Fatalf("expected hidden role unable to call, got %v", err)
	}

	anon := transport.NewClient(s.srv.URL, "")
	if _, err := anon.PendingInvitations(ctx); !errors.Is(err, transport.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestCreateInvitationRateLimited(t *testing.T) {
	s := newStack(t, 1)
	ctx := context.Background()
	bea := s.client(t, 2, "listener")
	_, _ = bea.PendingInvitations(ctx)

	ann := s.client(t, 1, "member")
	if _, err := ann.CreateInvitation(ctx, 2, calls.CallTypeVoice); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := ann.CreateInvitation(ctx, 2, calls.CallTypeVoice); !errors.Is(err, transport.ErrRateLimited) {
		t.Fatalf("expected rate limit, got %v", err)
	}
}

func TestAdminExpireRequiresRole(t *testing.T) {
	s := newStack(t, 10)

	post := func(token string) int {
		req, _ := http.NewRequest(http.MethodPost, s.srv.URL+"/v1/admin/invitations/expire", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if code := post(s.token(t, 1, "member")); code != http.StatusForbidden {
		t.Fatalf("expected 403 for member, got %d", code)
	}
	if code := post(s.token(t, 3, "support")); code != http.StatusOK {
		t.Fatalf("expected 200 for support, got %d", code)
	}
	evs := s.audit.Events()
	if len(evs) != 1 || evs[0].Type != audit.EventTypeAdminAction || evs[0].ActorRole != "support" {
		t.Fatalf("expected admin action audited, got %+v", evs)
	}
}

func TestLoginAndRefresh(t *testing.T) {
	s := newStack(t, 10)

	var pair auth.TokenPair
	doJSON(t, s.srv.URL+"/v1/auth/login", `{"user_id":2}`, http.StatusOK, &pair)
	claims, err := s.auth.Verify(pair.AccessToken, auth.TokenTypeAccess, time.Now())
	if err != nil || claims.UserID != 2 || claims.Role != "listener" {
		t.Fatalf("unexpected claims %+v %v", claims, err)
	}

	var refreshed auth.TokenPair
	doJSON(t, s.srv.URL+"/v1/auth/refresh", `{"refresh_token":"`+pair.RefreshToken+`"}`, http.StatusOK, &refreshed)
	if refreshed.AccessToken == "" {
		t.Fatalf("expected new access token")
	}

	doJSON(t, s.srv.URL+"/v1/auth/login", `{"user_id":42}`, http.StatusUnauthorized, nil)
	doJSON(t, s.srv.URL+"/v1/auth/refresh", `{"refresh_token":"`+pair.AccessToken+`"}`, http.StatusUnauthorized, nil)
}
