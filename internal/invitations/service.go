// Package invitations owns the server side of call invitations: who may call
// whom, the status transition table, and fan-out of changes to subscribers.
package invitations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"listenlink/internal/calls"
)

// Presence answers whether a user can currently be reached.
type Presence interface {
	Online(ctx context.Context, userID int64) (bool, error)
}

// Notifier receives every stored change.
type Notifier interface {
	Publish(inv calls.Invitation)
}

// Auditor records transitions. Failures are logged, never returned.
type Auditor interface {
	LogTransition(ctx context.Context, invitationID, actorUserID int64, from, to string) error
}

// Recorder counts invitation activity.
type Recorder interface {
	InvitationCreated(callType calls.CallType)
	InvitationTransition(from, to calls.Status)
	InvitationRefused(reason string)
}

type Option func(*Service)

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }
func WithAuditor(a Auditor) Option   { return func(s *Service) { s.auditor = a } }
func WithRecorder(r Recorder) Option { return func(s *Service) { s.recorder = r } }
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// DefaultMaxCallDuration bounds how long an accepted invitation keeps both
// users busy when neither client reports the end of the call.
const DefaultMaxCallDuration = 4 * time.Hour

// WithMaxCallDuration sets the age after which an accepted invitation is
// expired by the sweeper. Non-positive values keep the default.
func WithMaxCallDuration(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.maxCall = d
		}
	}
}

// WithClock is for deterministic tests.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.clock = now } }

// Service enforces invitation rules.
//
// Invariants:
// - a user is on at most one pending or accepted invitation at a time
// - status only moves along calls.Status.CanTransitionTo
// - only the two participants may read or move an invitation
type Service struct {
	repo     Repository
	presence Presence
	notifier Notifier
	auditor  Auditor
	recorder Recorder
	logger   *slog.Logger
	clock    func() time.Time
	maxCall  time.Duration

	// createMu serializes the busy check with the insert.
	createMu sync.Mutex
}

func NewService(repo Repository, presence Presence, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		presence: presence,
		logger:   slog.Default(),
		clock:    time.Now,
		maxCall:  DefaultMaxCallDuration,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create opens a pending invitation from callerID to receiverID.
func (s *Service) Create(ctx context.Context, callerID, receiverID int64, callType calls.CallType) (calls.Invitation, error) {
	if callerID <= 0 || receiverID <= 0 || !callType.Valid() {
		return calls.Invitation{}, ErrInvalidArgument
	}
	if callerID == receiverID {
		return calls.Invitation{}, s.refuse("self", ErrSelfCall)
	}
	if s.presence != nil {
		online, err := s.presence.Online(ctx, receiverID)
		if err != nil {
			return calls.Invitation{}, fmt.Errorf("presence lookup: %w", err)
		}
		if !online {
			return calls.Invitation{}, s.refuse("offline", ErrOffline)
		}
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()

	for _, uid := range []int64{callerID, receiverID} {
		live, err := s.repo.Live(ctx, uid)
		if err != nil {
			return calls.Invitation{}, err
		}
		if live {
			return calls.Invitation{}, s.refuse("busy", ErrBusy)
		}
	}

	now := s.clock().UTC()
	inv, err := s.repo.Create(ctx, calls.Invitation{
		CallerID:    callerID,
		ReceiverID:  receiverID,
		CallType:    callType,
		Status:      calls.StatusPending,
		ChannelName: calls.ChannelName(callerID, receiverID),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if errors.Is(err, ErrBusy) {
		return calls.Invitation{}, s.refuse("busy", err)
	}
	if err != nil {
		return calls.Invitation{}, err
	}

	s.logger.Info("invitation created",
		"invitation_id", inv.ID, "caller_id", callerID, "receiver_id", receiverID, "call_type", callType)
	if s.recorder != nil {
		s.recorder.InvitationCreated(callType)
	}
	s.publish(inv)
	return inv, nil
}

// allowedFor reports whether the participant on the given side may set status.
func allowedFor(isReceiver bool, to calls.Status) bool {
	switch to {
	case calls.StatusAccepted, calls.StatusRejected:
		return isReceiver
	case calls.StatusCancelled:
		return !isReceiver
	case calls.StatusCompleted, calls.StatusMissed:
		return true
	default:
		return false
	}
}

// UpdateStatus moves an invitation on behalf of one participant. Terminal
// statuses record endedAt, defaulting to now.
func (s *Service) UpdateStatus(ctx context.Context, actorID, id int64, to calls.Status, endedAt *time.Time) (calls.Invitation, error) {
	if !to.Valid() || to == calls.StatusPending {
		return calls.Invitation{}, ErrInvalidArgument
	}
	cur, err := s.repo.Get(ctx, id)
	if err != nil {
		return calls.Invitation{}, err
	}
	isCaller, isReceiver := cur.CallerID == actorID, cur.ReceiverID == actorID
	if !isCaller && !isReceiver {
		return calls.Invitation{}, ErrForbidden
	}
	if !allowedFor(isReceiver, to) {
		return calls.Invitation{}, ErrForbidden
	}
	if !cur.Status.CanTransitionTo(to) {
		return calls.Invitation{}, fmt.Errorf("%w: %s -> %s", ErrConflict, cur.Status, to)
	}

	now := s.clock().UTC()
	if to.Terminal() {
		if endedAt == nil {
			endedAt = &now
		} else {
			e := endedAt.UTC()
			endedAt = &e
		}
	} else {
		endedAt = nil
	}

	inv, err := s.repo.Transition(ctx, id, cur.Status, to, now, endedAt)
	if errors.Is(err, ErrConflict) {
		return calls.Invitation{}, fmt.Errorf("%w: %d moved concurrently", ErrConflict, id)
	}
	if err != nil {
		return calls.Invitation{}, err
	}

	s.afterTransition(ctx, inv, cur.Status, actorID)
	return inv, nil
}

// Pending lists invitations waiting on receiverID, newest first.
func (s *Service) Pending(ctx context.Context, receiverID int64) ([]calls.Invitation, error) {
	return s.repo.PendingFor(ctx, receiverID)
}

// Get returns an invitation visible to actorID.
func (s *Service) Get(ctx context.Context, actorID, id int64) (calls.Invitation, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return calls.Invitation{}, err
	}
	if inv.CallerID != actorID && inv.ReceiverID != actorID {
		return calls.Invitation{}, ErrForbidden
	}
	return inv, nil
}

// ExpireStale marks pending invitations older than ringWindow as missed, and
// accepted ones answered longer than the max call duration ago as missed, so
// abandoned calls stop counting as busy. It returns how many moved.
// Invitations that changed in the meantime are skipped.
func (s *Service) ExpireStale(ctx context.Context, ringWindow time.Duration) (int, error) {
	now := s.clock().UTC()
	stale, err := s.repo.StalePending(ctx, now.Add(-ringWindow))
	if err != nil {
		return 0, err
	}
	n, err := s.expire(ctx, stale, calls.StatusPending, now)
	if err != nil {
		return n, err
	}

	abandoned, err := s.repo.StaleAccepted(ctx, now.Add(-s.maxCall))
	if err != nil {
		return n, err
	}
	m, err := s.expire(ctx, abandoned, calls.StatusAccepted, now)
	n += m
	if err != nil {
		return n, err
	}
	if n > 0 {
		s.logger.Info("expired stale invitations", "count", n, "abandoned_calls", m)
	}
	return n, nil
}

func (s *Service) expire(ctx context.Context, list []calls.Invitation, from calls.Status, now time.Time) (int, error) {
	n := 0
	for _, cur := range list {
		inv, err := s.repo.Transition(ctx, cur.ID, from, calls.StatusMissed, now, &now)
		if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return n, err
		}
		n++
		s.afterTransition(ctx, inv, from, 0)
	}
	return n, nil
}

func (s *Service) afterTransition(ctx context.Context, inv calls.Invitation, from calls.Status, actorID int64) {
	s.logger.Info("invitation transition",
		"invitation_id", inv.ID, "from", from, "to", inv.Status, "actor_id", actorID)
	if s.recorder != nil {
		s.recorder.InvitationTransition(from, inv.Status)
	}
	if s.auditor != nil {
		if err := s.auditor.LogTransition(ctx, inv.ID, actorID, string(from), string(inv.Status)); err != nil {
			s.logger.Warn("audit append failed", "invitation_id", inv.ID, "err", err)
		}
	}
	s.publish(inv)
}

func (s *Service) refuse(reason string, err error) error {
	if s.recorder != nil {
		s.recorder.InvitationRefused(reason)
	}
	return err
}

func (s *Service) publish(inv calls.Invitation) {
	if s.notifier != nil {
		s.notifier.Publish(inv)
	}
}

// RunSweeper calls ExpireStale every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval, ringWindow time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.ExpireStale(ctx, ringWindow); err != nil && ctx.Err() == nil {
				s.logger.Error("invitation sweep failed", "err", err)
			}
		}
	}
}
