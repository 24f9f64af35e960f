package invitations

import "errors"

var (
	ErrNotFound        = errors.New("invitations: not found")
	ErrForbidden       = errors.New("invitations: not a participant")
	ErrConflict        = errors.New("invitations: illegal status transition")
	ErrBusy            = errors.New("invitations: user is already in a call")
	ErrSelfCall        = errors.New("invitations: cannot call yourself")
	ErrOffline         = errors.New("invitations: receiver is offline")
	ErrInvalidArgument = errors.New("invitations: invalid argument")
)
