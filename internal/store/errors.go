package store

import "errors"

var (
	ErrTicketNotFound      = errors.New("ticket not found")
	ErrNoTicket            = errors.New("no ticket available")
	ErrInvalidState        = errors.New("invalid ticket state")
	ErrTicketClaimed       = errors.New("ticket already claimed by another window")
	ErrSequenceUnavailable = errors.New("ticket sequence unavailable")
	ErrSessionNotFound     = errors.New("session not found")
)
