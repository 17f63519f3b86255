package domain

import "errors"

var (
	ErrPollNotFound  = errors.New("poll not found")
	ErrInvalidPollID = errors.New("invalid poll id")
	ErrAlreadyVoted  = errors.New("user has already voted on this poll")
	ErrVoteNotFound  = errors.New("vote not found")
	ErrBusy          = errors.New("a vote for this poll is already being processed")

	ErrCacheMiss = errors.New("cache miss")

	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenInvalid       = errors.New("invalid or expired token")
	ErrForbidden          = errors.New("operation not allowed")
)
