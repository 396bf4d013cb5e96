package social

import "errors"

var (
	ErrUserNotFound    = errors.New("social: user not found")
	ErrSelfTarget      = errors.New("social: cannot target yourself")
	ErrRequestNotFound = errors.New("social: friend request not found")
)
