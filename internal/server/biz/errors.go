package biz

import "errors"

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrAccessDenied  = errors.New("access denied")
	ErrNotFound      = errors.New("not found")
	ErrImpersonation = errors.New("invalid impersonation state")
	ErrInternal      = errors.New("server internal error, please try again later")
)
