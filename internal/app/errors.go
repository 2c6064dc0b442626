package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrRoundNotFound   = errors.New("round not found")
	ErrRoundConflict   = errors.New("round is not in a state that allows this action")
	ErrInvalidArgument = errors.New("invalid round parameters")
)
