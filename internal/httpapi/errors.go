package httpapi

import "errors"

var (
	errNotFound = errors.New("asset not found")
	errBadMode  = errors.New("invalid invalidation mode")
)
