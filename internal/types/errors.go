package types

import "errors"

// Sentinel errors shared across services and handlers. Repositories and
// services wrap these with fmt.Errorf("...: %w", ...) so callers can match
// them with errors.Is and map them to transport statuses in one place.
var ErrNotFound = errors.New("requested item not found")
var ErrConflict = errors.New("item already exists or conflict")
var ErrUnauthenticated = errors.New("authentication required or invalid credentials")
var ErrForbidden = errors.New("action forbidden")
var ErrBadRequest = errors.New("invalid or missing input")
var ErrUploadFailed = errors.New("asset upload failed")
var ErrInternal = errors.New("internal failure")
