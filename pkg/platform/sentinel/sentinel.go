package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: session, intent index or receipt does not exist
//   - ErrConflict: optimistic version check failed, reload and retry
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)
