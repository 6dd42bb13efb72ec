package catalog

import "fmt"

// AuthError means guest token issuance failed. It is fatal to every fetch
// depending on that token for the attempt; callers must not retry in a loop.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NetworkError means a single HTTP call failed, either at transport level or
// with a non-2xx status. It is isolated to the one fetch that raised it.
type NetworkError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// MenuUnavailableError means no live data could be fetched (window closed or
// the call failed) and no cache entry exists for the menu id. The id is
// dropped from results; this is never a blocking error.
type MenuUnavailableError struct {
	MenuID string
}

func (e *MenuUnavailableError) Error() string {
	return fmt.Sprintf("menu %s unavailable: no live data and no cache entry", e.MenuID)
}
