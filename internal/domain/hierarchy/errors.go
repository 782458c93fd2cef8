package hierarchy

import "errors"

var (
	// ErrBodyNotFound indicates an unknown legislative body.
	ErrBodyNotFound = errors.New("legislative body not found")
	// ErrLevelNotFound indicates an unknown geolevel.
	ErrLevelNotFound = errors.New("geolevel not found")
	// ErrLevelCycle indicates the declared level nesting contains a cycle.
	ErrLevelCycle = errors.New("geolevel nesting contains a cycle")
	// ErrLevelChain indicates the declared level nesting is not a single chain.
	ErrLevelChain = errors.New("geolevel nesting is not a single parent chain")
	// ErrLevelNotInBody indicates a geolevel does not participate in a body.
	ErrLevelNotInBody = errors.New("geolevel does not participate in body")
)
