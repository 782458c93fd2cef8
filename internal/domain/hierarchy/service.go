package hierarchy

import (
	"context"
	"fmt"
	"log/slog"
)

// Repository provides persisted hierarchy configuration.
type Repository interface {
	ListLevels(ctx context.Context) ([]GeoLevel, error)
	ListBodies(ctx context.Context) ([]LegislativeBody, error)
}

// Service answers ordering questions about a body's geolevels. The hierarchy
// is admin configuration: it is loaded once at setup and never changes at
// runtime, so the service caches everything and validates up front. A cyclic
// or broken nesting is fatal here, before any edit is served.
type Service struct {
	levels map[int64]GeoLevel
	bodies map[int64]*LegislativeBody
	byName map[string]*LegislativeBody
	// ordered geolevels per body, coarsest first
	ordered map[int64][]GeoLevel
	logger  *slog.Logger
}

// NewService loads and validates the hierarchy configuration.
func NewService(ctx context.Context, repo Repository, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	levels, err := repo.ListLevels(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading geolevels: %w", err)
	}
	bodies, err := repo.ListBodies(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading legislative bodies: %w", err)
	}

	svc := &Service{
		levels:  make(map[int64]GeoLevel, len(levels)),
		bodies:  make(map[int64]*LegislativeBody, len(bodies)),
		byName:  make(map[string]*LegislativeBody, len(bodies)),
		ordered: make(map[int64][]GeoLevel, len(bodies)),
		logger:  logger,
	}
	for _, lvl := range levels {
		svc.levels[lvl.ID] = lvl
	}
	for i := range bodies {
		body := &bodies[i]
		chain, err := svc.orderLevels(body)
		if err != nil {
			return nil, fmt.Errorf("body %q: %w", body.Name, err)
		}
		svc.bodies[body.ID] = body
		svc.byName[body.Name] = body
		svc.ordered[body.ID] = chain
	}

	logger.Info("hierarchy loaded", "geolevels", len(levels), "bodies", len(bodies))
	return svc, nil
}

// orderLevels flattens a body's declared nesting into a coarsest-to-finest
// chain, rejecting cycles, forks, and dangling references.
func (s *Service) orderLevels(body *LegislativeBody) ([]GeoLevel, error) {
	if len(body.Levels) == 0 {
		return nil, ErrLevelChain
	}

	children := make(map[int64][]int64)
	var roots []int64
	for _, ll := range body.Levels {
		if _, ok := s.levels[ll.GeoLevelID]; !ok {
			return nil, fmt.Errorf("%w: geolevel %d", ErrLevelNotFound, ll.GeoLevelID)
		}
		if ll.ParentGeoLevelID == nil {
			roots = append(roots, ll.GeoLevelID)
		} else {
			children[*ll.ParentGeoLevelID] = append(children[*ll.ParentGeoLevelID], ll.GeoLevelID)
		}
	}
	if len(roots) != 1 {
		return nil, ErrLevelChain
	}

	chain := make([]GeoLevel, 0, len(body.Levels))
	seen := make(map[int64]bool, len(body.Levels))
	current := roots[0]
	for {
		if seen[current] {
			return nil, ErrLevelCycle
		}
		seen[current] = true
		chain = append(chain, s.levels[current])

		next, ok := children[current]
		if !ok {
			break
		}
		if len(next) != 1 {
			return nil, ErrLevelChain
		}
		current = next[0]
	}
	if len(chain) != len(body.Levels) {
		// a level pointed at a parent outside the walked chain
		return nil, ErrLevelCycle
	}
	return chain, nil
}

// Body returns a legislative body by ID.
func (s *Service) Body(id int64) (*LegislativeBody, error) {
	body, ok := s.bodies[id]
	if !ok {
		return nil, ErrBodyNotFound
	}
	return body, nil
}

// BodyByName returns a legislative body by its configured name.
func (s *Service) BodyByName(name string) (*LegislativeBody, error) {
	body, ok := s.byName[name]
	if !ok {
		return nil, ErrBodyNotFound
	}
	return body, nil
}

// Level returns a geolevel by ID.
func (s *Service) Level(id int64) (GeoLevel, error) {
	lvl, ok := s.levels[id]
	if !ok {
		return GeoLevel{}, ErrLevelNotFound
	}
	return lvl, nil
}

// LevelsFor returns a body's geolevels ordered coarsest to finest.
func (s *Service) LevelsFor(bodyID int64) ([]GeoLevel, error) {
	chain, ok := s.ordered[bodyID]
	if !ok {
		return nil, ErrBodyNotFound
	}
	return chain, nil
}

// BaseLevel returns a body's finest geolevel, the tier assignment ground
// truth is kept at.
func (s *Service) BaseLevel(bodyID int64) (GeoLevel, error) {
	chain, ok := s.ordered[bodyID]
	if !ok {
		return GeoLevel{}, ErrBodyNotFound
	}
	return chain[len(chain)-1], nil
}

// IsBelow reports whether level a is strictly finer than level b within a
// body's ordering. It is irreflexive: IsBelow(x, x) is always false.
func (s *Service) IsBelow(bodyID, aLevelID, bLevelID int64) (bool, error) {
	chain, ok := s.ordered[bodyID]
	if !ok {
		return false, ErrBodyNotFound
	}
	ai, bi := -1, -1
	for i, lvl := range chain {
		if lvl.ID == aLevelID {
			ai = i
		}
		if lvl.ID == bLevelID {
			bi = i
		}
	}
	if ai < 0 || bi < 0 {
		return false, ErrLevelNotInBody
	}
	return ai > bi, nil
}
