package service

import (
	"context"

	"github.com/google/uuid"

	"colabtrack/internal/repository"
)

// expandFunc returns the direct neighbours of a set of nodes in one store round trip.
type expandFunc func(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)

// reaches reports whether target can be reached from start by following expand,
// walking the graph breadth-first one level per call.
func reaches(ctx context.Context, start, target uuid.UUID, expand expandFunc) (bool, error) {
	visited := map[uuid.UUID]struct{}{start: {}}
	frontier := []uuid.UUID{start}
	for len(frontier) > 0 {
		if ctx.Err() != nil {
			return false, repository.ErrTimeout
		}
		next, err := expand(ctx, frontier)
		if err != nil {
			return false, err
		}
		var fresh []uuid.UUID
		for _, id := range next {
			if id == target {
				return true, nil
			}
			if _, seen := visited[id]; !seen {
				visited[id] = struct{}{}
				fresh = append(fresh, id)
			}
		}
		frontier = fresh
	}
	return false, nil
}

// collect returns root followed by every node reachable from it, each once.
func collect(ctx context.Context, root uuid.UUID, expand expandFunc) ([]uuid.UUID, error) {
	visited := map[uuid.UUID]struct{}{root: {}}
	all := []uuid.UUID{root}
	frontier := []uuid.UUID{root}
	for len(frontier) > 0 {
		if ctx.Err() != nil {
			return nil, repository.ErrTimeout
		}
		next, err := expand(ctx, frontier)
		if err != nil {
			return nil, err
		}
		var fresh []uuid.UUID
		for _, id := range next {
			if _, seen := visited[id]; !seen {
				visited[id] = struct{}{}
				fresh = append(fresh, id)
			}
		}
		all = append(all, fresh...)
		frontier = fresh
	}
	return all, nil
}
