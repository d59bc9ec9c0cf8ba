package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bamanh2802/bookingcar/backend-booking/internal/repository"
)

// PermissionResolver flattens the role DAG into a permission set per role.
// Results are cached until Invalidate is called.
type PermissionResolver struct {
	roles repository.RoleRepository

	mu    sync.RWMutex
	cache map[string]map[string]struct{}
}

// NewPermissionResolver creates a PermissionResolver
func NewPermissionResolver(roles repository.RoleRepository) *PermissionResolver {
	return &PermissionResolver{
		roles: roles,
		cache: make(map[string]map[string]struct{}),
	}
}

// Permissions returns the effective permission set of roleID
func (r *PermissionResolver) Permissions(ctx context.Context, roleID string) (map[string]struct{}, error) {
	r.mu.RLock()
	perms, ok := r.cache[roleID]
	r.mu.RUnlock()
	if ok {
		return perms, nil
	}

	perms, err := r.walk(ctx, roleID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[roleID] = perms
	r.mu.Unlock()
	return perms, nil
}

// Resolve returns the effective permissions of roleID as a sorted slice
func (r *PermissionResolver) Resolve(ctx context.Context, roleID string) ([]string, error) {
	perms, err := r.Permissions(ctx, roleID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(perms))
	for p := range perms {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

// Invalidate drops cached sets. Any role may inherit from roleID, so the whole cache goes.
func (r *PermissionResolver) Invalidate(roleID string) {
	r.mu.Lock()
	r.cache = make(map[string]map[string]struct{})
	r.mu.Unlock()
}

// walk visits roleID and its ancestors breadth first; cycles are cut by the visited set
func (r *PermissionResolver) walk(ctx context.Context, roleID string) (map[string]struct{}, error) {
	perms := make(map[string]struct{})
	visited := map[string]struct{}{roleID: {}}
	queue := []string{roleID}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		role, err := r.roles.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get role %s: %w", id, err)
		}
		if role == nil {
			continue
		}
		for _, p := range role.Permissions {
			perms[p] = struct{}{}
		}
		for _, parent := range role.ParentIDs {
			if _, seen := visited[parent]; seen {
				continue
			}
			visited[parent] = struct{}{}
			queue = append(queue, parent)
		}
	}
	return perms, nil
}
