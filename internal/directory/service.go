package directory

import (
	"context"
	"sync"
)

// Service exposes the read-only attribute exports. Both listings return an
// empty slice (not nil, not an error) when the backing table is empty.
type Service interface {
	ListUserAttributes(ctx context.Context) ([]UserAttributes, error)
	ListOrgAttributes(ctx context.Context) ([]OrgAttributes, error)
}

// InMemory implements Service for tests and local development without a
// database.
type InMemory struct {
	mu    sync.RWMutex
	users []UserAttributes
	orgs  []OrgAttributes

	// Err, when set, is returned by every listing. Lets tests exercise the
	// persistence-error path.
	Err error
}

// NewInMemory creates an empty in-memory directory.
func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) SetUsers(users []UserAttributes) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append([]UserAttributes(nil), users...)
}

func (s *InMemory) SetOrgs(orgs []OrgAttributes) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orgs = append([]OrgAttributes(nil), orgs...)
}

func (s *InMemory) ListUserAttributes(ctx context.Context) ([]UserAttributes, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]UserAttributes, len(s.users))
	copy(out, s.users)
	return out, nil
}

func (s *InMemory) ListOrgAttributes(ctx context.Context) ([]OrgAttributes, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]OrgAttributes, len(s.orgs))
	copy(out, s.orgs)
	return out, nil
}
