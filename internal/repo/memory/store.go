package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/sitehub/internal/domain/membership"
	"github.com/geocoder89/sitehub/internal/domain/project"
)

// Store keeps projects and memberships in process. It implements the same
// lookups as the postgres repositories and is safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	projects    map[string]project.Project
	memberships []membership.Membership

	// Err, when set, is returned by every call. Tests use it to simulate an
	// unavailable database.
	Err error
}

func NewStore() *Store {
	return &Store{
		projects: make(map[string]project.Project),
	}
}

// Create stores the project and its creator's membership together.
func (s *Store) Create(ctx context.Context, p project.Project, m membership.Membership) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.projects[p.ID] = p
	s.memberships = append(s.memberships, m)
	return nil
}

func (s *Store) FindProject(ctx context.Context, projectID string) (project.Project, error) {
	if s.Err != nil {
		return project.Project{}, s.Err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[projectID]
	if !ok {
		return project.Project{}, project.ErrNotFound
	}
	return p, nil
}

func (s *Store) GetByID(ctx context.Context, projectID string) (project.Project, error) {
	return s.FindProject(ctx, projectID)
}

func (s *Store) Update(ctx context.Context, projectID string, req project.UpdateProjectRequest) (project.Project, error) {
	if s.Err != nil {
		return project.Project{}, s.Err
	}
	if req.IsEmpty() {
		return project.Project{}, project.ErrNoChanges
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[projectID]
	if !ok {
		return project.Project{}, project.ErrNotFound
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = req.Description
	}
	if req.Address != nil {
		p.Address = req.Address
	}
	if req.Client != nil {
		p.Client = req.Client
	}
	if req.TotalValue != nil {
		p.TotalValue = req.TotalValue
	}
	if req.StartDate != nil {
		p.StartDate = req.StartDate
	}
	if req.PlannedEndDate != nil {
		p.PlannedEndDate = req.PlannedEndDate
	}
	if req.ActualEndDate != nil {
		p.ActualEndDate = req.ActualEndDate
	}
	if req.Status != nil {
		p.Status = *req.Status
	}
	if req.Progress != nil {
		p.Progress = project.ClampProgress(*req.Progress)
	}
	p.UpdatedAt = time.Now().UTC()

	s.projects[projectID] = p
	return p, nil
}

// Delete removes the project and, like the cascade in postgres, its
// memberships.
func (s *Store) Delete(ctx context.Context, projectID string) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[projectID]; !ok {
		return project.ErrNotFound
	}
	delete(s.projects, projectID)

	kept := s.memberships[:0]
	for _, m := range s.memberships {
		if m.ProjectID != projectID {
			kept = append(kept, m)
		}
	}
	s.memberships = kept
	return nil
}

func (s *Store) FindActiveMemberships(ctx context.Context, projectID, userID string) ([]membership.Membership, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []membership.Membership
	for _, m := range s.memberships {
		if m.ProjectID == projectID && m.UserID == userID && m.Active {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Store) ListActiveMembershipsForUser(ctx context.Context, userID string) ([]membership.ProjectMembership, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []membership.ProjectMembership
	for _, m := range s.memberships {
		if m.UserID != userID || !m.Active {
			continue
		}
		p, ok := s.projects[m.ProjectID]
		if !ok {
			continue
		}
		out = append(out, membership.ProjectMembership{
			Membership:    m,
			ProjectName:   p.Name,
			ProjectStatus: string(p.Status),
			CreatorID:     p.CreatorID,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].JoinedAt.After(out[j].JoinedAt)
	})
	return out, nil
}

// Add inserts a new active membership. A removed member gets a fresh row.
func (s *Store) Add(ctx context.Context, m membership.Membership) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[m.ProjectID]; !ok {
		return project.ErrNotFound
	}
	for _, existing := range s.memberships {
		if existing.ProjectID == m.ProjectID && existing.UserID == m.UserID && existing.Active {
			return membership.ErrAlreadyActive
		}
	}

	s.memberships = append(s.memberships, m)
	return nil
}

// Insert appends a membership row as is, skipping the active uniqueness
// check. It exists to reproduce integrity violations in tests.
func (s *Store) Insert(m membership.Membership) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memberships = append(s.memberships, m)
}

func (s *Store) GetMember(ctx context.Context, projectID, membershipID string) (membership.Member, error) {
	if s.Err != nil {
		return membership.Member{}, s.Err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.memberships {
		if m.ID == membershipID && m.ProjectID == projectID {
			return membership.Member{Membership: m}, nil
		}
	}
	return membership.Member{}, membership.ErrNotFound
}

func (s *Store) ListMembers(ctx context.Context, projectID string, f membership.ListMembersFilter) ([]membership.Member, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []membership.Member{}
	for _, m := range s.memberships {
		if m.ProjectID != projectID {
			continue
		}
		if f.Active != nil && m.Active != *f.Active {
			continue
		}
		out = append(out, membership.Member{Membership: m})
	}
	return out, nil
}

func (s *Store) UpdateRole(ctx context.Context, projectID, membershipID string, role membership.Role) (membership.Membership, error) {
	if s.Err != nil {
		return membership.Membership{}, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, m := range s.memberships {
		if m.ID != membershipID || m.ProjectID != projectID {
			continue
		}
		if !m.Active {
			return membership.Membership{}, membership.ErrInactive
		}
		s.memberships[i].Role = role
		return s.memberships[i], nil
	}
	return membership.Membership{}, membership.ErrNotFound
}

// Remove soft-deletes: the row stays, inactive, with LeftAt stamped.
func (s *Store) Remove(ctx context.Context, projectID, membershipID string) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, m := range s.memberships {
		if m.ID != membershipID || m.ProjectID != projectID {
			continue
		}
		if !m.Active {
			return membership.ErrInactive
		}
		now := time.Now().UTC()
		s.memberships[i].Active = false
		s.memberships[i].LeftAt = &now
		return nil
	}
	return membership.ErrNotFound
}

// CountMemberships counts every row for the project, active or not.
func (s *Store) CountMemberships(ctx context.Context, projectID string) (int, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, m := range s.memberships {
		if m.ProjectID == projectID {
			n++
		}
	}
	return n, nil
}
