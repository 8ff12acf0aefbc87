package staff

import "context"

type Service struct {
	members Repository
}

func NewService(members Repository) *Service {
	return &Service{members: members}
}

// Roster lists the users linked to owner. Never nil.
func (s *Service) Roster(ctx context.Context, owner string) ([]*Member, error) {
	items, err := s.members.ListByPhysician(ctx, owner)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*Member{}
	}
	return items, nil
}
