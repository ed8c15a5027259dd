package service

import (
	"context"

	"github.com/okian/stomp/internal/auth"
	"github.com/okian/stomp/internal/domain/model"
	"github.com/okian/stomp/internal/domain/policy"
	"github.com/okian/stomp/internal/domain/types"
)

// CreateContact adds an emergency contact for the caller.
func (s *Service) CreateContact(ctx context.Context, caller model.Actor, req types.ContactRequest) (model.Contact, error) {
	if caller.ID == "" {
		return model.Contact{}, policy.ErrUnauthorized
	}
	if err := auth.Validate(req); err != nil {
		return model.Contact{}, err
	}
	return s.store.CreateContact(ctx, contactFrom(caller, "", req))
}

// Contacts lists the caller's emergency contacts.
func (s *Service) Contacts(ctx context.Context, caller model.Actor) ([]model.Contact, error) {
	if caller.ID == "" {
		return nil, policy.ErrUnauthorized
	}
	return s.store.Contacts(ctx, caller.ID)
}

// Contact returns one of the caller's emergency contacts.
func (s *Service) Contact(ctx context.Context, caller model.Actor, id string) (model.Contact, error) {
	if caller.ID == "" {
		return model.Contact{}, policy.ErrUnauthorized
	}
	return s.store.Contact(ctx, caller.ID, id)
}

// UpdateContact replaces one of the caller's emergency contacts.
func (s *Service) UpdateContact(ctx context.Context, caller model.Actor, id string, req types.ContactRequest) (model.Contact, error) {
	if caller.ID == "" {
		return model.Contact{}, policy.ErrUnauthorized
	}
	if err := auth.Validate(req); err != nil {
		return model.Contact{}, err
	}
	return s.store.UpdateContact(ctx, contactFrom(caller, id, req))
}

// DeleteContact removes one of the caller's emergency contacts.
func (s *Service) DeleteContact(ctx context.Context, caller model.Actor, id string) error {
	if caller.ID == "" {
		return policy.ErrUnauthorized
	}
	return s.store.DeleteContact(ctx, caller.ID, id)
}

func contactFrom(owner model.Actor, id string, req types.ContactRequest) model.Contact {
	return model.Contact{
		ID:           id,
		UserID:       owner.ID,
		Name:         req.Name,
		Relationship: req.Relationship,
		Phone:        req.Phone,
		Email:        req.Email,
		Primary:      req.Primary,
	}
}
