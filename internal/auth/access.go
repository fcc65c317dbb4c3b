package auth

import (
	"context"
	"errors"

	"github.com/GoSim-25-26J-441/project-tracker/internal/content"
	"github.com/GoSim-25-26J-441/project-tracker/internal/users"
)

// RoleLookup resolves a user's role. users.Repo implements it.
type RoleLookup interface {
	RoleOf(ctx context.Context, userID int64) (string, error)
}

// PostLookup fetches the record whose ownership decides author rights.
type PostLookup interface {
	Get(ctx context.Context, id int64) (*content.Post, error)
}

// RoleAccess answers authorization questions from user roles:
//
//	administrator  create, edit any, delete any
//	editor         create, edit any
//	author         create, edit own
//	others         nothing
//
// Anonymous callers (user id 0) and unknown users get nothing.
type RoleAccess struct {
	roles RoleLookup
	posts PostLookup
}

func NewRoleAccess(roles RoleLookup, posts PostLookup) *RoleAccess {
	return &RoleAccess{roles: roles, posts: posts}
}

func (a *RoleAccess) CanCreate(ctx context.Context, userID int64) (bool, error) {
	role, err := a.role(ctx, userID)
	if err != nil {
		return false, err
	}
	switch role {
	case users.RoleAdministrator, users.RoleEditor, users.RoleAuthor:
		return true, nil
	}
	return false, nil
}

func (a *RoleAccess) CanEdit(ctx context.Context, userID, recordID int64) (bool, error) {
	role, err := a.role(ctx, userID)
	if err != nil {
		return false, err
	}
	switch role {
	case users.RoleAdministrator, users.RoleEditor:
		return true, nil
	case users.RoleAuthor:
		return a.owns(ctx, userID, recordID)
	}
	return false, nil
}

func (a *RoleAccess) CanDelete(ctx context.Context, userID, recordID int64) (bool, error) {
	role, err := a.role(ctx, userID)
	if err != nil {
		return false, err
	}
	return role == users.RoleAdministrator, nil
}

func (a *RoleAccess) role(ctx context.Context, userID int64) (string, error) {
	if userID <= 0 {
		return "", nil
	}
	role, err := a.roles.RoleOf(ctx, userID)
	if errors.Is(err, users.ErrNotFound) {
		return "", nil
	}
	return role, err
}

func (a *RoleAccess) owns(ctx context.Context, userID, recordID int64) (bool, error) {
	p, err := a.posts.Get(ctx, recordID)
	if errors.Is(err, content.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.AuthorID == userID, nil
}
