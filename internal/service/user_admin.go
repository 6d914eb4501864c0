package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"marketplace-auth/internal/event"
	"marketplace-auth/internal/model"
	"marketplace-auth/pkg/apierror"
)

func (s *AuthService) ListUsers(ctx context.Context) (model.AuthUserList, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return model.AuthUserList{}, err
	}

	out := make([]model.AuthUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.AuthUser())
	}

	return model.AuthUserList{Users: out}, nil
}

func (s *AuthService) ListRoles(ctx context.Context) (model.RoleList, error) {
	roles, err := s.roles.List(ctx)
	if err != nil {
		return model.RoleList{}, err
	}
	if roles == nil {
		roles = []model.Role{}
	}

	return model.RoleList{Roles: roles}, nil
}

// UpdateRole takes effect at the target's next login; tokens already issued
// keep the old role until they expire.
func (s *AuthService) UpdateRole(ctx context.Context, actorID int64, userID int64, roleName string) (model.AuthUser, error) {
	roleName = strings.TrimSpace(roleName)
	if roleName == "" {
		return model.AuthUser{}, apierror.BadRequest("role is required", "role")
	}
	if actorID == userID {
		return model.AuthUser{}, apierror.Forbidden("cannot change your own role")
	}

	user, err := s.findUser(ctx, userID)
	if err != nil {
		return model.AuthUser{}, err
	}

	role, err := s.roles.FindByName(ctx, roleName)
	if errors.Is(err, model.ErrRoleNotFound) {
		return model.AuthUser{}, apierror.BadRequest("unknown role", roleName)
	}
	if err != nil {
		return model.AuthUser{}, err
	}

	if err := s.users.UpdateRole(ctx, user.ID, role.ID); err != nil {
		return model.AuthUser{}, err
	}

	previous := user.RoleName
	user.RoleID = role.ID
	user.RoleName = role.Name

	s.publish(event.New(event.TypeRoleChanged, actorID, user.ID, map[string]string{"from": previous, "to": role.Name}))
	return user.AuthUser(), nil
}

func (s *AuthService) UpdateStatus(ctx context.Context, actorID int64, userID int64, req model.UpdateStatusRequest) (model.AuthUser, error) {
	if req.Status == nil {
		return model.AuthUser{}, apierror.BadRequest("status is required", "status")
	}
	status := model.UserStatus(*req.Status)
	if !status.Valid() {
		return model.AuthUser{}, apierror.BadRequest("invalid status", strconv.Itoa(*req.Status))
	}
	if actorID == userID {
		return model.AuthUser{}, apierror.Forbidden("cannot change your own status")
	}

	user, err := s.findUser(ctx, userID)
	if err != nil {
		return model.AuthUser{}, err
	}

	if err := s.users.UpdateStatus(ctx, user.ID, status); err != nil {
		return model.AuthUser{}, err
	}

	previous := user.Status
	user.Status = status

	attrs := map[string]string{"from": previous.String(), "to": status.String()}
	if reason := strings.TrimSpace(req.Reason); reason != "" {
		attrs["reason"] = reason
	}
	s.publish(event.New(event.TypeStatusChanged, actorID, user.ID, attrs))

	return user.AuthUser(), nil
}

func (s *AuthService) DeleteUser(ctx context.Context, actorID int64, userID int64) error {
	if actorID == userID {
		return apierror.Forbidden("cannot delete your own account")
	}

	err := s.users.SoftDelete(ctx, userID)
	if errors.Is(err, model.ErrUserNotFound) {
		return apierror.NotFound("user not found", fmt.Sprint(userID))
	}
	if err != nil {
		return err
	}

	s.publish(event.New(event.TypeUserDeleted, actorID, userID, nil))
	return nil
}
