package controllers

import (
	"context"

	"github.com/google/uuid"

	"github.com/learnhub-app/learnhub-backend/api/middleware"
	"github.com/learnhub-app/learnhub-backend/internal/courses"
	"github.com/learnhub-app/learnhub-backend/pkg/enums"
	pkgerrors "github.com/learnhub-app/learnhub-backend/pkg/errors"
)

// actorFromContext resolves the authenticated caller seeded by the auth
// middleware.
func actorFromContext(ctx context.Context) (courses.Actor, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return courses.Actor{}, err
	}
	role := enums.UserRole(middleware.RoleFromContext(ctx))
	if !role.IsValid() {
		return courses.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "role context missing")
	}
	return courses.Actor{UserID: userID, Role: role}, nil
}

func userIDFromContext(ctx context.Context) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(ctx)
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}

// pathUUID parses a chi route parameter as a UUID.
func pathUUID(raw, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return id, nil
}
