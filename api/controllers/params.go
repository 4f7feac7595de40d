package controllers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kiranalabs/kirana-backend/api/middleware"
	pkgerrors "github.com/kiranalabs/kirana-backend/pkg/errors"
)

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("invalid %s", name)).WithDetails(map[string]any{"field": name, "value": raw})
	}
	return parsed, nil
}

// actorID resolves the authenticated user from the request context.
func actorID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user identity")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid user identity")
	}
	return parsed, nil
}
