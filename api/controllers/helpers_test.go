package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/labinventory-backend/api/middleware"
	"github.com/angelmondragon/labinventory-backend/internal/access"
	"github.com/angelmondragon/labinventory-backend/pkg/enums"
	"github.com/angelmondragon/labinventory-backend/pkg/types"
)

func guruActor() access.Actor {
	return access.Actor{UserID: uuid.New(), Role: enums.RoleGuru}
}

func adminActor() access.Actor {
	return access.Actor{UserID: uuid.New(), Role: enums.RoleAdmin}
}

// withRequestContext seeds the caller and chi URL params onto req.
func withRequestContext(req *http.Request, actor *access.Actor, params map[string]string) *http.Request {
	ctx := req.Context()
	if actor != nil {
		ctx = middleware.WithActor(ctx, *actor)
	}
	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return req.WithContext(ctx)
}

func decodeAPIError(t *testing.T, resp *httptest.ResponseRecorder) types.APIError {
	t.Helper()
	var envelope types.ErrorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return envelope.Error
}
