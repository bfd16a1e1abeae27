package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/angelmondragon/labinventory-backend/internal/auth"
	pkgerrors "github.com/angelmondragon/labinventory-backend/pkg/errors"
)

type stubAuthService struct {
	login        *auth.LoginResponse
	pair         *auth.TokenPair
	err          error
	gotAccess    string
	gotRefresh   string
	loggedOutTok string
}

func (s *stubAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	return s.login, s.err
}

func (s *stubAuthService) Refresh(ctx context.Context, accessToken, refreshToken string) (*auth.TokenPair, error) {
	s.gotAccess = accessToken
	s.gotRefresh = refreshToken
	return s.pair, s.err
}

func (s *stubAuthService) Logout(ctx context.Context, accessToken string) error {
	s.loggedOutTok = accessToken
	return s.err
}

func TestAuthLoginSetsTokenHeader(t *testing.T) {
	svc := &stubAuthService{login: &auth.LoginResponse{TokenPair: auth.TokenPair{AccessToken: "access-token", RefreshToken: "refresh"}}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"username":"admin","password":"12345678"}`))
	resp := httptest.NewRecorder()

	AuthLogin(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if got := resp.Header().Get(accessTokenHeader); got != "access-token" {
		t.Fatalf("expected token header, got %q", got)
	}
}

func TestAuthLoginValidatesBody(t *testing.T) {
	svc := &stubAuthService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"username":"admin"}`))
	resp := httptest.NewRecorder()

	AuthLogin(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAuthLoginUnauthorized(t *testing.T) {
	svc := &stubAuthService{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"username":"admin","password":"wrong"}`))
	resp := httptest.NewRecorder()

	AuthLogin(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRefreshForwardsBothTokens(t *testing.T) {
	svc := &stubAuthService{pair: &auth.TokenPair{AccessToken: "new-access", RefreshToken: "new-refresh"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", strings.NewReader(`{"refresh_token":"old-refresh"}`))
	req.Header.Set("Authorization", "Bearer old-access")
	resp := httptest.NewRecorder()

	AuthRefresh(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.gotAccess != "old-access" || svc.gotRefresh != "old-refresh" {
		t.Fatalf("unexpected tokens %q %q", svc.gotAccess, svc.gotRefresh)
	}
	if got := resp.Header().Get(accessTokenHeader); got != "new-access" {
		t.Fatalf("expected rotated token header, got %q", got)
	}
}

func TestAuthLogoutRequiresBearer(t *testing.T) {
	svc := &stubAuthService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	resp := httptest.NewRecorder()

	AuthLogout(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
	if svc.loggedOutTok != "" {
		t.Fatal("service should not be called")
	}
}
