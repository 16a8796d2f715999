package services

import (
	"context"
	"testing"
	"time"

	"github.com/soapify/soapify-backend/internal/logger"
	"github.com/soapify/soapify-backend/internal/repos"
	"github.com/soapify/soapify-backend/internal/requestdata"
	"github.com/soapify/soapify-backend/internal/types"
)

func newAuthService(t *testing.T) AuthService {
	t.Helper()
	gdb := newTestDB(t)
	log := logger.NewNop()
	return NewAuthService(
		gdb,
		log,
		repos.NewUserRepo(gdb, log),
		repos.NewUserTokenRepo(gdb, log),
		"test-secret",
		15*time.Minute,
		24*time.Hour,
	)
}

func TestRegisterAndLogin(t *testing.T) {
	as := newAuthService(t)
	ctx := context.Background()

	user := &types.User{
		Email:    "Dr.House@Clinic.Test",
		Password: "hunter2hunter2",
		FullName: "Gregory House",
	}
	if err := as.RegisterUser(ctx, user); err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Password == "hunter2hunter2" {
		t.Fatal("password stored in plaintext")
	}
	if user.Role != "doctor" {
		t.Fatalf("expected default role doctor, got %q", user.Role)
	}

	// Email comparison is case-insensitive through normalization.
	access, refresh, err := as.LoginUser(ctx, "dr.house@clinic.test", "hunter2hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if access == "" || refresh == "" {
		t.Fatal("expected non-empty token pair")
	}

	if _, _, err := as.LoginUser(ctx, "dr.house@clinic.test", "wrong-password"); err == nil {
		t.Fatal("expected login failure with wrong password")
	}
}

func TestRegisterValidation(t *testing.T) {
	as := newAuthService(t)
	ctx := context.Background()

	cases := []types.User{
		{Email: "not-an-email", Password: "longenough", FullName: "X"},
		{Email: "a@b.test", Password: "short", FullName: "X"},
		{Email: "a@b.test", Password: "longenough", FullName: ""},
	}
	for i, u := range cases {
		u := u
		if err := as.RegisterUser(ctx, &u); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}

	ok := types.User{Email: "a@b.test", Password: "longenough", FullName: "X"}
	if err := as.RegisterUser(ctx, &ok); err != nil {
		t.Fatalf("register: %v", err)
	}
	dup := types.User{Email: "a@b.test", Password: "longenough", FullName: "Y"}
	if err := as.RegisterUser(ctx, &dup); err == nil {
		t.Fatal("expected duplicate email to be rejected")
	}
}

func TestSetContextFromTokenAndRefresh(t *testing.T) {
	as := newAuthService(t)
	ctx := context.Background()

	user := &types.User{Email: "a@b.test", Password: "longenough", FullName: "X"}
	if err := as.RegisterUser(ctx, user); err != nil {
		t.Fatalf("register: %v", err)
	}
	access, refresh, err := as.LoginUser(ctx, "a@b.test", "longenough")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	authedCtx, err := as.SetContextFromToken(ctx, access)
	if err != nil {
		t.Fatalf("set context: %v", err)
	}
	rd := requestdata.GetRequestData(authedCtx)
	if rd == nil {
		t.Fatal("expected request data in context")
	}
	if rd.UserID != user.ID {
		t.Fatalf("unexpected user id %s", rd.UserID)
	}
	if rd.RefreshToken != refresh {
		t.Fatal("refresh token not resolved from access token")
	}

	newAccess, newRefresh, err := as.RefreshUser(authedCtx)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if newAccess == "" || newRefresh == "" || newRefresh == refresh {
		t.Fatal("expected rotated token pair")
	}

	// The old refresh token is gone after rotation.
	if _, _, err := as.RefreshUser(authedCtx); err == nil {
		t.Fatal("expected old refresh token to be rejected")
	}
}

func TestLogoutDeletesSession(t *testing.T) {
	as := newAuthService(t)
	ctx := context.Background()

	user := &types.User{Email: "a@b.test", Password: "longenough", FullName: "X"}
	if err := as.RegisterUser(ctx, user); err != nil {
		t.Fatalf("register: %v", err)
	}
	access, _, err := as.LoginUser(ctx, "a@b.test", "longenough")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	authedCtx, err := as.SetContextFromToken(ctx, access)
	if err != nil {
		t.Fatalf("set context: %v", err)
	}
	if err := as.LogoutUser(authedCtx); err != nil {
		t.Fatalf("logout: %v", err)
	}

	if _, _, err := as.RefreshUser(authedCtx); err == nil {
		t.Fatal("expected refresh to fail after logout")
	}
}

func TestSetContextFromTokenRejectsGarbage(t *testing.T) {
	as := newAuthService(t)
	if _, err := as.SetContextFromToken(context.Background(), "not.a.jwt"); err == nil {
		t.Fatal("expected parse failure")
	}
}
