package service

import (
	"context"
	"errors"
	"testing"
)

func TestRegisterAndLogin(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewAuthService(repo, "test-secret")
	ctx := context.Background()

	resp, err := svc.Register(ctx, RegisterInput{
		Email:       "ana@example.com",
		Username:    "ana_k",
		DisplayName: "Ana K",
		Password:    "Sup3rSecret",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if resp.AccessToken == "" {
		t.Error("missing access token")
	}
	if !resp.User.Visible {
		t.Error("new accounts should start visible")
	}
	if len(resp.User.Connections) != 0 || len(resp.User.GroupsJoined) != 0 {
		t.Error("new accounts should start with empty edge sets")
	}

	login, err := svc.Login(ctx, LoginInput{Email: "ana@example.com", Password: "Sup3rSecret"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if login.User.ID != resp.User.ID {
		t.Error("login resolved a different account")
	}

	if _, err := svc.Login(ctx, LoginInput{Email: "ana@example.com", Password: "wrong"}); !errors.Is(err, ErrInvalidCreds) {
		t.Errorf("wrong password: got %v, want ErrInvalidCreds", err)
	}
	if _, err := svc.Login(ctx, LoginInput{Email: "ghost@example.com", Password: "x"}); !errors.Is(err, ErrInvalidCreds) {
		t.Errorf("unknown email: got %v, want ErrInvalidCreds", err)
	}
}

func TestRegisterDuplicates(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewAuthService(repo, "test-secret")
	ctx := context.Background()

	input := RegisterInput{Email: "ana@example.com", Username: "ana_k", DisplayName: "Ana K", Password: "Sup3rSecret"}
	if _, err := svc.Register(ctx, input); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Register(ctx, input); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate email: got %v, want ErrEmailTaken", err)
	}

	input.Email = "other@example.com"
	if _, err := svc.Register(ctx, input); !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("duplicate username: got %v, want ErrUsernameTaken", err)
	}
}

func TestDeleteAccount(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewAuthService(repo, "test-secret")
	ctx := context.Background()

	resp, err := svc.Register(ctx, RegisterInput{
		Email: "ana@example.com", Username: "ana_k", DisplayName: "Ana K", Password: "Sup3rSecret",
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.DeleteAccount(ctx, resp.User.ID); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}
	if u, _ := repo.GetByID(ctx, resp.User.ID); u != nil {
		t.Error("record survived deletion")
	}
	if err := svc.DeleteAccount(ctx, resp.User.ID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("second delete: got %v, want ErrUserNotFound", err)
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := hashPassword("Sup3rSecret")
	if err != nil {
		t.Fatal(err)
	}
	if !verifyPassword("Sup3rSecret", hash) {
		t.Error("correct password rejected")
	}
	if verifyPassword("Sup3rSecret2", hash) {
		t.Error("wrong password accepted")
	}
	if verifyPassword("Sup3rSecret", "not-a-hash") {
		t.Error("malformed hash accepted")
	}
}
