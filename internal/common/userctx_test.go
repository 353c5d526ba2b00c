package common

import (
	"context"
	"testing"
)

func TestUserContext_RoundTrip(t *testing.T) {
	ctx := context.Background()

	// Absent by default
	if uc := UserContextFromContext(ctx); uc != nil {
		t.Error("Expected nil UserContext from empty context")
	}

	ctx = WithUserContext(ctx, &UserContext{UserID: "alice", Role: "admin"})

	got := UserContextFromContext(ctx)
	if got == nil {
		t.Fatal("Expected UserContext, got nil")
	}
	if got.UserID != "alice" {
		t.Errorf("UserID = %q, want %q", got.UserID, "alice")
	}
	if !IsAdmin(ctx) {
		t.Error("Expected admin role")
	}
}

func TestResolveUserID(t *testing.T) {
	if id := ResolveUserID(context.Background()); id != "default" {
		t.Errorf("ResolveUserID without context = %q, want default", id)
	}

	ctx := WithUserContext(context.Background(), &UserContext{})
	if id := ResolveUserID(ctx); id != "default" {
		t.Errorf("ResolveUserID with empty UserID = %q, want default", id)
	}

	ctx = WithUserContext(context.Background(), &UserContext{UserID: "bob"})
	if id := ResolveUserID(ctx); id != "bob" {
		t.Errorf("ResolveUserID = %q, want bob", id)
	}
	if IsAdmin(ctx) {
		t.Error("Expected non-admin")
	}
}

func TestOwns(t *testing.T) {
	tests := []struct {
		name  string
		ctx   context.Context
		owner string
		want  bool
	}{
		{"anonymous owns default", context.Background(), DefaultUserID, true},
		{"anonymous vs alice", context.Background(), "alice", false},
		{"alice owns alice", WithUserContext(context.Background(), &UserContext{UserID: "alice"}), "alice", true},
		{"bob vs alice", WithUserContext(context.Background(), &UserContext{UserID: "bob"}), "alice", false},
		{"admin vs alice", WithUserContext(context.Background(), &UserContext{UserID: "root", Role: RoleAdmin}), "alice", true},
		{"system context", SystemContext(context.Background()), SystemUserID, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Owns(tt.ctx, tt.owner); got != tt.want {
				t.Errorf("Owns = %v, want %v", got, tt.want)
			}
		})
	}
}
