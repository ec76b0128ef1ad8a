package app

import (
	"context"
	"testing"
)

func TestNewDependenciesInMemory(t *testing.T) {
	deps, err := NewDependencies(context.Background(), DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("NewDependencies: %v", err)
	}
	defer deps.Close()

	if deps.Carts == nil || deps.Orders == nil || deps.Payments == nil ||
		deps.Stocks == nil || deps.Outbox == nil || deps.Timeline == nil ||
		deps.Idempotency == nil {
		t.Fatal("all repositories must be initialized")
	}
	if deps.Catalog == nil {
		t.Fatal("catalog must be initialized")
	}
	if deps.Store != nil {
		t.Error("postgres store must be nil without DSN")
	}
	if deps.Redis != nil {
		t.Error("redis client must be nil without address")
	}
}

func TestDependenciesCloseWithoutExternalClients(t *testing.T) {
	deps, err := NewDependencies(context.Background(), DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("NewDependencies: %v", err)
	}

	// Close без postgres и redis не должен паниковать.
	deps.Close()
}
