package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/quill/pkg/adapters/memory"
	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/persistence/middleware"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	// Setup
	underlyingStore := memory.NewStore()
	// Mask keys containing "password" or "ssn"
	secureStore := middleware.NewPIIMiddleware([]string{"password", "ssn"})(underlyingStore)

	ctx := context.Background()
	runID := "pii-run"
	log := domain.NewMessageLog(
		domain.NewUserMessage("Look up jdoe"),
		domain.NewStageOutput("", domain.ToolCallRequest{
			ID:   "1",
			Name: "lookup",
			Arguments: map[string]any{
				"username":      "jdoe",
				"user_password": "secret123",
				"details": map[string]any{
					"address":    "123 St",
					"ssn_number": "999-99-9999",
				},
			},
		}),
	)

	// 1. Save
	if err := secureStore.Save(ctx, runID, log); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Verify the run's log is NOT MODIFIED (Immutability check)
	original, _ := log.Last()
	if original.ToolCalls[0].Arguments["user_password"] != "secret123" {
		t.Error("Middleware modified the original log!")
	}
	if original.ToolCalls[0].Arguments["details"].(map[string]any)["ssn_number"] != "999-99-9999" {
		t.Error("Middleware modified a nested map of the original log!")
	}

	// 2. Load from Underlying Store (Should be masked)
	stored, err := underlyingStore.Load(ctx, runID)
	if err != nil {
		t.Fatalf("Underlying load failed: %v", err)
	}
	last, _ := stored.Last()
	args := last.ToolCalls[0].Arguments

	if args["username"] != "jdoe" {
		t.Error("Username shouldn't be masked")
	}
	if args["user_password"] != middleware.Mask {
		t.Errorf("Password should be masked, got: %v", args["user_password"])
	}
	details := args["details"].(map[string]any)
	if details["ssn_number"] != middleware.Mask {
		t.Errorf("Nested SSN should be masked, got: %v", details["ssn_number"])
	}
	if details["address"] != "123 St" {
		t.Errorf("Address shouldn't be masked, got: %v", details["address"])
	}
}

func TestChain(t *testing.T) {
	underlyingStore := memory.NewStore()
	store := middleware.Chain(underlyingStore,
		middleware.NewPIIMiddleware([]string{"(?i)api_key"}),
	)

	ctx := context.Background()
	log := domain.NewMessageLog(domain.NewStageOutput("", domain.ToolCallRequest{
		Name: "search", Arguments: map[string]any{"query": "Go", "API_KEY": "tvly-123"},
	}))
	if err := store.Save(ctx, "r", log); err != nil {
		t.Fatal(err)
	}
	loaded, err := store.Load(ctx, "r")
	if err != nil {
		t.Fatal(err)
	}
	last, _ := loaded.Last()
	if last.ToolCalls[0].Arguments["API_KEY"] != middleware.Mask || last.ToolCalls[0].Arguments["query"] != "Go" {
		t.Errorf("unexpected arguments: %v", last.ToolCalls[0].Arguments)
	}
}
