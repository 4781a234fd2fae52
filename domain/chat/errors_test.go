package chat

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"room not found", ErrRoomNotFound, CodeRoomNotFound},
		{"missing participants", ErrMissingParticipants, CodeMissingParticipants},
		{"missing content", ErrMissingContent, CodeMissingContent},
		{"messages not found", ErrMessagesNotFound, CodeMessagesNotFound},
		{"wrapped persistence", fmt.Errorf("insert: %w", ErrPersistence), CodePersistence},
		{"unknown error", errors.New("boom"), ""},
		{"nil error", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := CodeOf(tt.err)
			if code != tt.code {
				t.Fatalf("CodeOf() = %q, want %q", code, tt.code)
			}
			if code == "" {
				if ErrFromCode(code) != nil {
					t.Errorf("ErrFromCode(%q) should be nil", code)
				}
				return
			}
			if !errors.Is(tt.err, ErrFromCode(code)) {
				t.Errorf("ErrFromCode(%q) = %v, want match for %v", code, ErrFromCode(code), tt.err)
			}
		})
	}
}

func TestIsValidation(t *testing.T) {
	if !IsValidation(ErrMissingContent) {
		t.Error("ErrMissingContent should be a validation error")
	}
	if !IsValidation(fmt.Errorf("save: %w", ErrMissingParticipants)) {
		t.Error("wrapped ErrMissingParticipants should be a validation error")
	}
	if IsValidation(ErrPersistence) {
		t.Error("ErrPersistence should not be a validation error")
	}
}

func TestRoomOpponentEmail(t *testing.T) {
	room := &Room{ID: "r1", ShopUserEmail: "shop@x.com", VisitorUserEmail: "visitor@x.com"}

	tests := []struct {
		email string
		want  string
	}{
		{"shop@x.com", "visitor@x.com"},
		{"visitor@x.com", "shop@x.com"},
		{"", "shop@x.com"},
	}
	for _, tt := range tests {
		if got := room.OpponentEmail(tt.email); got != tt.want {
			t.Errorf("OpponentEmail(%q) = %q, want %q", tt.email, got, tt.want)
		}
	}
}

func TestRoomResultCreated(t *testing.T) {
	if !(RoomResult{Outcome: OutcomeCreated}).Created() {
		t.Error("OutcomeCreated should report Created()")
	}
	if (RoomResult{Outcome: OutcomeExisting}).Created() {
		t.Error("OutcomeExisting should not report Created()")
	}
}
