package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/mmynk/tabsplit/internal/models"
)

func TestTokenManager(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)
	owner := models.Participant{ID: "p1", SessionID: "s1", Name: "Ana", IsOwner: true}

	token, err := m.Generate(owner)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if claims.ParticipantID != "p1" || claims.SessionID != "s1" || !claims.Owner {
		t.Errorf("unexpected claims: %+v", claims)
	}

	tests := []struct {
		name    string
		manager *TokenManager
		token   string
	}{
		{"wrong secret", NewTokenManager("other-secret", time.Hour), token},
		{"garbage", m, "not-a-token"},
		{"empty", m, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.manager.Validate(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Validate error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestTokenManager_Expired(t *testing.T) {
	m := NewTokenManager("test-secret", time.Minute)
	issued := time.Now().Add(-time.Hour)
	m.now = func() time.Time { return issued }

	token, err := m.Generate(models.Participant{ID: "p1", SessionID: "s1"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	m.now = time.Now
	if _, err := m.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Validate error = %v, want ErrInvalidToken", err)
	}
}
