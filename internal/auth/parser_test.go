package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nurpe/buildops-contracts/internal/model"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestParseValidToken(t *testing.T) {
	parser := NewParser(testSecret)
	userID := uuid.New()
	orgID := uuid.New()

	token := signToken(t, jwt.MapClaims{
		"user_id": userID.String(),
		"org_id":  orgID.String(),
		"role":    "PROJECT_MANAGER",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}, testSecret)

	principal, err := parser.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if principal.UserID != userID {
		t.Errorf("UserID = %s, want %s", principal.UserID, userID)
	}
	if principal.OrgID != orgID {
		t.Errorf("OrgID = %s, want %s", principal.OrgID, orgID)
	}
	if principal.Role != model.RoleProjectManager {
		t.Errorf("Role = %s, want PROJECT_MANAGER", principal.Role)
	}
}

func TestParseRejectsBadTokens(t *testing.T) {
	parser := NewParser(testSecret)
	userID := uuid.New().String()
	orgID := uuid.New().String()

	cases := []struct {
		name  string
		token string
	}{
		{
			name: "wrong secret",
			token: signToken(t, jwt.MapClaims{
				"user_id": userID,
				"org_id":  orgID,
				"role":    "ADMIN",
				"exp":     time.Now().Add(time.Hour).Unix(),
			}, "other-secret"),
		},
		{
			name: "expired",
			token: signToken(t, jwt.MapClaims{
				"user_id": userID,
				"org_id":  orgID,
				"role":    "ADMIN",
				"exp":     time.Now().Add(-time.Hour).Unix(),
			}, testSecret),
		},
		{
			name: "missing role",
			token: signToken(t, jwt.MapClaims{
				"user_id": userID,
				"org_id":  orgID,
				"exp":     time.Now().Add(time.Hour).Unix(),
			}, testSecret),
		},
		{
			name: "malformed user id",
			token: signToken(t, jwt.MapClaims{
				"user_id": "not-a-uuid",
				"org_id":  orgID,
				"role":    "ADMIN",
				"exp":     time.Now().Add(time.Hour).Unix(),
			}, testSecret),
		},
		{name: "garbage", token: "not.a.token"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parser.Parse(tc.token); err == nil {
				t.Error("expected error")
			}
		})
	}
}
