package auth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewJWTService("test-secret", 24)
	userID := uuid.New()

	token, err := svc.Generate(userID, "alice@example.com", "Alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	require.Equal(t, userID, claims.UserID)
	require.Equal(t, "alice@example.com", claims.Email)
	require.Equal(t, "Alice", claims.FullName)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := NewJWTService("secret-a", 24).Generate(uuid.New(), "a@example.com", "A")
	require.NoError(t, err)

	_, err = NewJWTService("secret-b", 24).Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsGarbage(t *testing.T) {
	svc := NewJWTService("test-secret", 24)
	_, err := svc.Validate("not.a.token")
	require.ErrorIs(t, err, ErrInvalidToken)
}
