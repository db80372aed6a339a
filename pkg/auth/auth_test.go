package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashing(t *testing.T) {
	hashed, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hashed)
	assert.True(t, CheckPassword(hashed, "s3cret-pass"))
	assert.False(t, CheckPassword(hashed, "wrong"))
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	_, err := NewIssuer("", time.Minute, time.Hour)
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestIssueAndValidate(t *testing.T) {
	iss, err := NewIssuer("test-secret", 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)

	token, err := iss.Issue(42, RoleAdmin, KindAccess)
	require.NoError(t, err)

	claims, err := iss.Validate(token, KindAccess)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, RoleAdmin, claims.Role)

	_, err = iss.Validate(token, KindRefresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpiredAndForeignTokens(t *testing.T) {
	iss, err := NewIssuer("test-secret", time.Minute, time.Hour)
	require.NoError(t, err)

	start := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	iss.now = func() time.Time { return start }
	token, err := iss.Issue(1, RoleUser, KindAccess)
	require.NoError(t, err)

	iss.now = func() time.Time { return start.Add(2 * time.Minute) }
	_, err = iss.Validate(token, KindAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewIssuer("other-secret", time.Minute, time.Hour)
	require.NoError(t, err)
	foreign, err := other.Issue(1, RoleUser, KindAccess)
	require.NoError(t, err)

	iss.now = time.Now
	_, err = iss.Validate(foreign, KindAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCSRFTokensAreUnique(t *testing.T) {
	assert.NotEqual(t, NewCSRFToken(), NewCSRFToken())
}
