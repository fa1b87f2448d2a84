package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyRoundTrip(t *testing.T) {
	v := &Verifier{Secret: []byte("s3cret")}
	tok, err := v.Issue("user-1", RoleAdmin, time.Minute)
	require.NoError(t, err)

	p, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", p.UserID)
	assert.True(t, p.IsAdmin())
}

func TestVerifyRejects(t *testing.T) {
	v := &Verifier{Secret: []byte("s3cret")}

	other, err := (&Verifier{Secret: []byte("other")}).Issue("user-1", "", time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(other)
	assert.Error(t, err, "wrong key")

	expired, err := v.Issue("user-1", "", -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(expired)
	assert.Error(t, err, "expired")

	noSub, err := v.Issue("", "", time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(noSub)
	assert.Error(t, err, "no subject")

	_, err = v.Verify("not-a-token")
	assert.Error(t, err)
}

func TestPrincipalContext(t *testing.T) {
	_, err := FromContext(context.Background())
	assert.ErrorIs(t, err, ErrNoPrincipal)

	ctx := WithPrincipal(context.Background(), Principal{UserID: "u"})
	p, err := FromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u", p.UserID)
	assert.False(t, p.IsAdmin())
}
