package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestTokenService_HS256RoundTrip(t *testing.T) {
	keys, err := LoadKeyMaterial("top-secret", "", "")
	require.NoError(t, err)
	svc := NewTokenService(keys, "storefront", "storefront-clients", time.Hour)

	p := domain.Principal{UserID: 12, Username: "alice", Roles: []string{domain.RoleUser}}
	raw, exp, err := svc.Issue(p)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	got, err := svc.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestTokenService_Rejections(t *testing.T) {
	keys, err := LoadKeyMaterial("top-secret", "", "")
	require.NoError(t, err)
	svc := NewTokenService(keys, "storefront", "storefront-clients", time.Minute)
	raw, _, err := svc.Issue(domain.Principal{UserID: 1, Username: "a"})
	require.NoError(t, err)

	other := NewTokenService(KeyMaterial{Secret: []byte("different")}, "storefront", "storefront-clients", time.Minute)
	_, err = other.Parse(raw)
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)

	wrongAud := NewTokenService(keys, "storefront", "someone-else", time.Minute)
	_, err = wrongAud.Parse(raw)
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)

	late := NewTokenService(keys, "storefront", "storefront-clients", time.Minute)
	late.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = late.Parse(raw)
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)

	_, err = svc.Parse("not-a-jwt")
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)

	_, err = LoadKeyMaterial("", "", "")
	assert.Error(t, err)
}

func TestTokenService_RS256(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	priPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	signer, err := LoadKeyMaterial("", "", string(priPEM))
	require.NoError(t, err)
	verifier, err := LoadKeyMaterial("", string(pubPEM), "")
	require.NoError(t, err)

	raw, _, err := NewTokenService(signer, "iss", "aud", time.Hour).Issue(domain.Principal{UserID: 3, Username: "ops", Roles: []string{domain.RoleAdmin}})
	require.NoError(t, err)

	p, err := NewTokenService(verifier, "iss", "aud", time.Hour).Parse(raw)
	require.NoError(t, err)
	assert.True(t, p.IsAdmin())

	_, _, err = NewTokenService(verifier, "iss", "aud", time.Hour).Issue(p)
	assert.Error(t, err, "verify-only material cannot sign")
}

func TestBcryptHasher(t *testing.T) {
	h := BcryptHasher{Cost: bcrypt.MinCost}
	hash, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)
	assert.NoError(t, h.Compare(hash, "correct horse"))
	assert.Error(t, h.Compare(hash, "battery staple"))
}
