package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

type TokenService struct {
	keys     KeyMaterial
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

func NewTokenService(keys KeyMaterial, issuer, audience string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenService{keys: keys, issuer: issuer, audience: audience, ttl: ttl, now: time.Now}
}

// Issue signs a token for p and returns it with its expiry.
func (s *TokenService) Issue(p domain.Principal) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := Claims{
		Username: p.Username,
		Roles:    p.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(p.UserID, 10),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	var signed string
	var err error
	switch {
	case s.keys.RSAPri != nil:
		signed, err = jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.keys.RSAPri)
	case s.keys.RSAPub != nil:
		return "", time.Time{}, errors.New("signing not configured (no RSA private key)")
	default:
		signed, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.keys.Secret)
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies signature, expiry (with 30s leeway for clock skew), issuer
// and audience, and returns the principal the token was issued for.
func (s *TokenService) Parse(raw string) (domain.Principal, error) {
	method := jwt.SigningMethodHS256.Alg()
	if s.keys.RSAPub != nil {
		method = jwt.SigningMethodRS256.Alg()
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if s.keys.RSAPub != nil {
			return s.keys.RSAPub, nil
		}
		return s.keys.Secret, nil
	},
		jwt.WithValidMethods([]string{method}),
		jwt.WithLeeway(30*time.Second),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("%v: %w", err, domain.ErrNotAuthenticated)
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return domain.Principal{}, fmt.Errorf("bad subject %q: %w", claims.Subject, domain.ErrNotAuthenticated)
	}
	return domain.Principal{UserID: id, Username: claims.Username, Roles: claims.Roles}, nil
}
