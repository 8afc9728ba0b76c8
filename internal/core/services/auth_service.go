package services

import (
	"errors"
	"time"

	"seryvo/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims mirror the platform's token layout: subject is the user id and
// roles is a list with the primary role first.
type Claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// AuthService verifies bearer tokens into identities. Token issuance lives
// in the identity provider; the Generate method exists for tooling and tests.
type AuthService struct {
	secret []byte
}

func NewAuthService(jwtSecret string) *AuthService {
	return &AuthService{secret: []byte(jwtSecret)}
}

// Verify decodes and validates a token, returning the acting identity.
func (s *AuthService) Verify(tokenString string) (domain.Identity, error) {
	if tokenString == "" {
		return domain.Identity{}, ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Identity{}, ErrExpiredToken
		}
		return domain.Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return domain.Identity{}, ErrInvalidToken
	}

	role := domain.RoleClient
	if len(claims.Roles) > 0 {
		if r := domain.Role(claims.Roles[0]); r.Valid() {
			role = r
		}
	}

	return domain.Identity{
		UserID: domain.UserID(claims.Subject),
		Role:   role,
	}, nil
}

// Generate signs a token for the given identity, valid for ttl.
func (s *AuthService) Generate(identity domain.Identity, ttl time.Duration) (string, error) {
	claims := &Claims{
		Roles: []string{string(identity.Role)},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(identity.UserID),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}
