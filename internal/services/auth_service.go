package services

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prudhvinik1/seatkeeper/internal/utils"
)

const tokenIssuer = "seatkeeper"

// AuthService issues and verifies the bearer tokens that guard the admin API.
// There is a single operator account configured through the environment.
type AuthService struct {
	username     string
	passwordHash string
	jwtSecret    []byte
	jwtExpiry    time.Duration
	now          func() time.Time
}

type TokenResponse struct {
	Token     string
	ExpiresAt time.Time
}

type TokenClaims struct {
	Subject string
	TokenID string
}

func NewAuthService(username, passwordHash, jwtSecret string, jwtExpiry time.Duration) *AuthService {
	return &AuthService{
		username:     username,
		passwordHash: passwordHash,
		jwtSecret:    []byte(jwtSecret),
		jwtExpiry:    jwtExpiry,
		now:          time.Now,
	}
}

func (s *AuthService) IssueToken(username, password string) (*TokenResponse, error) {
	// Hash the password even for an unknown username so both paths cost the same.
	ok, err := utils.CheckPassword(s.passwordHash, password)
	if err != nil {
		return nil, fmt.Errorf("failed to check password: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) != 1 || !ok {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	expiresAt := now.Add(s.jwtExpiry)
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   username,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &TokenResponse{Token: token, ExpiresAt: expiresAt}, nil
}

func (s *AuthService) VerifyToken(tokenString string) (*TokenClaims, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Subject != s.username {
		return nil, ErrInvalidToken
	}

	return &TokenClaims{Subject: claims.Subject, TokenID: claims.ID}, nil
}
