package middleware

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// HMACValidator validates HS256 tokens issued by the flowswitch login
// backend. Claims carry the verifier's identity and, when the verifier is
// also an agent, their resolved agent identity.
type HMACValidator struct {
	key []byte
}

func NewHMACValidator(signingKey string) *HMACValidator {
	return &HMACValidator{key: []byte(signingKey)}
}

type tokenClaims struct {
	Email     string `json:"email,omitempty"`
	AgentGUID string `json:"agentGuid,omitempty"`
	AgentCode string `json:"agentCode,omitempty"`
	jwt.RegisteredClaims
}

func (v *HMACValidator) ValidateToken(tokenString string) (*JWTClaims, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token invalid")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token missing subject")
	}

	return &JWTClaims{
		UserGUID:  claims.Subject,
		Email:     claims.Email,
		AgentGUID: claims.AgentGUID,
		AgentCode: claims.AgentCode,
	}, nil
}
