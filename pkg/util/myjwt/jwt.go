package myjwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims 管理端操作员身份
type CustomClaims struct {
	Operator string `json:"operator"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Signer 持有签名密钥，避免读取全局配置
type Signer struct {
	key         []byte
	issuer      string
	expireHours int
}

func NewSigner(key, issuer string, expireHours int) (*Signer, error) {
	if key == "" {
		return nil, errors.New("jwt key is empty")
	}
	if expireHours <= 0 {
		expireHours = 24
	}
	return &Signer{key: []byte(key), issuer: issuer, expireHours: expireHours}, nil
}

func (s *Signer) GenerateToken(operator, role string) (string, error) {
	now := time.Now()
	claims := CustomClaims{
		Operator: operator,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.expireHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.key)
}

func (s *Signer) ParseToken(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.key, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
