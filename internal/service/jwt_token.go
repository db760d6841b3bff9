package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/dujiao-next/settlement/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

const defaultJWTExpireHours = 24

var (
	ErrJWTSecretMissing = errors.New("jwt secret not configured")
	ErrTokenInvalid     = errors.New("token invalid")
)

var hs256Parser = jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

func resolveJWTExpireHours(cfg config.JWTConfig) int {
	if cfg.ExpireHours <= 0 {
		return defaultJWTExpireHours
	}
	return cfg.ExpireHours
}

// newRegisteredClaims 按配置计算过期时间
func newRegisteredClaims(cfg config.JWTConfig, now time.Time) (jwt.RegisteredClaims, time.Time) {
	expiresAt := now.Add(time.Duration(resolveJWTExpireHours(cfg)) * time.Hour)
	return jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}, expiresAt
}

func signHS256(cfg config.JWTConfig, claims jwt.Claims) (string, error) {
	if cfg.SecretKey == "" {
		return "", ErrJWTSecretMissing
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.SecretKey))
}

// parseHS256 解析并校验签名，结果写入 claims
func parseHS256(cfg config.JWTConfig, tokenString string, claims jwt.Claims) error {
	if cfg.SecretKey == "" {
		return ErrJWTSecretMissing
	}
	token, err := hs256Parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(cfg.SecretKey), nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return ErrTokenInvalid
	}
	return nil
}
