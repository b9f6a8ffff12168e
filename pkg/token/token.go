package token

import (
	"fmt"
	"strconv"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/hertz-contrib/jwt"

	"github.com/RodrigoCConte/monofloor-admin-sub002/config"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/errors"
)

const (
	// IdentityKey 令牌中的工人 ID
	IdentityKey = "wid"
)

var (
	// 这个实例会被 middleware 和 token 包共同使用
	sharedGenerator *jwt.HertzJWTMiddleware
)

func Init() error {
	var err error
	sharedGenerator, err = jwt.New(&jwt.HertzJWTMiddleware{
		Key:         []byte(config.Cfg.JWTSecret),
		Timeout:     time.Duration(config.Cfg.JWTExpireMinutes) * time.Minute,
		MaxRefresh:  time.Duration(config.Cfg.JWTRefreshDays) * 24 * time.Hour,
		IdentityKey: IdentityKey,
		TimeFunc:    time.Now,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize token generator: %w", err)
	}

	return nil
}

// GetGenerator 获取共享的 token 生成器（供 middleware 使用）
func GetGenerator() *jwt.HertzJWTMiddleware {
	return sharedGenerator
}

// GenerateTokenPair 为工人签发 access token 和 refresh token
func GenerateTokenPair(workerID int64) (accessToken, refreshToken string, expiresIn int, err error) {
	if sharedGenerator == nil {
		return "", "", 0, errors.TokenGeneratorNotInitialized
	}

	secret := []byte(config.Cfg.JWTSecret)
	subject := strconv.FormatInt(workerID, 10)
	now := time.Now()
	expiresAt := now.Add(sharedGenerator.Timeout)

	accessToken, err = jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, jwtv5.MapClaims{
		IdentityKey: subject,
		"iat":       now.Unix(),
		"exp":       expiresAt.Unix(),
	}).SignedString(secret)
	if err != nil {
		return "", "", 0, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err = jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, jwtv5.MapClaims{
		IdentityKey: subject,
		"iat":       now.Unix(),
		"type":      "refresh",
		"exp":       now.Add(sharedGenerator.MaxRefresh).Unix(),
	}).SignedString(secret)
	if err != nil {
		return "", "", 0, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return accessToken, refreshToken, int(sharedGenerator.Timeout.Seconds()), nil
}

// ValidateRefreshToken 验证 refresh token 并返回工人 ID
func ValidateRefreshToken(tokenString string) (int64, error) {
	parsed, err := jwtv5.ParseWithClaims(tokenString, jwtv5.MapClaims{}, func(t *jwtv5.Token) (interface{}, error) {
		if t.Method != jwtv5.SigningMethodHS256 {
			return nil, fmt.Errorf("%w: %v", errors.UnexpectedSigningMethod, t.Header["alg"])
		}
		return []byte(config.Cfg.JWTSecret), nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to parse token: %w", err)
	}
	if !parsed.Valid {
		return 0, errors.InvalidToken
	}

	claims, ok := parsed.Claims.(jwtv5.MapClaims)
	if !ok {
		return 0, errors.InvalidToken
	}
	if tokenType, _ := claims["type"].(string); tokenType != "refresh" {
		return 0, errors.InvalidTokenType
	}

	return ParseIdentity(claims[IdentityKey])
}

// ParseIdentity 兼容字符串与数字两种 claim 编码
func ParseIdentity(v interface{}) (int64, error) {
	switch id := v.(type) {
	case string:
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil || n <= 0 {
			return 0, errors.InvalidUserID
		}
		return n, nil
	case float64:
		if id <= 0 {
			return 0, errors.InvalidUserID
		}
		return int64(id), nil
	default:
		return 0, errors.InvalidUserID
	}
}
