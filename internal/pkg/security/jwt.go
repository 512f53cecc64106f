package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	jwtSecret []byte
	jwtIssuer string
)

// InitJWT 设置令牌校验参数，issuer 为空时不校验签发方
func InitJWT(secret, issuer string) {
	jwtSecret = []byte(secret)
	jwtIssuer = issuer
}

// GenerateToken 签发会话令牌，供本地联调与测试使用
func GenerateToken(externalID, name, email string) (string, error) {
	if len(jwtSecret) == 0 {
		return "", errors.New("jwt secret 未配置")
	}
	now := time.Now()
	claims := &SessionClaims{
		Name:  name,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   externalID,
			ExpiresAt: jwt.NewNumericDate(now.Add(JWTExpirationTime)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    jwtIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(jwtSecret)
	if err != nil {
		return "", fmt.Errorf("签名 Token 失败: %w", err)
	}
	return tokenString, nil
}

// ValidateToken 验证 Token 字符串并解析出 Claims
func ValidateToken(tokenString string) (*SessionClaims, error) {
	if len(jwtSecret) == 0 {
		return nil, errors.New("jwt secret 未配置")
	}
	claims := &SessionClaims{}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if jwtIssuer != "" {
		opts = append(opts, jwt.WithIssuer(jwtIssuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return jwtSecret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("token 解析失败: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("token 无效或已过期")
	}
	if claims.Subject == "" {
		return nil, errors.New("token 缺少 subject")
	}
	return claims, nil
}
