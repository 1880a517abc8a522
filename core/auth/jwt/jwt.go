package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/kochabx/blogkit/core/tag"
)

var (
	ErrInvalidToken     = errors.New("jwt: invalid token")
	ErrExpiredToken     = errors.New("jwt: token expired")
	ErrInvalidSignature = errors.New("jwt: invalid signature")
	ErrNoExpiry         = errors.New("jwt: token has no exp claim")
	ErrEmptySecret      = errors.New("jwt: secret cannot be empty")
)

// Claims 会话 token 的载荷
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// JWT 签发和校验 HMAC token
type JWT struct {
	config *Config
	now    func() time.Time
}

// Option JWT 选项
type Option func(*JWT)

// WithNow 替换时间源，测试里配合假时钟使用
func WithNow(now func() time.Time) Option {
	return func(j *JWT) {
		j.now = now
	}
}

func New(config *Config, opts ...Option) (*JWT, error) {
	if config == nil || config.Secret == "" {
		return nil, ErrEmptySecret
	}
	if err := tag.ApplyDefaults(config); err != nil {
		return nil, err
	}

	j := &JWT{config: config, now: time.Now}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Generate 为 subject 签发 token，返回 token 和过期时间
func (j *JWT) Generate(subject, email string) (string, time.Time, error) {
	now := j.now()
	expiresAt := now.Add(j.config.TTL).Truncate(time.Second)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    j.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: email,
	}

	token, err := jwt.NewWithClaims(j.config.method(), claims).SignedString([]byte(j.config.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Parse 校验签名和有效期
func (j *JWT) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method != j.config.method() {
			return nil, ErrInvalidSignature
		}
		return []byte(j.config.Secret), nil
	}, jwt.WithTimeFunc(j.now), jwt.WithExpirationRequired())

	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
}

// ExpiresAt 读取 exp 声明但不校验签名。客户端没有密钥，只用它推断会话过期时间
func ExpiresAt(token string) (time.Time, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}
