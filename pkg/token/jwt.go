package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType 常量，用于区分访问令牌和刷新令牌
// 防止攻击者拿 refresh token 冒充 access token 来访问 API
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// JWTManager 是 JWT 管理器，负责生成和验证 JWT
type JWTManager struct {
	secretKey            []byte        // 密钥
	accessTokenDuration  time.Duration // 访问令牌过期时间
	refreshTokenDuration time.Duration // 刷新令牌过期时间
}

// CustomClaims 是自定义的 Claims，携带主体信息：
// 用户 ID、用户名、角色代码、租户 ID（平台用户为 nil）、平台用户标志。
// 嵌入了 jwt.RegisteredClaims，所以 CustomClaims 也包含了 JWT 标准 Claims
type CustomClaims struct {
	UserID         uint   `json:"user_id"`
	Username       string `json:"username"`
	RoleCode       string `json:"role_code"`
	TenantID       *uint  `json:"tenant_id,omitempty"`
	IsPlatformUser bool   `json:"is_platform_user"`
	// TokenType 用于区分 access 和 refresh token，防止 token 类型混用攻击
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// NewJWTManager 创建一个新的 JWTManager
func NewJWTManager(secretKey string, accessTokenDuration, refreshTokenDuration time.Duration) *JWTManager {
	return &JWTManager{
		secretKey:            []byte(secretKey),
		accessTokenDuration:  accessTokenDuration,
		refreshTokenDuration: refreshTokenDuration,
	}
}

// GenerateToken 生成访问令牌和刷新令牌
func (manager *JWTManager) GenerateToken(userID uint, username, roleCode string, tenantID *uint, isPlatformUser bool) (string, string, error) {
	now := time.Now()

	newClaims := func(tokenType string, duration time.Duration) *CustomClaims {
		return &CustomClaims{
			UserID:         userID,
			Username:       username,
			RoleCode:       roleCode,
			TenantID:       tenantID,
			IsPlatformUser: isPlatformUser,
			TokenType:      tokenType,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "dealercrm",
				ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
				IssuedAt:  jwt.NewNumericDate(now),
				NotBefore: jwt.NewNumericDate(now),
			},
		}
	}

	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, newClaims(TokenTypeAccess, manager.accessTokenDuration))
	accessTokenString, err := accessToken.SignedString(manager.secretKey)
	if err != nil {
		return "", "", err
	}

	refreshToken := jwt.NewWithClaims(jwt.SigningMethodHS256, newClaims(TokenTypeRefresh, manager.refreshTokenDuration))
	refreshTokenString, err := refreshToken.SignedString(manager.secretKey)
	if err != nil {
		return "", "", err
	}
	return accessTokenString, refreshTokenString, nil
}

// VerifyToken 验证令牌并返回 CustomClaims。
// 使用 WithValidMethods 精确限制只允许 HS256 算法，
// 防止算法篡改攻击（如 alg=none 或 alg=RS256）。
func (manager *JWTManager) VerifyToken(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return manager.secretKey, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
	)
	if err != nil {
		return nil, err
	}
	return token.Claims.(*CustomClaims), nil
}
