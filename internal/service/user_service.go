package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dealer_crm_go/internal/model"
	"dealer_crm_go/internal/repository"
	"dealer_crm_go/pkg/database"
	"dealer_crm_go/pkg/hash"
	"dealer_crm_go/pkg/log"
	"dealer_crm_go/pkg/token"

	"gorm.io/gorm"
)

// tokenBlacklistPrefix 登出令牌黑名单的 Redis key 前缀。
// 与 AuthMiddleware 的读取保持同一前缀，确保"写黑名单"和"读黑名单"一致。
const tokenBlacklistPrefix = "token_blacklist:"

// CreateUserInput 是管理员创建用户的入参。
type CreateUserInput struct {
	Username       string
	Password       string
	RoleID         uint
	TenantID       *uint
	IsPlatformUser bool
}

type UserService interface {
	Login(username, password string) (accessToken, refreshToken string, err error)
	// Logout 把仍在有效期内的 access token 写入 Redis 黑名单。
	Logout(tokenString string) error
	GetProfile(username string) (*model.User, error)
	// CreateUser 创建用户并校验租户归属约束：
	// 平台用户 TenantID 必须为 nil，租户用户必须非 nil。
	CreateUser(input CreateUserInput) (*model.User, error)
	ListUsers(page, size int) ([]model.User, int64, error)
	// DeactivateUser 停用用户（软下线），不做物理删除。
	DeactivateUser(userID uint) error
}

type userService struct {
	userRepo   repository.UserRepository
	JWTManager *token.JWTManager
}

func NewUserService(userRepo repository.UserRepository, jwtManager *token.JWTManager) UserService {
	return &userService{
		userRepo:   userRepo,
		JWTManager: jwtManager,
	}
}

func (s *userService) Login(username, password string) (accessToken, refreshToken string, err error) {
	if s.JWTManager == nil {
		return "", "", ErrInternal
	}
	// 1. 检查用户是否存在
	existingUser, err := s.userRepo.FindByUsername(username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 用户不存在，返回统一的凭证错误，防止用户枚举
			return "", "", ErrInvalidCredentials
		}
		// 真正的数据库错误：记日志，对外返回通用错误
		log.Errorf("Login: failed to query user %q: %v", username, err)
		return "", "", ErrInternal
	}
	if existingUser == nil {
		return "", "", ErrInvalidCredentials
	}

	// 2. 停用的账号不允许登录
	if !existingUser.IsActive {
		return "", "", ErrUserInactive
	}

	// 3. 检查密码是否正确
	if !hash.CheckPasswordHash(password, existingUser.Password) {
		// 密码错误，返回与"用户不存在"相同的错误，防止用户枚举
		return "", "", ErrInvalidCredentials
	}

	// 4. 生成JWT令牌（使用数据库中的 Username，避免大小写/规范化不一致）
	roleCode := ""
	if existingUser.Role != nil {
		roleCode = existingUser.Role.Code
	}
	accessToken, refreshToken, err = s.JWTManager.GenerateToken(
		existingUser.ID, existingUser.Username, roleCode,
		existingUser.TenantID, existingUser.IsPlatformUser)
	if err != nil {
		log.Errorf("Login: failed to generate token for user %q: %v", existingUser.Username, err)
		return "", "", ErrInternal
	}
	return accessToken, refreshToken, nil
}

// Logout 把 token 写入黑名单，TTL 取令牌剩余有效期。
// 已过期的令牌不需要入黑名单，直接成功返回。
func (s *userService) Logout(tokenString string) error {
	if s.JWTManager == nil || database.RDB == nil {
		return ErrInternal
	}

	claims, err := s.JWTManager.VerifyToken(tokenString)
	if err != nil || claims == nil {
		return ErrInvalidCredentials
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}

	key := tokenBlacklistPrefix + tokenString
	if err := database.RDB.Set(context.Background(), key, "1", ttl).Err(); err != nil {
		log.Errorf("Logout: failed to blacklist token for user %q: %v", claims.Username, err)
		return ErrInternal
	}
	return nil
}

func (s *userService) GetProfile(username string) (*model.User, error) {
	user, err := s.userRepo.FindByUsername(username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		log.Errorf("GetProfile: failed to query user %q: %v", username, err)
		return nil, ErrInternal
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// CreateUser 创建用户。
// 关键规则：
// 1. username/password/roleID 必填。
// 2. 平台用户不得携带租户，租户用户必须携带租户（租户归属约束）。
// 3. 用户名唯一。
func (s *userService) CreateUser(input CreateUserInput) (*model.User, error) {
	if input.Username == "" || input.Password == "" || input.RoleID == 0 {
		return nil, ErrInvalidInput
	}

	// 租户归属约束
	if input.IsPlatformUser && input.TenantID != nil {
		return nil, ErrTenantScopeViolation
	}
	if !input.IsPlatformUser && input.TenantID == nil {
		return nil, ErrTenantScopeViolation
	}

	existing, err := s.userRepo.FindByUsername(input.Username)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	} else if existing != nil {
		return nil, ErrUserAlreadyExists
	}

	hashedPassword, err := hash.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	newUser := &model.User{
		Username:       input.Username,
		Password:       hashedPassword,
		RoleID:         input.RoleID,
		TenantID:       input.TenantID,
		IsPlatformUser: input.IsPlatformUser,
		IsActive:       true,
	}
	if err := s.userRepo.Create(newUser); err != nil {
		return nil, err
	}
	return newUser, nil
}

func (s *userService) ListUsers(page, size int) ([]model.User, int64, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	return s.userRepo.FindWithPagination((page-1)*size, size)
}

func (s *userService) DeactivateUser(userID uint) error {
	if userID == 0 {
		return ErrInvalidInput
	}
	if err := s.userRepo.Deactivate(userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}
