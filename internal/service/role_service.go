package service

import (
	"errors"
	"sort"

	"dealer_crm_go/internal/model"
	"dealer_crm_go/internal/repository"
	"dealer_crm_go/pkg/log"

	"gorm.io/gorm"
)

// UserScope 表示用户管理操作针对的组织范围。
type UserScope string

const (
	ScopeCompany  UserScope = "company"
	ScopeRegion   UserScope = "region"
	ScopeLocation UserScope = "location"
)

// RoleService 是角色层级引擎：
// 1. 种子流程幂等写入角色目录（按唯一 code 创建或更新）。
// 2. 回答"某主体能否在某模块执行某动作"（默认拒绝，拒绝是返回值不是错误）。
// 3. 从角色记录纯函数式地推导前端导航功能集。
type RoleService interface {
	// SeedCatalog 批量写入角色定义：不存在则创建，存在则按 code 更新可变字段。
	// 单条失败只记日志不中断（尽力而为的批处理），返回成功条数。
	// 重复执行收敛到同一存储状态，不产生重复行。
	SeedCatalog(defs []model.Role) int

	// Authorize 判断主体能否在 module 下执行 action。
	// 任何缺失（nil 用户、nil 角色、无模块条目）都是拒绝，绝不抛错。
	Authorize(user *model.User, module, action string) bool

	// AuthorizeForTenant 在 Authorize 之上叠加租户范围检查：
	// 角色带 CanAccessAllTenants 时完全跳过租户校验，
	// 否则主体的 TenantID 必须与目标资源的租户一致。
	AuthorizeForTenant(user *model.User, targetTenantID *uint, module, action string) bool

	// CanManageUsers 判断角色能否管理指定组织范围内的用户（能力集合成员判断）。
	CanManageUsers(role *model.Role, scope UserScope) bool

	// ResolveNavigation 从角色推导 UI 应展示的功能区。
	// nil 角色返回空集（默认拒绝），永不报错。
	ResolveNavigation(role *model.Role) []string

	ListRoles() ([]model.Role, error)
	FindByCode(code string) (*model.Role, error)
}

type roleService struct {
	roleRepo repository.RoleRepository
}

func NewRoleService(roleRepo repository.RoleRepository) RoleService {
	return &roleService{roleRepo: roleRepo}
}

// SeedCatalog 逐条 upsert 角色定义。
// 幂等性来自"按唯一 code 查找，有则更新、无则创建"；
// 种子流程在部署/初始化时运行，单条失败不应拖垮整批。
func (s *roleService) SeedCatalog(defs []model.Role) int {
	if s.roleRepo == nil {
		return 0
	}

	applied := 0
	for i := range defs {
		def := defs[i]
		if def.Code == "" {
			log.Warnf("SeedCatalog: skipping definition %d with empty code", i)
			continue
		}

		existing, err := s.roleRepo.FindByCode(def.Code)
		switch {
		case err == nil && existing != nil:
			if err := s.roleRepo.Update(&def); err != nil {
				log.Warnf("SeedCatalog: failed to update role %q: %v", def.Code, err)
				continue
			}
			log.Infof("SeedCatalog: updated role %q (level %d)", def.Code, def.Level)
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := s.roleRepo.Create(&def); err != nil {
				log.Warnf("SeedCatalog: failed to create role %q: %v", def.Code, err)
				continue
			}
			log.Infof("SeedCatalog: created role %q (level %d)", def.Code, def.Level)
		default:
			log.Warnf("SeedCatalog: failed to look up role %q: %v", def.Code, err)
			continue
		}
		applied++
	}
	return applied
}

// Authorize 授权判定，所有缺失分支都走默认拒绝。
// 级别（Level）只用于展示排序，这里刻意不参与判定。
func (s *roleService) Authorize(user *model.User, module, action string) bool {
	if user == nil || user.Role == nil {
		return false
	}
	if !user.IsActive {
		return false
	}
	return user.Role.Permissions.Allows(module, action)
}

// AuthorizeForTenant 租户范围 + 权限映射的组合判定。
func (s *roleService) AuthorizeForTenant(user *model.User, targetTenantID *uint, module, action string) bool {
	if user == nil || user.Role == nil {
		return false
	}

	// 平台级角色跨租户直通，完全跳过租户校验
	if !user.Role.CanAccessAllTenants {
		if targetTenantID == nil {
			// 平台级资源只对跨租户角色开放
			return false
		}
		if user.TenantID == nil || *user.TenantID != *targetTenantID {
			return false
		}
	}

	return s.Authorize(user, module, action)
}

// CanManageUsers 把逐个布尔标志的判断收敛为能力集合成员判断。
func (s *roleService) CanManageUsers(role *model.Role, scope UserScope) bool {
	switch scope {
	case ScopeCompany:
		return role.HasCapability(model.CapManageCompanyUsers)
	case ScopeRegion:
		return role.HasCapability(model.CapManageRegionalUsers)
	case ScopeLocation:
		return role.HasCapability(model.CapManageLocationUsers)
	default:
		return false
	}
}

// ResolveNavigation 是角色记录的纯函数：
// 1. 权限映射里有任意动作的模块进入功能集。
// 2. 能力标志追加对应的专属功能区（财务、审计、用户管理）。
// 输出排序保证稳定，方便测试和前端缓存比对。
func (s *roleService) ResolveNavigation(role *model.Role) []string {
	features := make([]string, 0)
	if role == nil {
		return features
	}

	for module, actions := range role.Permissions {
		if len(actions) > 0 {
			features = append(features, module)
		}
	}

	if role.HasCapability(model.CapViewCompanyFinancials) {
		features = append(features, "financials")
	}
	if role.HasCapability(model.CapAccessAuditLogs) {
		features = append(features, "audit_logs")
	}
	if role.HasCapability(model.CapManageCompanyUsers) ||
		role.HasCapability(model.CapManageRegionalUsers) ||
		role.HasCapability(model.CapManageLocationUsers) {
		features = append(features, "user_management")
	}

	sort.Strings(features)
	return features
}

func (s *roleService) ListRoles() ([]model.Role, error) {
	if s.roleRepo == nil {
		return nil, ErrInternal
	}
	return s.roleRepo.FindAll()
}

func (s *roleService) FindByCode(code string) (*model.Role, error) {
	if s.roleRepo == nil {
		return nil, ErrInternal
	}
	if code == "" {
		return nil, ErrInvalidInput
	}

	role, err := s.roleRepo.FindByCode(code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, err
	}
	return role, nil
}
