package repository

import (
	"fmt"

	"dealer_crm_go/internal/model"

	"gorm.io/gorm"
)

// RoleRepository 接口定义了角色目录的持久化操作。
// 角色是进程级的参考数据：由种子流程写入，之后以读为主。
type RoleRepository interface {
	Create(role *model.Role) error
	// Update 按唯一 code 更新可变字段（name, role_type, department, level,
	// permissions, 各范围标志），保持主键和 code 稳定。
	Update(role *model.Role) error
	FindByCode(code string) (*model.Role, error)
	FindByID(roleID uint) (*model.Role, error)
	FindAll() ([]model.Role, error)
}

// roleRepository 是 RoleRepository 接口的 GORM 实现。
type roleRepository struct {
	db *gorm.DB
}

// NewRoleRepository 创建一个新的 RoleRepository 实例。
func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

// Create 创建一个新角色。
func (r *roleRepository) Create(role *model.Role) error {
	if role == nil {
		return fmt.Errorf("role is nil")
	}
	if role.Code == "" {
		return fmt.Errorf("role code is required")
	}
	return r.db.Create(role).Error
}

// Update 按 code 更新角色的可变字段。
// 使用 Select 限定更新列，避免零值布尔被 gorm 忽略（Select 强制写入）。
// 如果 code 不存在，返回 gorm.ErrRecordNotFound。
func (r *roleRepository) Update(role *model.Role) error {
	if role == nil {
		return fmt.Errorf("role is nil")
	}
	if role.Code == "" {
		return fmt.Errorf("role code is required")
	}

	tx := r.db.Model(&model.Role{}).
		Where("code = ?", role.Code).
		Select("name", "role_type", "department", "level", "permissions",
			"can_access_all_tenants", "can_access_all_locations",
			"can_manage_company_users", "can_manage_regional_users",
			"can_manage_location_users", "can_view_company_financials",
			"can_access_audit_logs").
		Updates(role)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindByCode 根据唯一 code 查找角色。
func (r *roleRepository) FindByCode(code string) (*model.Role, error) {
	if code == "" {
		return nil, fmt.Errorf("role code is required")
	}
	var role model.Role
	if err := r.db.Where("code = ?", code).First(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

// FindByID 根据ID查找角色。
func (r *roleRepository) FindByID(roleID uint) (*model.Role, error) {
	var role model.Role
	if err := r.db.First(&role, roleID).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

// FindAll 按级别降序返回完整角色目录，供管理界面展示。
func (r *roleRepository) FindAll() ([]model.Role, error) {
	var roles []model.Role
	if err := r.db.Order("level DESC, code ASC").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}
