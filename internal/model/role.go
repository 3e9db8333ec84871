package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// 角色类型常量。
// 约定：platform_admin 级别最高（6-8），company_admin 为 5，
// regional_manager 为 4，location_manager 为 3，department_role 最低（1-4）。
// 该约定由种子数据维护，数据库不做强制校验，测试负责守住。
const (
	RoleTypePlatformAdmin   = "platform_admin"
	RoleTypeCompanyAdmin    = "company_admin"
	RoleTypeRegionalManager = "regional_manager"
	RoleTypeLocationManager = "location_manager"
	RoleTypeDepartmentRole  = "department_role"
)

// PermissionWildcard 权限通配符：出现在某模块的动作列表中时，放行该模块下所有动作。
const PermissionWildcard = "*"

// PermissionMap 是"模块名 -> 允许的动作列表"的权限映射，
// 以 JSON 形式存储在 roles 表的 permissions 列中。
type PermissionMap map[string][]string

// Value 实现 driver.Valuer，写库时序列化为 JSON。
func (m PermissionMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner，读库时从 JSON 反序列化。
func (m *PermissionMap) Scan(value interface{}) error {
	if value == nil {
		*m = PermissionMap{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported permission map type %T", value)
	}
}

// Allows 判断权限映射是否允许某模块下的某个动作。
// 规则（默认拒绝）：
// 1. 模块没有条目 -> 拒绝，不从部门或级别做任何隐式继承。
// 2. 动作列表含通配符 "*" -> 放行所有动作。
// 3. 动作精确匹配 -> 放行。
func (m PermissionMap) Allows(module, action string) bool {
	actions, ok := m[module]
	if !ok {
		return false
	}
	for _, a := range actions {
		if a == PermissionWildcard || a == action {
			return true
		}
	}
	return false
}

// Role 对应数据库中 roles 表。
// 每个用户同一时刻只有一个角色（users.role_id 外键引用）。
// Level 仅用于展示和排序，不参与授权判断。
type Role struct {
	ID          uint          `gorm:"primaryKey;autoIncrement" json:"id"`
	Code        string        `gorm:"type:varchar(100);not null;unique" json:"code"`
	Name        string        `gorm:"type:varchar(100);not null" json:"name"`
	RoleType    string        `gorm:"type:varchar(50);not null" json:"roleType"`
	Department  string        `gorm:"type:varchar(100)" json:"department"`
	Level       int           `gorm:"not null;default:1" json:"level"`
	Permissions PermissionMap `gorm:"type:json" json:"permissions"`

	// 范围标志：跨租户/跨门店访问与用户管理能力
	CanAccessAllTenants      bool `gorm:"default:false" json:"canAccessAllTenants"`
	CanAccessAllLocations    bool `gorm:"default:false" json:"canAccessAllLocations"`
	CanManageCompanyUsers    bool `gorm:"default:false" json:"canManageCompanyUsers"`
	CanManageRegionalUsers   bool `gorm:"default:false" json:"canManageRegionalUsers"`
	CanManageLocationUsers   bool `gorm:"default:false" json:"canManageLocationUsers"`
	CanViewCompanyFinancials bool `gorm:"default:false" json:"canViewCompanyFinancials"`
	CanAccessAuditLogs       bool `gorm:"default:false" json:"canAccessAuditLogs"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定 GORM 使用的表名
func (Role) TableName() string {
	return "roles"
}

// Capability 是角色能力标签（封闭枚举）。
// 把 roles 表上一排布尔范围标志收敛为一个能力集合，
// 调用方只做一次集合成员判断，不再逐个翻布尔字段。
type Capability string

const (
	CapAccessAllTenants      Capability = "access_all_tenants"
	CapAccessAllLocations    Capability = "access_all_locations"
	CapManageCompanyUsers    Capability = "manage_company_users"
	CapManageRegionalUsers   Capability = "manage_regional_users"
	CapManageLocationUsers   Capability = "manage_location_users"
	CapViewCompanyFinancials Capability = "view_company_financials"
	CapAccessAuditLogs       Capability = "access_audit_logs"
)

// Capabilities 把角色的布尔范围标志解析为能力集合。
func (r *Role) Capabilities() map[Capability]struct{} {
	caps := make(map[Capability]struct{})
	if r == nil {
		return caps
	}
	if r.CanAccessAllTenants {
		caps[CapAccessAllTenants] = struct{}{}
	}
	if r.CanAccessAllLocations {
		caps[CapAccessAllLocations] = struct{}{}
	}
	if r.CanManageCompanyUsers {
		caps[CapManageCompanyUsers] = struct{}{}
	}
	if r.CanManageRegionalUsers {
		caps[CapManageRegionalUsers] = struct{}{}
	}
	if r.CanManageLocationUsers {
		caps[CapManageLocationUsers] = struct{}{}
	}
	if r.CanViewCompanyFinancials {
		caps[CapViewCompanyFinancials] = struct{}{}
	}
	if r.CanAccessAuditLogs {
		caps[CapAccessAuditLogs] = struct{}{}
	}
	return caps
}

// HasCapability 判断角色是否具备某个能力。nil 角色一律返回 false（默认拒绝）。
func (r *Role) HasCapability(c Capability) bool {
	if r == nil {
		return false
	}
	_, ok := r.Capabilities()[c]
	return ok
}
