package model

import "time"

// User 对应数据库中users表
// 约束：平台用户（IsPlatformUser=true）的 TenantID 必须为 nil；
// 租户用户的 TenantID 必须非空。该约束由 service 层在写入前校验。
// 每个用户只有一个角色，授权 = 角色权限映射 + 租户范围共同决定。
type User struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username       string    `gorm:"type:varchar(255);not null;unique" json:"username"`
	Password       string    `gorm:"type:varchar(255);not null" json:"-"` // Hide password in json output
	TenantID       *uint     `gorm:"index" json:"tenantId"`
	RoleID         uint      `gorm:"not null;index" json:"roleId"`
	Role           *Role     `gorm:"foreignKey:RoleID" json:"role,omitempty"`
	IsPlatformUser bool      `gorm:"default:false" json:"isPlatformUser"`
	IsActive       bool      `gorm:"default:true" json:"isActive"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定 GORM 使用的表名
func (User) TableName() string {
	return "users"
}
