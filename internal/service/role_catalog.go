package service

import "dealer_crm_go/internal/model"

// 业务模块名常量，权限映射的 key。
const (
	ModuleSales     = "sales"
	ModuleService   = "service"
	ModuleBilling   = "billing"
	ModuleContracts = "contracts"
	ModuleInventory = "inventory"
	ModuleReports   = "reports"
	ModuleTasks     = "tasks"
	ModuleAdmin     = "admin"
)

// DefaultRoleCatalog 返回内置角色目录（种子数据）。
// 级别约定：platform_admin 6-8 > company_admin 5 > regional_manager 4
// > location_manager 3 > department_role 1-4。
// 该约定不由数据库强制，由 role_catalog_test 守住。
func DefaultRoleCatalog() []model.Role {
	return []model.Role{
		{
			Code:     "PLATFORM_SUPER_ADMIN",
			Name:     "平台超级管理员",
			RoleType: model.RoleTypePlatformAdmin,
			Level:    8,
			Permissions: model.PermissionMap{
				ModuleSales:     {model.PermissionWildcard},
				ModuleService:   {model.PermissionWildcard},
				ModuleBilling:   {model.PermissionWildcard},
				ModuleContracts: {model.PermissionWildcard},
				ModuleInventory: {model.PermissionWildcard},
				ModuleReports:   {model.PermissionWildcard},
				ModuleTasks:     {model.PermissionWildcard},
				ModuleAdmin:     {model.PermissionWildcard},
			},
			CanAccessAllTenants:      true,
			CanAccessAllLocations:    true,
			CanManageCompanyUsers:    true,
			CanManageRegionalUsers:   true,
			CanManageLocationUsers:   true,
			CanViewCompanyFinancials: true,
			CanAccessAuditLogs:       true,
		},
		{
			Code:     "PLATFORM_SUPPORT",
			Name:     "平台支持工程师",
			RoleType: model.RoleTypePlatformAdmin,
			Level:    6,
			Permissions: model.PermissionMap{
				ModuleSales:   {"read"},
				ModuleService: {"read", "write"},
				ModuleReports: {"read"},
				ModuleTasks:   {"read"},
				ModuleAdmin:   {"read"},
			},
			CanAccessAllTenants:   true,
			CanAccessAllLocations: true,
			CanAccessAuditLogs:    true,
		},
		{
			Code:     "COMPANY_ADMIN",
			Name:     "公司管理员",
			RoleType: model.RoleTypeCompanyAdmin,
			Level:    5,
			Permissions: model.PermissionMap{
				ModuleSales:     {model.PermissionWildcard},
				ModuleService:   {model.PermissionWildcard},
				ModuleBilling:   {model.PermissionWildcard},
				ModuleContracts: {model.PermissionWildcard},
				ModuleInventory: {model.PermissionWildcard},
				ModuleReports:   {model.PermissionWildcard},
				ModuleTasks:     {model.PermissionWildcard},
				ModuleAdmin:     {"read", "write"},
			},
			CanAccessAllLocations:    true,
			CanManageCompanyUsers:    true,
			CanManageRegionalUsers:   true,
			CanManageLocationUsers:   true,
			CanViewCompanyFinancials: true,
			CanAccessAuditLogs:       true,
		},
		{
			Code:       "REGIONAL_MANAGER",
			Name:       "区域经理",
			RoleType:   model.RoleTypeRegionalManager,
			Department: "management",
			Level:      4,
			Permissions: model.PermissionMap{
				ModuleSales:     {"read", "write", "approve_pricing"},
				ModuleService:   {"read", "write"},
				ModuleContracts: {"read", "approve"},
				ModuleReports:   {"read"},
				ModuleTasks:     {"read", "write"},
			},
			CanManageRegionalUsers: true,
			CanManageLocationUsers: true,
		},
		{
			Code:       "LOCATION_MANAGER",
			Name:       "门店经理",
			RoleType:   model.RoleTypeLocationManager,
			Department: "management",
			Level:      3,
			Permissions: model.PermissionMap{
				ModuleSales:     {"read", "write"},
				ModuleService:   {"read", "write"},
				ModuleInventory: {"read", "write"},
				ModuleReports:   {"read"},
				ModuleTasks:     {"read", "write"},
			},
			CanManageLocationUsers: true,
		},
		{
			Code:       "SALES_MANAGER",
			Name:       "销售经理",
			RoleType:   model.RoleTypeDepartmentRole,
			Department: "sales",
			Level:      3,
			Permissions: model.PermissionMap{
				ModuleSales:     {"read", "write", "approve_pricing"},
				ModuleContracts: {"read", "write"},
				ModuleReports:   {"read"},
				ModuleTasks:     {"read", "write"},
			},
		},
		{
			Code:       "SALES_REP",
			Name:       "销售代表",
			RoleType:   model.RoleTypeDepartmentRole,
			Department: "sales",
			Level:      1,
			Permissions: model.PermissionMap{
				ModuleSales: {"read", "write"},
				ModuleTasks: {"read", "write"},
			},
		},
		{
			Code:       "SERVICE_TECHNICIAN",
			Name:       "服务技师",
			RoleType:   model.RoleTypeDepartmentRole,
			Department: "service",
			Level:      1,
			Permissions: model.PermissionMap{
				ModuleService:   {"read", "write", "close_ticket"},
				ModuleInventory: {"read"},
				ModuleTasks:     {"read", "write"},
			},
		},
		{
			Code:       "BILLING_CLERK",
			Name:       "计费专员",
			RoleType:   model.RoleTypeDepartmentRole,
			Department: "billing",
			Level:      2,
			Permissions: model.PermissionMap{
				ModuleBilling:   {"read", "write"},
				ModuleContracts: {"read"},
				ModuleReports:   {"read"},
			},
			CanViewCompanyFinancials: true,
		},
	}
}
