package service

import (
	"errors"
	"reflect"
	"testing"

	"dealer_crm_go/internal/model"

	"gorm.io/gorm"
)

// fakeRoleRepo 是 RoleRepository 的内存实现，按 code 建索引，
// 便于验证种子流程的"有则更新、无则创建"语义。
type fakeRoleRepo struct {
	nextID uint
	byCode map[string]*model.Role

	createErr map[string]error
	updateErr map[string]error
	findErr   map[string]error
}

func newFakeRoleRepo() *fakeRoleRepo {
	return &fakeRoleRepo{nextID: 1, byCode: make(map[string]*model.Role)}
}

func (f *fakeRoleRepo) Create(role *model.Role) error {
	if err := f.createErr[role.Code]; err != nil {
		return err
	}
	role.ID = f.nextID
	f.nextID++
	cp := *role
	f.byCode[role.Code] = &cp
	return nil
}

func (f *fakeRoleRepo) Update(role *model.Role) error {
	if err := f.updateErr[role.Code]; err != nil {
		return err
	}
	existing, ok := f.byCode[role.Code]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	id := existing.ID
	cp := *role
	cp.ID = id
	f.byCode[role.Code] = &cp
	return nil
}

func (f *fakeRoleRepo) FindByCode(code string) (*model.Role, error) {
	if err := f.findErr[code]; err != nil {
		return nil, err
	}
	role, ok := f.byCode[code]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *role
	return &cp, nil
}

func (f *fakeRoleRepo) FindByID(roleID uint) (*model.Role, error) {
	for _, role := range f.byCode {
		if role.ID == roleID {
			cp := *role
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRoleRepo) FindAll() ([]model.Role, error) {
	var out []model.Role
	for _, role := range f.byCode {
		out = append(out, *role)
	}
	return out, nil
}

func activeUser(role *model.Role, tenantID *uint) *model.User {
	return &model.User{
		Username: "tester",
		TenantID: tenantID,
		Role:     role,
		IsActive: true,
	}
}

// 重复播种收敛到同一状态：第二遍全部走更新路径，不产生重复行。
func TestRoleService_SeedCatalog_Idempotent(t *testing.T) {
	repo := newFakeRoleRepo()
	svc := NewRoleService(repo)
	defs := DefaultRoleCatalog()

	if applied := svc.SeedCatalog(defs); applied != len(defs) {
		t.Fatalf("first seed: expect %d applied, got %d", len(defs), applied)
	}
	if len(repo.byCode) != len(defs) {
		t.Fatalf("expect %d stored roles, got %d", len(defs), len(repo.byCode))
	}

	firstIDs := make(map[string]uint)
	for code, role := range repo.byCode {
		firstIDs[code] = role.ID
	}

	if applied := svc.SeedCatalog(defs); applied != len(defs) {
		t.Fatalf("second seed: expect %d applied, got %d", len(defs), applied)
	}
	if len(repo.byCode) != len(defs) {
		t.Fatalf("second seed must not create duplicates, got %d roles", len(repo.byCode))
	}
	for code, role := range repo.byCode {
		if role.ID != firstIDs[code] {
			t.Fatalf("role %q: ID changed from %d to %d after reseed", code, firstIDs[code], role.ID)
		}
	}
}

// 已有角色被再次播种时按 code 更新可变字段。
func TestRoleService_SeedCatalog_UpdatesExisting(t *testing.T) {
	repo := newFakeRoleRepo()
	svc := NewRoleService(repo)

	stale := model.Role{Code: "SALES_REP", Name: "旧名字", RoleType: model.RoleTypeDepartmentRole, Level: 9}
	if err := repo.Create(&stale); err != nil {
		t.Fatalf("setup: %v", err)
	}

	svc.SeedCatalog(DefaultRoleCatalog())

	got := repo.byCode["SALES_REP"]
	if got.Name == "旧名字" || got.Level != 1 {
		t.Fatalf("expect SALES_REP refreshed from catalog, got name=%q level=%d", got.Name, got.Level)
	}
}

// 单条失败不中断整批（尽力而为），其余定义照常写入。
func TestRoleService_SeedCatalog_ContinuesPastFailure(t *testing.T) {
	repo := newFakeRoleRepo()
	repo.createErr = map[string]error{"COMPANY_ADMIN": errors.New("duplicate entry")}
	svc := NewRoleService(repo)

	defs := DefaultRoleCatalog()
	applied := svc.SeedCatalog(defs)

	if applied != len(defs)-1 {
		t.Fatalf("expect %d applied with one failure, got %d", len(defs)-1, applied)
	}
	if _, ok := repo.byCode["SALES_REP"]; !ok {
		t.Fatalf("definitions after the failing one should still be applied")
	}
}

func TestRoleService_SeedCatalog_SkipsEmptyCode(t *testing.T) {
	repo := newFakeRoleRepo()
	svc := NewRoleService(repo)

	applied := svc.SeedCatalog([]model.Role{
		{Name: "无code"},
		{Code: "OK_ROLE", Name: "正常", RoleType: model.RoleTypeDepartmentRole, Level: 1},
	})
	if applied != 1 {
		t.Fatalf("expect 1 applied, got %d", applied)
	}
}

// 默认拒绝：模块没有条目、nil 用户、nil 角色、停用用户，全部拒绝。
func TestRoleService_Authorize_DenyByDefault(t *testing.T) {
	svc := NewRoleService(newFakeRoleRepo())

	role := &model.Role{
		Code:        "SALES_REP",
		Permissions: model.PermissionMap{"sales": {"read", "write"}},
	}

	if svc.Authorize(nil, "sales", "read") {
		t.Fatalf("nil user must be denied")
	}
	if svc.Authorize(&model.User{IsActive: true}, "sales", "read") {
		t.Fatalf("user without role must be denied")
	}

	inactive := activeUser(role, nil)
	inactive.IsActive = false
	if svc.Authorize(inactive, "sales", "read") {
		t.Fatalf("inactive user must be denied")
	}

	user := activeUser(role, nil)
	if svc.Authorize(user, "billing", "read") {
		t.Fatalf("module without entry must be denied")
	}
	if svc.Authorize(user, "sales", "delete") {
		t.Fatalf("action not in list must be denied")
	}
	if !svc.Authorize(user, "sales", "write") {
		t.Fatalf("listed action must be allowed")
	}
}

// 通配符放行模块下所有动作，包括目录里从未枚举过的。
func TestRoleService_Authorize_Wildcard(t *testing.T) {
	svc := NewRoleService(newFakeRoleRepo())

	role := &model.Role{
		Code:        "COMPANY_ADMIN",
		Permissions: model.PermissionMap{"sales": {model.PermissionWildcard}},
	}
	user := activeUser(role, nil)

	for _, action := range []string{"read", "write", "delete", "approve_pricing", "whatever"} {
		if !svc.Authorize(user, "sales", action) {
			t.Fatalf("wildcard should allow action %q", action)
		}
	}
	if svc.Authorize(user, "billing", "read") {
		t.Fatalf("wildcard is per-module, other modules stay denied")
	}
}

// 租户校验：普通角色只能访问本租户资源，跨租户角色完全跳过校验。
func TestRoleService_AuthorizeForTenant(t *testing.T) {
	svc := NewRoleService(newFakeRoleRepo())

	scoped := &model.Role{
		Code:        "SALES_REP",
		Permissions: model.PermissionMap{"sales": {"read"}},
	}
	bypass := &model.Role{
		Code:                "PLATFORM_SUPER_ADMIN",
		Permissions:         model.PermissionMap{"sales": {model.PermissionWildcard}},
		CanAccessAllTenants: true,
	}

	tenantA, tenantB := uint(1), uint(2)

	user := activeUser(scoped, &tenantA)
	if !svc.AuthorizeForTenant(user, &tenantA, "sales", "read") {
		t.Fatalf("same tenant must be allowed")
	}
	if svc.AuthorizeForTenant(user, &tenantB, "sales", "read") {
		t.Fatalf("cross tenant must be denied without bypass flag")
	}
	if svc.AuthorizeForTenant(user, nil, "sales", "read") {
		t.Fatalf("platform-level resource must be denied for tenant-scoped role")
	}

	admin := activeUser(bypass, nil)
	if !svc.AuthorizeForTenant(admin, &tenantB, "sales", "delete") {
		t.Fatalf("CanAccessAllTenants must bypass tenant check")
	}
	if !svc.AuthorizeForTenant(admin, nil, "sales", "read") {
		t.Fatalf("CanAccessAllTenants must allow platform-level resources")
	}

	// 跨租户标志只跳过租户校验，权限映射仍然生效
	if svc.AuthorizeForTenant(admin, &tenantB, "billing", "read") {
		t.Fatalf("bypass flag must not grant permissions outside the map")
	}
}

func TestRoleService_CanManageUsers(t *testing.T) {
	svc := NewRoleService(newFakeRoleRepo())

	role := &model.Role{Code: "LOCATION_MANAGER", CanManageLocationUsers: true}

	if !svc.CanManageUsers(role, ScopeLocation) {
		t.Fatalf("expect location scope allowed")
	}
	if svc.CanManageUsers(role, ScopeCompany) || svc.CanManageUsers(role, ScopeRegion) {
		t.Fatalf("other scopes must stay denied")
	}
	if svc.CanManageUsers(role, UserScope("warehouse")) {
		t.Fatalf("unknown scope must be denied")
	}
}

// 导航推导：模块 + 能力专属功能区，输出有序；nil 角色得到空集。
func TestRoleService_ResolveNavigation(t *testing.T) {
	svc := NewRoleService(newFakeRoleRepo())

	role := &model.Role{
		Code: "BILLING_CLERK",
		Permissions: model.PermissionMap{
			"billing":   {"read", "write"},
			"reports":   {"read"},
			"contracts": {},
		},
		CanViewCompanyFinancials: true,
	}

	got := svc.ResolveNavigation(role)
	want := []string{"billing", "financials", "reports"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expect %v, got %v", want, got)
	}
}

func TestRoleService_ResolveNavigation_NilRole(t *testing.T) {
	svc := NewRoleService(newFakeRoleRepo())

	got := svc.ResolveNavigation(nil)
	if got == nil || len(got) != 0 {
		t.Fatalf("nil role must resolve to empty (non-nil) feature set, got %v", got)
	}
}

func TestRoleService_ResolveNavigation_UserManagement(t *testing.T) {
	svc := NewRoleService(newFakeRoleRepo())

	role := &model.Role{
		Code:                   "REGIONAL_MANAGER",
		Permissions:            model.PermissionMap{"sales": {"read"}},
		CanManageRegionalUsers: true,
		CanManageLocationUsers: true,
	}

	got := svc.ResolveNavigation(role)
	want := []string{"sales", "user_management"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expect %v, got %v (user_management must appear once)", want, got)
	}
}

func TestRoleService_FindByCode_NotFound(t *testing.T) {
	svc := NewRoleService(newFakeRoleRepo())

	if _, err := svc.FindByCode("NO_SUCH_ROLE"); !errors.Is(err, ErrRoleNotFound) {
		t.Fatalf("expect ErrRoleNotFound, got %v", err)
	}
	if _, err := svc.FindByCode(""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expect ErrInvalidInput for empty code, got %v", err)
	}
}
