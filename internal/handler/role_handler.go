package handler

import (
	"net/http"

	"dealer_crm_go/internal/service"

	"github.com/gin-gonic/gin"
)

// RoleHandler 负责角色目录和导航解析接口。
// 角色目录由种子流程维护，这里只读。
type RoleHandler struct {
	roleService service.RoleService
}

func NewRoleHandler(roleService service.RoleService) *RoleHandler {
	return &RoleHandler{roleService: roleService}
}

// List 返回完整角色目录（按级别降序），供管理界面展示。
func (h *RoleHandler) List(c *gin.Context) {
	roles, err := h.roleService.ListRoles()
	if err != nil {
		status, msg := mapServiceError(err)
		c.JSON(status, gin.H{
			"code":    status,
			"message": msg,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Roles retrieved successfully",
		"data":    roles,
	})
}

// GetNavigation 返回当前登录用户的导航功能集。
// 角色缺失时返回空集而不是错误（默认拒绝）。
func (h *RoleHandler) GetNavigation(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		return
	}

	features := h.roleService.ResolveNavigation(user.Role)

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Navigation resolved successfully",
		"data":    features,
	})
}
