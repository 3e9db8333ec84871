package middleware

import (
	"net/http"

	"dealer_crm_go/internal/model"
	"dealer_crm_go/internal/service"

	"github.com/gin-gonic/gin"
)

// RequirePermission 返回权限检查中间件，保护需要特定模块权限的接口。
// 必须挂在 AuthMiddleware 之后执行（依赖上下文中的用户对象）。
// 判定完全交给角色层级引擎：角色缺失、模块无条目都是默认拒绝，
// 拒绝以 403 返回，不抛异常。
func RequirePermission(roleService service.RoleService, module, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userVal, exists := c.Get("user")
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    http.StatusUnauthorized,
				"message": "User not found in context",
			})
			return
		}
		user, ok := userVal.(*model.User)
		if !ok {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"code":    http.StatusInternalServerError,
				"message": "Failed to get user profile",
			})
			return
		}

		if roleService == nil || !roleService.Authorize(user, module, action) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    http.StatusForbidden,
				"message": "Forbidden: insufficient permissions",
			})
			return
		}

		c.Next()
	}
}
