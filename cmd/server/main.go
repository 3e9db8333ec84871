package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dealer_crm_go/internal/config"
	"dealer_crm_go/internal/handler"
	"dealer_crm_go/internal/middleware"
	"dealer_crm_go/internal/repository"
	"dealer_crm_go/internal/service"
	"dealer_crm_go/pkg/database"
	"dealer_crm_go/pkg/log"
	"dealer_crm_go/pkg/token"

	"github.com/gin-gonic/gin"
)

func main() {
	config.Init("configs/config.yaml")
	cfg := config.Conf

	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()

	log.Info("Server started")

	database.InitMySQL(cfg.Database.MySQL.DSN)
	if err := database.RunMigrate(); err != nil {
		log.Fatal("Failed to run migrations", err)
		return
	}
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)

	jwtManager := token.NewJWTManager(
		cfg.JWT.Secret,
		time.Duration(cfg.JWT.AccessTokenExpireHours)*time.Hour,
		time.Duration(cfg.JWT.RefreshTokenExpireDays)*24*time.Hour,
	)

	// 依赖装配：repository -> service -> handler
	userRepo := repository.NewUserRepository(database.DB)
	roleRepo := repository.NewRoleRepository(database.DB)
	taskRepo := repository.NewTaskRepository(database.DB)

	userService := service.NewUserService(userRepo, jwtManager)
	roleService := service.NewRoleService(roleRepo)
	taskService := service.NewTaskService(taskRepo)

	userHandler := handler.NewUserHandler(userService)
	roleHandler := handler.NewRoleHandler(roleService)
	taskHandler := handler.NewTaskHandler(taskService)

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "ok"})
	})

	api := r.Group("/api")
	api.POST("/users/login", userHandler.Login)

	// 需要登录的路由
	authed := api.Group("")
	authed.Use(middleware.AuthMiddleware(jwtManager, userService))
	{
		authed.POST("/users/logout", userHandler.Logout)
		authed.GET("/users/profile", userHandler.GetProfile)
		authed.GET("/navigation", roleHandler.GetNavigation)
		authed.GET("/roles", roleHandler.List)

		// 用户管理：需要 admin 模块权限
		adminUsers := authed.Group("/users")
		adminUsers.Use(middleware.RequirePermission(roleService, service.ModuleAdmin, "write"))
		{
			adminUsers.POST("", userHandler.CreateUser)
			adminUsers.DELETE("/:id", userHandler.DeactivateUser)
		}
		authed.GET("/users",
			middleware.RequirePermission(roleService, service.ModuleAdmin, "read"),
			userHandler.ListUsers)

		// 任务层级：需要 tasks 模块权限
		tasks := authed.Group("/tasks")
		{
			tasks.GET("", middleware.RequirePermission(roleService, service.ModuleTasks, "read"), taskHandler.List)
			tasks.GET("/:id", middleware.RequirePermission(roleService, service.ModuleTasks, "read"), taskHandler.Get)

			write := middleware.RequirePermission(roleService, service.ModuleTasks, "write")
			tasks.POST("", write, taskHandler.Create)
			tasks.PATCH("/bulk", write, taskHandler.BulkUpdate)
			tasks.PATCH("/:id", write, taskHandler.Update)
			tasks.DELETE("/:id", write, taskHandler.Delete)
		}
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}
