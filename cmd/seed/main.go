// 种子命令：把内置角色目录写入数据库。
// 在部署/初始化时运行，不提供运行时接口。幂等：重复执行收敛到同一状态。
//
//	go run ./cmd/seed -config configs/config.yaml
package main

import (
	"flag"

	"dealer_crm_go/internal/config"
	"dealer_crm_go/internal/repository"
	"dealer_crm_go/internal/service"
	"dealer_crm_go/pkg/database"
	"dealer_crm_go/pkg/log"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	flag.Parse()

	config.Init(*configPath)
	cfg := config.Conf

	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()

	database.InitMySQL(cfg.Database.MySQL.DSN)
	if err := database.RunMigrate(); err != nil {
		log.Fatal("Failed to run migrations", err)
		return
	}

	roleService := service.NewRoleService(repository.NewRoleRepository(database.DB))

	defs := service.DefaultRoleCatalog()
	applied := roleService.SeedCatalog(defs)
	log.Infof("Role catalog seeded: %d/%d definitions applied", applied, len(defs))
}
