package app

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/drivelink/internal/config"
	"github.com/taoyao-code/drivelink/internal/migrate"
	"github.com/taoyao-code/drivelink/internal/storage"
	"github.com/taoyao-code/drivelink/internal/storage/gormrepo"
	pgstorage "github.com/taoyao-code/drivelink/internal/storage/pg"
)

// ConnectDBAndMigrate 建立数据库连接并按需执行内置迁移
func ConnectDBAndMigrate(ctx context.Context, cfg cfgpkg.DatabaseConfig, log *zap.Logger) (*pgxpool.Pool, error) {
	dbpool, err := pgstorage.NewPool(ctx, cfg, log)
	if err != nil {
		log.Error("db connect error", zap.Error(err))
		return nil, err
	}
	if cfg.AutoMigrate {
		applied, err := (migrate.Runner{FS: migrate.Embedded()}).Up(ctx, dbpool)
		if err != nil {
			log.Error("db migrate error", zap.Error(err))
			dbpool.Close()
			return nil, err
		}
		log.Info("db migrations applied", zap.Int64s("versions", applied))
	}
	return dbpool, nil
}

// NewQueryRepo 在同一连接池上构建 GORM 查询仓库
func NewQueryRepo(dbpool *pgxpool.Pool, log *zap.Logger) (storage.QueryRepo, error) {
	db, err := gormrepo.Open(dbpool, log)
	if err != nil {
		return nil, err
	}
	return gormrepo.New(db), nil
}
