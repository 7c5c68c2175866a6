// Package backend selects the storage implementation once at startup.
package backend

import (
	"context"
	"fmt"

	"github.com/safar/storefront/internal/config"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/idgen"
	"github.com/safar/storefront/internal/store"
	"github.com/safar/storefront/internal/store/filestore"
	"github.com/safar/storefront/internal/store/sqlstore"
	"go.uber.org/zap"
)

var (
	_ store.ProductRepository  = (*filestore.ProductRepository)(nil)
	_ store.CategoryRepository = (*filestore.CategoryRepository)(nil)
	_ store.ClientRepository   = (*filestore.ClientRepository)(nil)
	_ store.CartRepository     = (*filestore.CartRepository)(nil)
	_ store.OrderRepository    = (*filestore.OrderRepository)(nil)

	_ store.ProductRepository  = (*sqlstore.ProductRepository)(nil)
	_ store.CategoryRepository = (*sqlstore.CategoryRepository)(nil)
	_ store.ClientRepository   = (*sqlstore.ClientRepository)(nil)
	_ store.CartRepository     = (*sqlstore.CartRepository)(nil)
	_ store.OrderRepository    = (*sqlstore.OrderRepository)(nil)
)

// Open builds the repositories of the backend named by cfg.Store.Backend.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*store.Store, error) {
	ids, err := idgen.NewSnowflake(cfg.Store.NodeID)
	if err != nil {
		return nil, err
	}

	switch cfg.Store.Backend {
	case config.BackendFile:
		fs, err := filestore.Open(cfg.Store.DataDir, ids)
		if err != nil {
			return nil, err
		}
		logger.Info("using file store", zap.String("dir", cfg.Store.DataDir))
		return store.NewStore(config.BackendFile, store.Repositories{
			Products:   fs.Products(),
			Categories: fs.Categories(),
			Clients:    fs.Clients(),
			Cart:       fs.Cart(),
			Orders:     fs.Orders(),
		}, fs), nil

	case config.BackendSQL:
		sqlDB, err := database.NewConnection(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		gdb, err := database.NewGorm(sqlDB)
		if err != nil {
			sqlDB.Close()
			return nil, err
		}
		ss := sqlstore.New(gdb, ids)
		logger.Info("using sql store",
			zap.Int("max_open_conns", cfg.Database.MaxOpenConns),
			zap.Int("max_idle_conns", cfg.Database.MaxIdleConns))
		return store.NewStore(config.BackendSQL, store.Repositories{
			Products:   ss.Products(),
			Categories: ss.Categories(),
			Clients:    ss.Clients(),
			Cart:       ss.Cart(),
			Orders:     ss.Orders(),
		}, ss), nil
	}

	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}
