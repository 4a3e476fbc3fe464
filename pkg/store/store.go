package store

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/user/credit-sentinel/pkg/config"
	"github.com/user/credit-sentinel/pkg/logging"
	"github.com/user/credit-sentinel/pkg/monitor"
)

// Store is a closable monitor.Repository
type Store interface {
	monitor.Repository
	Close() error
}

// FromConfig opens the configured store backend
func FromConfig(cfg config.StoreConfig, log *zap.Logger) (Store, error) {
	log = logging.OrNop(log)
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		s, err := OpenSQLite(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open store %s: %w", cfg.Path, err)
		}
		log.Info("Opened SQLite store", zap.String("path", cfg.Path))
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
