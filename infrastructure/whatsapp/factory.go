package whatsapp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/bizlinkhq/wa-engine/core/config"
	"github.com/bizlinkhq/wa-engine/infrastructure/messaging"
)

// Factory creates tenant-scoped whatsmeow clients. Every tenant pairs as its
// own device, backed by its own sqlite credential store under the storage dir.
type Factory struct {
	cfg      *config.Config
	logLevel string
}

func NewFactory(cfg *config.Config) *Factory {
	level := "ERROR"
	if cfg.App.Debug {
		level = "DEBUG"
	}
	return &Factory{cfg: cfg, logLevel: level}
}

func (f *Factory) credentialPath(tenantID string) string {
	return filepath.Join(f.cfg.Messaging.StorageDir, fmt.Sprintf("wa-%s.db", tenantID))
}

func (f *Factory) NewClient(tenantID string) (messaging.Client, error) {
	ctx := context.Background()
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", f.credentialPath(tenantID))
	container, err := sqlstore.New(ctx, "sqlite3", dsn, waLog.Stdout("Database-"+tenantID, f.logLevel, true))
	if err != nil {
		return nil, fmt.Errorf("open credential store for tenant %s: %w", tenantID, err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("load device for tenant %s: %w", tenantID, err)
	}
	wa := whatsmeow.NewClient(device, waLog.Stdout("Client-"+tenantID, f.logLevel, true))
	return newClient(tenantID, wa, f.cfg), nil
}

func (f *Factory) DeleteCredentials(tenantID string) error {
	base := f.credentialPath(tenantID)
	for _, path := range []string{base, base + "-wal", base + "-shm"} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove credential store %s: %w", path, err)
		}
	}
	return nil
}
