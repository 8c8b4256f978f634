// Package vectorutils is the vector store utility package
package vectorutils

import (
	"fmt"
	"log/slog"

	"github.com/B0LK13/obsidian-agent-sub005/pkg/storage"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/vector"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/vector/memory"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/vector/sqlitevec"
)

type NewVectorDriverOpts struct {
	ProviderType string
	Storage      storage.Driver
	SnapshotPath string
	SQLitePath   string
	Dimensions   uint
	Logger       *slog.Logger
}

func NewVectorDriver(o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case "memory":
		return memory.NewDriver(memory.Config{
			Storage:      o.Storage,
			SnapshotPath: o.SnapshotPath,
		})
	case "sqlitevec":
		return sqlitevec.NewDriver(sqlitevec.Config{
			DBPath:     o.SQLitePath,
			Dimensions: o.Dimensions,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
