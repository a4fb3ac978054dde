package usuario

import (
	"context"
	"embed"

	"github.com/rs/zerolog"

	"github.com/nao1215/microtienda/pkg/database"
)

//go:embed migrations
var migrationsFS embed.FS

// openStore はマイグレーション済みのインメモリストアを開く。
func openStore(ctx context.Context, log zerolog.Logger) (*Store, error) {
	db, err := database.OpenMemory(ctx, migrationsFS, "migrations", log)
	if err != nil {
		return nil, err
	}
	return NewStore(db), nil
}
