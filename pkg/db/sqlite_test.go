package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Kopi-Koubou/aura-backend/pkg/db/models"
)

func TestNewSQLiteCreatesSchema(t *testing.T) {
	ctx := context.Background()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())

	client, err := NewSQLite(ctx, dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Ping(ctx))
	for _, model := range models.All() {
		require.True(t, client.DB().Migrator().HasTable(model), "%T", model)
	}
}
