//go:build integration

package mysql_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/octavei/dota-indexer/internal/model"
	mysqlstore "github.com/octavei/dota-indexer/internal/store/mysql"
)

// TestStore_SavepointRollbackIsolatesFromOuterTx requires a live MySQL
// reachable at DOTA_TEST_MYSQL_DSN; run with `go test -tags=integration`.
func TestStore_SavepointRollbackIsolatesFromOuterTx(t *testing.T) {
	dsn := os.Getenv("DOTA_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("DOTA_TEST_MYSQL_DSN not set")
	}

	ctx := context.Background()
	st, err := mysqlstore.Open(ctx, dsn)
	require.NoError(t, err)
	defer st.Close()

	sess, err := st.Begin(ctx)
	require.NoError(t, err)
	defer sess.Rollback()

	require.NoError(t, sess.CreateTablesForNewTick(ctx, "itest"))

	sp, err := sess.BeginNested(ctx)
	require.NoError(t, err)
	_, err = sp.ExecContext(ctx, "INSERT INTO tick_itest_balances (origin, balance) VALUES (?, ?)", "A", 100)
	require.NoError(t, err)
	require.NoError(t, sp.Rollback())

	row := sess.QueryRowContext(ctx, "SELECT COUNT(*) FROM tick_itest_balances WHERE origin = ?", "A")
	var count int
	require.NoError(t, row.Scan(&count))
	require.Equal(t, 0, count)

	require.NoError(t, sess.InsertOrUpdateIndexerStatus(ctx, model.IndexerCursor{Protocol: "dot-20", IndexerHeight: 1, CrawlerHeight: 1}))
	require.NoError(t, sess.Commit())
}
