package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/wowhead-parser/internal/crawler"
	"github.com/JakeFAU/wowhead-parser/internal/hash/sha256"
)

const helloDigest = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

func TestRecordBlockInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewBlockStoreWithPool(mock, "", sha256.New())
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	block := crawler.Block{
		ID:             448,
		URL:            "http://www.wowhead.com/npc=448",
		Content:        []byte("hello world"),
		FetchSucceeded: true,
		StatusCode:     200,
		FetchedAt:      now,
		Duration:       1500 * time.Millisecond,
	}

	mock.ExpectExec("INSERT INTO dump_blocks").
		WithArgs("run-1", int64(448), block.URL, true, 200, helloDigest, int64(11), now, int64(1500)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.RecordBlock(context.Background(), "run-1", block))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordBlockFailedFetchHasNoHash(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewBlockStoreWithPool(mock, "ledger", sha256.New())
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	block := crawler.Block{ID: 7, URL: "http://www.wowhead.com/npc=7", StatusCode: 404, FetchedAt: now}

	mock.ExpectExec("INSERT INTO ledger").
		WithArgs("run-2", int64(7), block.URL, false, 404, "", int64(0), now, int64(0)).
		WillReturnError(errors.New("connection reset"))

	err = store.RecordBlock(context.Background(), "run-2", block)
	require.ErrorContains(t, err, "insert block 7")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewBlockStoreWithPoolValidation(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewBlockStoreWithPool(nil, "", sha256.New())
	require.Error(t, err)
	_, err = NewBlockStoreWithPool(mock, "", nil)
	require.Error(t, err)
	_, err = NewBlockStoreWithPool(mock, "blocks; drop table x", sha256.New())
	require.Error(t, err)

	store, err := NewBlockStoreWithPool(mock, "", sha256.New())
	require.NoError(t, err)
	require.Error(t, store.RecordBlock(context.Background(), "", crawler.Block{}))
}

func TestConnectRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := Connect(context.Background(), Config{})
	require.ErrorContains(t, err, "db.dsn")
}
