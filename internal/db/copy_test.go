package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var applicationColumns = []string{"id", "name", "score"}

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "applications", applicationColumns, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"applications"}, applicationColumns).WillReturnResult(2)

	rows := [][]any{{"a1", "Jane", 81}, {"a2", "Omar", 37}}
	n, err := CopyFrom(context.Background(), mock, "applications", applicationColumns, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_ShortCopy(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"applications"}, applicationColumns).WillReturnResult(1)

	rows := [][]any{{"a1", "Jane", 81}, {"a2", "Omar", 37}}
	n, err := CopyFrom(context.Background(), mock, "applications", applicationColumns, rows)
	require.Error(t, err)
	assert.Equal(t, int64(1), n)
	assert.Contains(t, err.Error(), "copied 1 of 2 rows")
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"applications"}, applicationColumns).WillReturnError(fmt.Errorf("copy failed"))

	rows := [][]any{{"a1", "Jane", 81}}
	_, err = CopyFrom(context.Background(), mock, "applications", applicationColumns, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO applications")
	assert.NoError(t, mock.ExpectationsWereMet())
}
