package repositories

import (
	"context"
	"strconv"

	"feeledger/internal/common"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

// DBTX is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// TxDB can open transactions.
type TxDB interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// notFound converts pgx.ErrNoRows into a typed not-found error.
func notFound(err error, resource string, id uuid.UUID) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return common.NewNotFound(resource, id)
	}
	return errors.Wrapf(err, "load %s", resource)
}

func paginate(query string, args []interface{}, limit, offset int) (string, []interface{}) {
	limit, offset = common.ValidatePaginationParams(limit, offset)
	args = append(args, limit, offset)
	return query + " LIMIT $" + strconv.Itoa(len(args)-1) + " OFFSET $" + strconv.Itoa(len(args)), args
}

// placeholder appends v to args and returns its positional parameter.
func placeholder(args []interface{}, v interface{}) (string, []interface{}) {
	args = append(args, v)
	return "$" + strconv.Itoa(len(args)), args
}
