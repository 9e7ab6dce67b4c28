package factory

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLOpener implements Opener on top of database/sql. It deliberately
// configures the underlying *sql.DB as unpooled (no idle retention, no
// cap on the number of physical sessions database/sql itself will open)
// so that internal/pool is the only connection pool in the path — the
// same role the original spec's UnpooledFactory plays in front of a
// pooling-unaware driver.
type SQLOpener struct {
	driver   string
	dsn      string
	username string
	db       *sql.DB
}

// NewSQLOpener opens the backing *sql.DB (but no connections yet — those
// are opened lazily, once per Open call, exactly like the spec's
// UnpooledFactory.open()).
func NewSQLOpener(driver, dsn, username string) (*SQLOpener, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connpool: opening backing *sql.DB: %w", err)
	}
	// No idle retention and no open cap: every factory.Open() call must
	// mint a genuinely new physical session, never one recycled by
	// database/sql's own pool.
	db.SetMaxIdleConns(0)
	db.SetConnMaxIdleTime(0)

	return &SQLOpener{driver: driver, dsn: dsn, username: username, db: db}, nil
}

// Open returns a fresh *sql.Conn.
func (o *SQLOpener) Open(ctx context.Context) (*sql.Conn, error) {
	conn, err := o.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("connpool: opening physical connection: %w", err)
	}
	return conn, nil
}

// Identity reports the triple used to compute the fingerprint.
func (o *SQLOpener) Identity() (driver, dsn, username string) {
	return o.driver, o.dsn, o.username
}

// Close releases the backing *sql.DB. Call once, after every pooled
// connection derived from it has been closed.
func (o *SQLOpener) Close() error {
	return o.db.Close()
}
