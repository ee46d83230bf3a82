package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"net"
	"net/url"
	"sync"

	"github.com/go-sql-driver/mysql"
	"github.com/hatlonely/datadb/rdb"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

type SQLOptions struct {
	// Driver mysql、sqlite3、pgx 或 postgres，Redshift 使用 pgx 或 postgres
	Driver   string `cfg:"driver" def:"mysql" validate:"oneof=mysql sqlite3 pgx postgres"`
	DSN      string `cfg:"dsn"`
	Host     string `cfg:"host" def:"localhost"`
	Port     string `cfg:"port"`
	Database string `cfg:"database"`
	Username string `cfg:"username"`
	Password string `cfg:"password"`
	Charset  string `cfg:"charset" def:"utf8mb4"`
	MaxConns int    `cfg:"maxConns" def:"10"`
	MaxIdle  int    `cfg:"maxIdle" def:"5"`
	// Dialect mysql 或 redshift，为空时由 Driver 推断
	Dialect  string `cfg:"dialect" validate:"omitempty,oneof=mysql redshift"`
	Timezone string `cfg:"timezone"`
}

// SQLAdapter 基于 database/sql 的 Adapter
//
// Begin 之后的所有语句在同一个事务中执行，直到 Commit 或 Rollback
type SQLAdapter struct {
	db      *sql.DB
	driver  string
	dialect rdb.Dialect
	quote   quoteFunc

	mu sync.Mutex
	tx *sql.Tx
}

func NewSQLWithOptions(options *SQLOptions) (*SQLAdapter, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}
	d, err := NewDialect(options.Dialect, options.Driver, options.Timezone)
	if err != nil {
		return nil, err
	}
	dsn, err := buildDSN(options)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(options.Driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "sql.Open %s failed", options.Driver)
	}
	db.SetMaxOpenConns(options.MaxConns)
	db.SetMaxIdleConns(options.MaxIdle)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "failed to connect %s", options.Driver)
	}

	return NewSQLAdapter(db, options.Driver, d), nil
}

// NewSQLAdapter 包装已有的连接池，driver 决定占位符和字面量转义规则
func NewSQLAdapter(db *sql.DB, driver string, d rdb.Dialect) *SQLAdapter {
	return &SQLAdapter{db: db, driver: driver, dialect: d, quote: quoterForDriver(driver)}
}

func buildDSN(options *SQLOptions) (string, error) {
	if options.DSN != "" {
		return options.DSN, nil
	}
	switch options.Driver {
	case "mysql":
		port := options.Port
		if port == "" {
			port = "3306"
		}
		cfg := mysql.NewConfig()
		cfg.User = options.Username
		cfg.Passwd = options.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(options.Host, port)
		cfg.DBName = options.Database
		cfg.ParseTime = true
		cfg.Params = map[string]string{"charset": options.Charset}
		return cfg.FormatDSN(), nil
	case "sqlite3":
		return options.Database, nil
	case "pgx", "postgres":
		port := options.Port
		if port == "" {
			port = "5439"
		}
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(options.Username, options.Password),
			Host:   net.JoinHostPort(options.Host, port),
			Path:   "/" + options.Database,
		}
		return u.String(), nil
	}
	return "", errors.Errorf("unsupported driver: %s", options.Driver)
}

func (a *SQLAdapter) DB() *sql.DB {
	return a.db
}

func (a *SQLAdapter) Driver() string {
	return a.driver
}

func (a *SQLAdapter) Dialect() rdb.Dialect {
	return a.dialect
}

func (a *SQLAdapter) prepare(query string) string {
	if a.driver == "pgx" || a.driver == "postgres" {
		return rebind(query)
	}
	return query
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (a *SQLAdapter) executor() executor {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.tx != nil {
		return a.tx
	}
	return a.db
}

// statement COPY/UNLOAD 在 PG 协议上不能 prepare，参数在客户端内联进 sql
func (a *SQLAdapter) statement(query string, bind []any) (string, []any, error) {
	if (a.driver == "pgx" || a.driver == "postgres") && len(bind) > 0 && isUtilityStatement(query) {
		inlined, err := inlineBind(a.quote, query, bind)
		if err != nil {
			return "", nil, err
		}
		return inlined, nil, nil
	}
	return a.prepare(query), bind, nil
}

func (a *SQLAdapter) Query(ctx context.Context, query string, bind ...any) (rdb.Result, error) {
	query, bind, err := a.statement(query, bind)
	if err != nil {
		return nil, err
	}
	res, err := a.executor().ExecContext(ctx, query, bind...)
	if err != nil {
		return nil, errors.Wrapf(err, "exec failed: %s", abbreviate(query))
	}
	return res, nil
}

func (a *SQLAdapter) Fetch(ctx context.Context, query string, bind ...any) iter.Seq2[*rdb.Row, error] {
	return fetchRows(func() (*sql.Rows, error) {
		rows, err := a.executor().QueryContext(ctx, a.prepare(query), bind...)
		if err != nil {
			return nil, errors.Wrapf(err, "query failed: %s", abbreviate(query))
		}
		return rows, nil
	})
}

func (a *SQLAdapter) FetchAll(ctx context.Context, query string, bind ...any) ([]*rdb.Row, error) {
	return collect(a.Fetch(ctx, query, bind...), 0)
}

func (a *SQLAdapter) FetchRow(ctx context.Context, query string, bind ...any) (*rdb.Row, error) {
	return fetchRow(a.Fetch(ctx, query, bind...))
}

func (a *SQLAdapter) FetchOne(ctx context.Context, query string, bind ...any) (any, error) {
	return fetchOne(a.Fetch(ctx, query, bind...))
}

func (a *SQLAdapter) QuoteValue(value any) (string, error) {
	return quoteValue(a.quote, value)
}

func (a *SQLAdapter) Begin(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.tx != nil {
		return errors.New("transaction already started")
	}
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin failed")
	}
	a.tx = tx
	return nil
}

func (a *SQLAdapter) Commit() error {
	tx, err := a.takeTx()
	if err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "commit failed")
}

func (a *SQLAdapter) Rollback() error {
	tx, err := a.takeTx()
	if err != nil {
		return err
	}
	return errors.Wrap(tx.Rollback(), "rollback failed")
}

func (a *SQLAdapter) takeTx() (*sql.Tx, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.tx == nil {
		return nil, errors.New("no transaction in progress")
	}
	tx := a.tx
	a.tx = nil
	return tx, nil
}

func (a *SQLAdapter) Close() error {
	return a.db.Close()
}

// abbreviate 错误信息里只保留语句开头
func abbreviate(query string) string {
	if len(query) <= 64 {
		return query
	}
	return fmt.Sprintf("%s...", query[:64])
}

var _ rdb.Adapter = (*SQLAdapter)(nil)
