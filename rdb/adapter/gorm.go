package adapter

import (
	"context"
	"database/sql"
	"iter"
	"sync"

	"github.com/hatlonely/datadb/rdb"
	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type GormOptions struct {
	// Driver mysql 或 sqlite
	Driver  string `cfg:"driver" def:"mysql" validate:"oneof=mysql sqlite"`
	DSN     string `cfg:"dsn" validate:"required"`
	Dialect string `cfg:"dialect" validate:"omitempty,oneof=mysql redshift"`
}

// GormAdapter 在已有的 *gorm.DB 上执行原生 SQL
type GormAdapter struct {
	db      *gorm.DB
	dialect rdb.Dialect
	quote   quoteFunc

	mu sync.Mutex
	tx *gorm.DB
}

func NewGormWithOptions(options *GormOptions) (*GormAdapter, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}
	var dialector gorm.Dialector
	driver := options.Driver
	switch options.Driver {
	case "mysql":
		dialector = mysql.Open(options.DSN)
	case "sqlite":
		dialector = sqlite.Open(options.DSN)
		driver = "sqlite3"
	default:
		return nil, errors.Errorf("unsupported driver: %s", options.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, errors.Wrapf(err, "gorm.Open %s failed", options.Driver)
	}
	d, err := NewDialect(options.Dialect, driver, "")
	if err != nil {
		return nil, err
	}
	return NewGormAdapter(db, d), nil
}

func NewGormAdapter(db *gorm.DB, d rdb.Dialect) *GormAdapter {
	driver := db.Dialector.Name()
	if driver == "sqlite" {
		driver = "sqlite3"
	}
	return &GormAdapter{db: db, dialect: d, quote: quoterForDriver(driver)}
}

func (a *GormAdapter) DB() *gorm.DB {
	return a.db
}

func (a *GormAdapter) Dialect() rdb.Dialect {
	return a.dialect
}

func (a *GormAdapter) session(ctx context.Context) *gorm.DB {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.tx != nil {
		return a.tx.WithContext(ctx)
	}
	return a.db.WithContext(ctx)
}

type gormResult int64

func (r gormResult) RowsAffected() (int64, error) {
	return int64(r), nil
}

func (a *GormAdapter) Query(ctx context.Context, query string, bind ...any) (rdb.Result, error) {
	res := a.session(ctx).Exec(query, bind...)
	if res.Error != nil {
		return nil, errors.Wrapf(res.Error, "exec failed: %s", abbreviate(query))
	}
	return gormResult(res.RowsAffected), nil
}

func (a *GormAdapter) Fetch(ctx context.Context, query string, bind ...any) iter.Seq2[*rdb.Row, error] {
	return fetchRows(func() (*sql.Rows, error) {
		rows, err := a.session(ctx).Raw(query, bind...).Rows()
		if err != nil {
			return nil, errors.Wrapf(err, "query failed: %s", abbreviate(query))
		}
		return rows, nil
	})
}

func (a *GormAdapter) FetchAll(ctx context.Context, query string, bind ...any) ([]*rdb.Row, error) {
	return collect(a.Fetch(ctx, query, bind...), 0)
}

func (a *GormAdapter) FetchRow(ctx context.Context, query string, bind ...any) (*rdb.Row, error) {
	return fetchRow(a.Fetch(ctx, query, bind...))
}

func (a *GormAdapter) FetchOne(ctx context.Context, query string, bind ...any) (any, error) {
	return fetchOne(a.Fetch(ctx, query, bind...))
}

func (a *GormAdapter) QuoteValue(value any) (string, error) {
	return quoteValue(a.quote, value)
}

func (a *GormAdapter) Begin(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.tx != nil {
		return errors.New("transaction already started")
	}
	tx := a.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return errors.Wrap(tx.Error, "begin failed")
	}
	a.tx = tx
	return nil
}

func (a *GormAdapter) Commit() error {
	tx, err := a.takeTx()
	if err != nil {
		return err
	}
	return errors.Wrap(tx.Commit().Error, "commit failed")
}

func (a *GormAdapter) Rollback() error {
	tx, err := a.takeTx()
	if err != nil {
		return err
	}
	return errors.Wrap(tx.Rollback().Error, "rollback failed")
}

func (a *GormAdapter) takeTx() (*gorm.DB, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.tx == nil {
		return nil, errors.New("no transaction in progress")
	}
	tx := a.tx
	a.tx = nil
	return tx, nil
}

var _ rdb.Adapter = (*GormAdapter)(nil)
