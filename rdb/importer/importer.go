package importer

import (
	"context"
	"iter"
	"strings"

	"github.com/hatlonely/datadb/log"
	"github.com/hatlonely/datadb/log/logger"
	"github.com/hatlonely/datadb/rdb"
	"github.com/hatlonely/datadb/rdb/helper"
	"github.com/hatlonely/datadb/ref"
	"github.com/pkg/errors"
)

const DefaultBatchSize = 100

type IteratorImporterOptions struct {
	BatchSize int              `cfg:"batchSize" def:"100"`
	Logger    *ref.TypeOptions `cfg:"logger"`
}

// IteratorImporter 按批次把行插入表中，每批一条 INSERT
//
// 批次之间没有事务，第 k 批失败时前 k-1 批已经生效，需要整体原子性时由调用方包一层事务
type IteratorImporter struct {
	table     rdb.Table
	batchSize int
	logger    logger.Logger
}

func NewIteratorImporter(table rdb.Table) *IteratorImporter {
	return &IteratorImporter{table: table, batchSize: DefaultBatchSize, logger: log.Default()}
}

func NewIteratorImporterWithOptions(table rdb.Table, options *IteratorImporterOptions) (*IteratorImporter, error) {
	if options == nil {
		return NewIteratorImporter(table), nil
	}
	if options.BatchSize < 1 {
		return nil, errors.Wrapf(rdb.ErrInvalidChunkSize, "batch size must be at least 1, got %d", options.BatchSize)
	}
	l, err := log.NewLoggerWithOptions(options.Logger)
	if err != nil {
		return nil, errors.WithMessage(err, "log.NewLoggerWithOptions failed")
	}
	return &IteratorImporter{table: table, batchSize: options.BatchSize, logger: l}, nil
}

func (i *IteratorImporter) WithLogger(l logger.Logger) *IteratorImporter {
	i.logger = l
	return i
}

func (i *IteratorImporter) BatchSize() int {
	return i.batchSize
}

// Import 按输入顺序分批插入，返回目标表
func (i *IteratorImporter) Import(ctx context.Context, rows iter.Seq[[]any]) (rdb.Table, error) {
	chunks, err := helper.Chunk(rows, i.batchSize)
	if err != nil {
		return nil, err
	}

	adapter := i.table.Adapter()
	d := adapter.Dialect()
	batch, total := 0, 0
	for chunk := range chunks {
		sql, bind, err := d.InsertSyntax(i.table, chunk)
		if err != nil {
			return nil, err
		}
		if _, err := adapter.Query(ctx, strings.TrimSpace(sql), bind...); err != nil {
			return nil, errors.WithMessagef(err, "failed to insert batch %d into %s", batch, i.table.FullName())
		}
		batch++
		total += len(chunk)
	}

	i.logger.InfoContext(ctx, "imported rows into table", "table", i.table.FullName(), "rows", total, "batches", batch)
	return i.table, nil
}

// Values 把行序列转换为按列取值的序列，列缺失时为 nil
func Values(rows iter.Seq2[*rdb.Row, error], columns []string, errp *error) iter.Seq[[]any] {
	return func(yield func([]any) bool) {
		for row, err := range rows {
			if err != nil {
				*errp = err
				return
			}
			if len(columns) == 0 {
				if !yield(row.Values) {
					return
				}
				continue
			}
			values := make([]any, len(columns))
			for n, column := range columns {
				values[n], _ = row.Get(column)
			}
			if !yield(values) {
				return
			}
		}
	}
}
