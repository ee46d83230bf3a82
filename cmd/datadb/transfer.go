package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/hatlonely/datadb/file"
	"github.com/hatlonely/datadb/rdb"
	"github.com/hatlonely/datadb/rdb/dialect"
	"github.com/hatlonely/datadb/rdb/exporter"
	"github.com/hatlonely/datadb/rdb/importer"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// openFile s3://bucket/key 为对象存储文件，凭证取自环境变量，其余为本地文件
func openFile(location string, compression string) (file.File, error) {
	if rest, ok := strings.CutPrefix(location, "s3://"); ok {
		bucket, key, _ := strings.Cut(rest, "/")
		if bucket == "" || key == "" {
			return nil, errors.Wrapf(rdb.ErrInvalidLocation, "expected s3://bucket/key, got %s", location)
		}
		return file.NewS3File(bucket, key, file.EnvCredentials{}).WithCompression(compression), nil
	}
	return file.NewLocalFile(location).WithCompression(compression), nil
}

func parseFormat(name string) (file.Format, error) {
	if name == "" {
		return nil, nil
	}
	return file.ParseFormat(name)
}

func (a *app) exportCmd() *cobra.Command {
	var output, format, where, columns, compression string
	var native bool
	cmd := &cobra.Command{
		Use:   "export <schema.table>",
		Short: "Export a table to a local file, or unload it to s3 on redshift",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := a.table(args[0])
			if err != nil {
				return err
			}
			table.SetWhere(where).SetColumns(splitColumns(columns)...)

			var f file.File
			if output != "" {
				if f, err = openFile(output, compression); err != nil {
					return err
				}
			}
			ff, err := parseFormat(format)
			if err != nil {
				return err
			}

			e, err := a.tableExporter(f, ff, native)
			if err != nil {
				return err
			}
			got, err := e.Export(cmd.Context(), table)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), got.String())
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&output, "output", "o", "", "destination, a local path or s3://bucket/key (default: a temporary file)")
	fl.StringVarP(&format, "format", "f", "", "output format: csv, json or msgpack")
	fl.StringVar(&where, "where", "", "sql condition selecting the rows to export")
	fl.StringVar(&columns, "columns", "", "comma separated columns to export")
	fl.StringVar(&compression, "compression", file.CompressionNone, "none, gzip, bzip2 or lzop")
	fl.BoolVar(&native, "native", false, "use mysqldump instead of a select, mysql only")
	return cmd
}

// tableExporter redshift 且目标在 s3 时走 UNLOAD，mysql 指定 native 时走 mysqldump，其余走 select
func (a *app) tableExporter(f file.File, format file.Format, native bool) (exporter.Table, error) {
	switch a.adapter.Dialect().(type) {
	case *dialect.RedshiftDialect:
		if _, ok := f.(file.ObjectStorage); ok {
			e, err := exporter.NewRedshiftTableExporter(f)
			if err != nil {
				return nil, err
			}
			return e.WithLogger(a.logger), nil
		}
	case *dialect.MysqlDialect:
		if native {
			options := a.options.Mysqldump
			if options == nil {
				options = &exporter.MysqlTableExporterOptions{}
			}
			e, err := exporter.NewMysqlTableExporterWithOptions(options, f, format)
			if err != nil {
				return nil, err
			}
			return e.WithLogger(a.logger), nil
		}
	}
	if native {
		return nil, errors.Wrapf(rdb.ErrUnsupportedDialect, "--native is only supported on mysql, got %s", a.adapter.Dialect().Name())
	}
	if _, ok := f.(file.ObjectStorage); ok {
		return nil, errors.Wrapf(rdb.ErrRequiresLocalFile, "%s can only be unloaded from redshift", f)
	}
	return exporter.NewTableExporter(f, format).WithLogger(a.logger), nil
}

func (a *app) importCmd() *cobra.Command {
	var format, columns, compression string
	var batchSize int
	var transaction bool
	cmd := &cobra.Command{
		Use:   "import <file> <schema.table>",
		Short: "Import a local file with batched inserts, or copy an s3 file into redshift",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := openFile(args[0], compression)
			if err != nil {
				return err
			}
			table, err := a.table(args[1])
			if err != nil {
				return err
			}
			table.SetColumns(splitColumns(columns)...)
			ff, err := parseFormat(format)
			if err != nil {
				return err
			}
			if ff == nil {
				ff = a.helper.DefaultImportFormat()
			}
			if aware, ok := f.(file.FormatAware); ok {
				aware.SetFormat(ff)
			}
			if batchSize == 0 {
				batchSize = a.options.BatchSize
			}

			ctx := cmd.Context()
			if _, ok := f.(file.ObjectStorage); ok {
				return a.copyFile(ctx, f, table)
			}
			if !transaction {
				return a.insertFile(ctx, f, ff, table, batchSize)
			}
			if err := a.adapter.Begin(ctx); err != nil {
				return err
			}
			if err := a.insertFile(ctx, f, ff, table, batchSize); err != nil {
				if rerr := a.adapter.Rollback(); rerr != nil {
					a.logger.ErrorContext(ctx, "rollback failed", "error", rerr)
				}
				return err
			}
			return a.adapter.Commit()
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&format, "format", "f", "", "input format: csv or json (default: the dialect's import format)")
	fl.StringVar(&columns, "columns", "", "comma separated target columns, also used as csv column names")
	fl.StringVar(&compression, "compression", file.CompressionNone, "none, gzip, bzip2 or lzop")
	fl.IntVar(&batchSize, "batch-size", 0, "rows per insert statement (default from config, 100)")
	fl.BoolVar(&transaction, "transaction", false, "run all batches in one transaction")
	return cmd
}

func (a *app) copyFile(ctx context.Context, f file.File, table rdb.Table) error {
	i, err := importer.NewRedshiftFileImporter(table)
	if err != nil {
		return err
	}
	_, err = i.WithLogger(a.logger).Import(ctx, f)
	return err
}

func (a *app) insertFile(ctx context.Context, f file.File, format file.Format, table rdb.Table, batchSize int) error {
	reader, err := file.NewReader(f, format)
	if err != nil {
		return err
	}
	reader.SetColumns(table.Columns()...)

	i, err := importer.NewIteratorImporterWithOptions(table, &importer.IteratorImporterOptions{BatchSize: batchSize})
	if err != nil {
		return err
	}
	var readErr error
	if _, err := i.WithLogger(a.logger).Import(ctx, importer.Values(reader.Rows(ctx), table.Columns(), &readErr)); err != nil {
		return err
	}
	return readErr
}
