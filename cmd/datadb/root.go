package main

import (
	"io"
	"strings"

	"github.com/hatlonely/datadb/config"
	"github.com/hatlonely/datadb/log"
	"github.com/hatlonely/datadb/log/logger"
	"github.com/hatlonely/datadb/rdb"
	"github.com/hatlonely/datadb/rdb/adapter"
	"github.com/hatlonely/datadb/rdb/exporter"
	"github.com/hatlonely/datadb/rdb/helper"
	"github.com/hatlonely/datadb/ref"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// Options 配置文件的内容
type Options struct {
	Logger  *ref.TypeOptions `cfg:"logger"`
	Adapter *ref.TypeOptions `cfg:"adapter"`
	// Observable 为 true 时给 Adapter 加上日志、指标和 span
	Observable bool `cfg:"observable"`
	// Timezone Redshift 软删除使用的时区
	Timezone  string                              `cfg:"timezone"`
	BatchSize int                                 `cfg:"batchSize" def:"100" validate:"gte=1"`
	Mysqldump *exporter.MysqlTableExporterOptions `cfg:"mysqldump"`
}

// app 各子命令共享的运行时状态，在 PersistentPreRunE 中初始化
type app struct {
	configFile string
	driver     string
	dsn        string
	dialect    string

	options *Options
	logger  logger.Logger
	adapter rdb.Adapter
	helper  helper.Helper
	closer  io.Closer
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "datadb",
		Short: "Table level operations, import and export across mysql and redshift",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := root.PersistentFlags()
	f.StringVarP(&a.configFile, "config", "c", "", "config file (json, yaml, toml or ini)")
	f.StringVar(&a.driver, "driver", "mysql", "database driver when --dsn is given: mysql, sqlite3, pgx, postgres")
	f.StringVar(&a.dsn, "dsn", "", "data source name, overrides the adapter in the config file")
	f.StringVar(&a.dialect, "dialect", "", "sql dialect: mysql or redshift, inferred from the driver when empty")

	root.AddCommand(
		a.existsCmd(),
		a.describeCmd(),
		a.createSyntaxCmd(),
		a.copyCmd(),
		a.deleteCmd(),
		a.exportCmd(),
		a.importCmd(),
	)
	return root
}

func (a *app) setup() error {
	options := &Options{}
	if a.configFile != "" {
		if err := config.Load(a.configFile, options); err != nil {
			return errors.WithMessagef(err, "failed to load config %s", a.configFile)
		}
	} else if err := config.Bind(map[string]any{}, options); err != nil {
		return err
	}
	if a.dsn != "" {
		options.Adapter = &ref.TypeOptions{
			Namespace: adapter.Namespace,
			Type:      "SQLAdapter",
			Options: map[string]any{
				"driver":   a.driver,
				"dsn":      a.dsn,
				"dialect":  a.dialect,
				"timezone": options.Timezone,
			},
		}
	}
	if options.Adapter == nil {
		return errors.New("no adapter configured, use --config or --dsn")
	}
	a.options = options

	l, err := log.NewLoggerWithOptions(options.Logger)
	if err != nil {
		return errors.WithMessage(err, "log.NewLoggerWithOptions failed")
	}
	log.SetDefault(l)
	a.logger = l

	inner, err := adapter.NewAdapterWithOptions(options.Adapter)
	if err != nil {
		return err
	}
	if c, ok := inner.(io.Closer); ok {
		a.closer = c
	}
	a.adapter = inner
	if options.Observable {
		a.adapter, err = adapter.NewObservableAdapter(inner, &adapter.ObservableOptions{
			Logger:        options.Logger,
			EnableMetrics: true,
			EnableLogging: true,
			EnableTracing: true,
			Name:          "datadb",
		}, prometheus.DefaultRegisterer)
		if err != nil {
			return err
		}
	}

	a.helper, err = helper.ForDialect(a.adapter.Dialect(), &helper.Options{Logger: options.Logger, Timezone: options.Timezone})
	return err
}

func (a *app) close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// table 解析 schema.table
func (a *app) table(name string) (*rdb.SourceTableNode, error) {
	schema, table, ok := strings.Cut(name, ".")
	if !ok || schema == "" || table == "" {
		return nil, errors.Errorf("table must be given as schema.table, got %q", name)
	}
	return rdb.NewSourceTableNode(a.adapter, schema, table), nil
}

func splitColumns(columns string) []string {
	if columns == "" {
		return nil
	}
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
