package adapter

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/hatlonely/datadb/log"
	"github.com/hatlonely/datadb/log/logger"
	"github.com/hatlonely/datadb/rdb"
	"github.com/hatlonely/datadb/ref"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type ObservableOptions struct {
	// Adapter 被包装的 Adapter
	Adapter *ref.TypeOptions `cfg:"adapter" validate:"required"`
	Logger  *ref.TypeOptions `cfg:"logger"`

	EnableMetrics bool `cfg:"enableMetrics" def:"true"`
	EnableLogging bool `cfg:"enableLogging" def:"true"`
	EnableTracing bool `cfg:"enableTracing"`

	// Name 指标名前缀，也作为日志和 span 的 component
	Name string `cfg:"name" def:"rdb" validate:"required"`
}

type observableMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	active     *prometheus.GaugeVec
	rows       *prometheus.CounterVec
}

// newObservableMetrics 同名指标重复注册时复用已注册的 collector
func newObservableMetrics(name string, registerer prometheus.Registerer) (*observableMetrics, error) {
	m := &observableMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: name + "_operations_total",
			Help: "Total number of adapter operations",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name + "_operation_duration_seconds",
			Help:    "Duration of adapter operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: name + "_active_operations",
			Help: "Number of adapter operations in progress",
		}, []string{"operation"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: name + "_fetched_rows_total",
			Help: "Total number of rows fetched",
		}, []string{"operation"}),
	}

	var err error
	if m.operations, err = register(registerer, m.operations); err != nil {
		return nil, err
	}
	if m.duration, err = register(registerer, m.duration); err != nil {
		return nil, err
	}
	if m.active, err = register(registerer, m.active); err != nil {
		return nil, err
	}
	if m.rows, err = register(registerer, m.rows); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](registerer prometheus.Registerer, c C) (C, error) {
	if err := registerer.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, errors.Wrap(err, "failed to register metrics")
	}
	return c, nil
}

// ObservableAdapter 装饰器，为任意 Adapter 添加指标、链路和日志
type ObservableAdapter struct {
	adapter rdb.Adapter

	name    string
	logger  logger.Logger
	metrics *observableMetrics
	tracer  trace.Tracer
}

func NewObservableWithOptions(options *ObservableOptions) (*ObservableAdapter, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}
	inner, err := NewAdapterWithOptions(options.Adapter)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create underlying adapter")
	}
	return NewObservableAdapter(inner, options, prometheus.DefaultRegisterer)
}

// NewObservableAdapter 包装已有的 Adapter，options.Adapter 被忽略
func NewObservableAdapter(inner rdb.Adapter, options *ObservableOptions, registerer prometheus.Registerer) (*ObservableAdapter, error) {
	if inner == nil || options == nil {
		return nil, errors.New("adapter and options are required")
	}
	name := options.Name
	if name == "" {
		name = "rdb"
	}
	obs := &ObservableAdapter{adapter: inner, name: name}

	if options.EnableLogging {
		l, err := log.NewLoggerWithOptions(options.Logger)
		if err != nil {
			return nil, errors.WithMessage(err, "failed to create logger")
		}
		obs.logger = l.WithGroup("observableAdapter")
	}
	if options.EnableMetrics {
		m, err := newObservableMetrics(name, registerer)
		if err != nil {
			return nil, err
		}
		obs.metrics = m
	}
	if options.EnableTracing {
		obs.tracer = otel.Tracer(fmt.Sprintf("rdb.%s", name))
	}
	return obs, nil
}

// Unwrap 返回被包装的 Adapter
func (obs *ObservableAdapter) Unwrap() rdb.Adapter {
	return obs.adapter
}

// observation 一次操作的观测上下文
type observation struct {
	obs       *ObservableAdapter
	ctx       context.Context
	operation string
	query     string
	start     time.Time
	span      trace.Span
}

func (obs *ObservableAdapter) begin(ctx context.Context, operation string, query string) *observation {
	o := &observation{obs: obs, ctx: ctx, operation: operation, query: query, start: time.Now()}
	if obs.tracer != nil {
		o.ctx, o.span = obs.tracer.Start(ctx, "rdb."+operation, trace.WithAttributes(
			attribute.String("component", obs.name),
			attribute.String("operation", operation),
			attribute.String("db.statement", abbreviate(query)),
		))
	}
	if obs.metrics != nil {
		obs.metrics.active.WithLabelValues(operation).Inc()
	}
	return o
}

func (o *observation) end(rows int, err error) {
	obs := o.obs
	duration := time.Since(o.start)

	if o.span != nil {
		o.span.SetAttributes(attribute.Int64("duration_ms", duration.Milliseconds()))
		if err != nil {
			o.span.SetStatus(codes.Error, err.Error())
			o.span.RecordError(err)
		} else {
			o.span.SetStatus(codes.Ok, "")
		}
		o.span.End()
	}

	if obs.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		obs.metrics.active.WithLabelValues(o.operation).Dec()
		obs.metrics.operations.WithLabelValues(o.operation, status).Inc()
		obs.metrics.duration.WithLabelValues(o.operation).Observe(duration.Seconds())
		if rows > 0 {
			obs.metrics.rows.WithLabelValues(o.operation).Add(float64(rows))
		}
	}

	if obs.logger != nil {
		if err != nil {
			obs.logger.ErrorContext(o.ctx, "adapter operation failed",
				"component", obs.name,
				"operation", o.operation,
				"query", abbreviate(o.query),
				"duration_ms", duration.Milliseconds(),
				"error", err.Error(),
			)
		} else if obs.logger.Enabled(o.ctx, slog.LevelDebug) {
			obs.logger.DebugContext(o.ctx, "adapter operation completed",
				"component", obs.name,
				"operation", o.operation,
				"query", abbreviate(o.query),
				"rows", rows,
				"duration_ms", duration.Milliseconds(),
			)
		}
	}
}

func (obs *ObservableAdapter) Query(ctx context.Context, query string, bind ...any) (rdb.Result, error) {
	o := obs.begin(ctx, "query", query)
	res, err := obs.adapter.Query(o.ctx, query, bind...)
	o.end(0, err)
	return res, err
}

// Fetch 观测覆盖整个遍历过程，提前退出也会结束观测
func (obs *ObservableAdapter) Fetch(ctx context.Context, query string, bind ...any) iter.Seq2[*rdb.Row, error] {
	return func(yield func(*rdb.Row, error) bool) {
		o := obs.begin(ctx, "fetch", query)
		var rows int
		var err error
		defer func() { o.end(rows, err) }()

		for row, e := range obs.adapter.Fetch(o.ctx, query, bind...) {
			if e != nil {
				err = e
				yield(nil, e)
				return
			}
			rows++
			if !yield(row, nil) {
				return
			}
		}
	}
}

func (obs *ObservableAdapter) FetchAll(ctx context.Context, query string, bind ...any) ([]*rdb.Row, error) {
	o := obs.begin(ctx, "fetchAll", query)
	rows, err := obs.adapter.FetchAll(o.ctx, query, bind...)
	o.end(len(rows), err)
	return rows, err
}

func (obs *ObservableAdapter) FetchRow(ctx context.Context, query string, bind ...any) (*rdb.Row, error) {
	o := obs.begin(ctx, "fetchRow", query)
	row, err := obs.adapter.FetchRow(o.ctx, query, bind...)
	n := 0
	if row != nil {
		n = 1
	}
	o.end(n, err)
	return row, err
}

func (obs *ObservableAdapter) FetchOne(ctx context.Context, query string, bind ...any) (any, error) {
	o := obs.begin(ctx, "fetchOne", query)
	value, err := obs.adapter.FetchOne(o.ctx, query, bind...)
	o.end(0, err)
	return value, err
}

func (obs *ObservableAdapter) QuoteValue(value any) (string, error) {
	return obs.adapter.QuoteValue(value)
}

func (obs *ObservableAdapter) Begin(ctx context.Context) error {
	o := obs.begin(ctx, "begin", "")
	err := obs.adapter.Begin(o.ctx)
	o.end(0, err)
	return err
}

func (obs *ObservableAdapter) Commit() error {
	o := obs.begin(context.Background(), "commit", "")
	err := obs.adapter.Commit()
	o.end(0, err)
	return err
}

func (obs *ObservableAdapter) Rollback() error {
	o := obs.begin(context.Background(), "rollback", "")
	err := obs.adapter.Rollback()
	o.end(0, err)
	return err
}

func (obs *ObservableAdapter) Dialect() rdb.Dialect {
	return obs.adapter.Dialect()
}

var _ rdb.Adapter = (*ObservableAdapter)(nil)
