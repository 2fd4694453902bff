package registry

import (
	"context"
	"time"

	"github.com/hatlonely/sqltable/log/logger"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Metrics 注册表的 prometheus 指标
type Metrics struct {
	operationCounter  *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	tables            prometheus.Gauge
}

// NewMetrics 创建并注册指标，同名指标已注册时复用已有的收集器
func NewMetrics(name string, registerer prometheus.Registerer) (*Metrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	operationCounter, err := register(registerer, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: name + "_operations_total",
			Help: "Total number of registry operations",
		},
		[]string{"operation", "status"},
	))
	if err != nil {
		return nil, err
	}
	operationDuration, err := register(registerer, prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    name + "_operation_duration_seconds",
			Help:    "Duration of registry operations in seconds",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1.0, 5.0},
		},
		[]string{"operation"},
	))
	if err != nil {
		return nil, err
	}
	tables, err := register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: name + "_tables",
		Help: "Number of registered tables",
	}))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		operationCounter:  operationCounter,
		operationDuration: operationDuration,
		tables:            tables,
	}, nil
}

func register[C prometheus.Collector](registerer prometheus.Registerer, c C) (C, error) {
	if err := registerer.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, errors.Wrap(err, "register metric failed")
	}
	return c, nil
}

// observer 为注册表操作记录指标、日志和链路追踪，各项按开关独立启用
type observer struct {
	name    string
	logger  logger.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

func (o *observer) observe(ctx context.Context, operation string, table string, fn func(context.Context) error) error {
	start := time.Now()

	var span trace.Span
	if o.tracer != nil {
		ctx, span = o.tracer.Start(ctx, "registry."+operation,
			trace.WithAttributes(
				attribute.String("component", o.name),
				attribute.String("operation", operation),
				attribute.String("table", table),
			),
		)
		defer span.End()
	}

	err := fn(ctx)
	duration := time.Since(start)

	if span != nil {
		span.SetAttributes(attribute.Int64("duration_ms", duration.Milliseconds()))
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}

	if o.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		o.metrics.operationCounter.WithLabelValues(operation, status).Inc()
		o.metrics.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	}

	if o.logger != nil {
		if err != nil {
			o.logger.ErrorContext(ctx, "registry operation failed",
				"component", o.name,
				"operation", operation,
				"table", table,
				"duration_ms", duration.Milliseconds(),
				"error", err.Error(),
			)
		} else {
			o.logger.InfoContext(ctx, "registry operation completed",
				"component", o.name,
				"operation", operation,
				"table", table,
				"duration_ms", duration.Milliseconds(),
			)
		}
	}

	return err
}

func (o *observer) setTables(n int) {
	if o.metrics != nil {
		o.metrics.tables.Set(float64(n))
	}
}

func newTracer(name string) trace.Tracer {
	return otel.Tracer("sqltable.registry." + name)
}
