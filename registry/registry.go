package registry

import (
	"context"
	"reflect"
	"sort"
	"sync"

	"github.com/hatlonely/sqltable/cfg"
	"github.com/hatlonely/sqltable/cfg/validator"
	"github.com/hatlonely/sqltable/codec"
	"github.com/hatlonely/sqltable/log"
	"github.com/hatlonely/sqltable/log/logger"
	"github.com/hatlonely/sqltable/schema"
	"github.com/hatlonely/sqltable/sqltype"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

type Options struct {
	// 方言：sqlite3, sqlite, mysql, postgres
	Dialect string `cfg:"dialect" def:"sqlite3" validate:"oneof=sqlite3 sqlite mysql postgres"`

	// 表名生成规则：lower 为类型名小写，snake_plural 为下划线复数形式
	Naming string `cfg:"naming" def:"lower" validate:"oneof=lower snake_plural"`

	// 字段上出现多个指令时只取最外层的一个，默认报错
	ShadowedDirectives bool `cfg:"shadowedDirectives"`

	// Declare 生成的编解码器配置，其中 Rename 同时决定没有 json tag 的字段的列名
	Codec *codec.Options `cfg:"codec"`

	// Name 组件名，作为指标名前缀、日志 component 字段和 span 属性
	Name string `cfg:"name" def:"sqltable"`

	EnableMetrics bool `cfg:"enableMetrics"`
	EnableLogging bool `cfg:"enableLogging"`
	EnableTracing bool `cfg:"enableTracing"`

	// Logger 为空时使用 log.Default()
	Logger *logger.SLogOptions `cfg:"logger"`

	// Hook 自定义类型映射
	Hook sqltype.Hook `cfg:"-" validate:"-"`
	// Registerer 为空时注册到 prometheus 默认 registry
	Registerer prometheus.Registerer `cfg:"-" validate:"-"`
}

// Registry 按 Go 类型缓存表定义，同一类型只构建一次
type Registry struct {
	options *Options
	dialect string
	obs     *observer

	mu     sync.Mutex
	tables map[reflect.Type]*Table
	names  map[string]*Table
	order  []*Table
	codecs map[reflect.Type]any
}

func NewRegistryWithOptions(options *Options) (*Registry, error) {
	opts := &Options{}
	if options != nil {
		*opts = *options
		if options.Codec != nil {
			c := *options.Codec
			opts.Codec = &c
		}
		if options.Logger != nil {
			l := *options.Logger
			opts.Logger = &l
		}
	}
	if err := cfg.SetDefaults(opts); err != nil {
		return nil, errors.WithMessage(err, "cfg.SetDefaults failed")
	}
	if err := validator.ValidateStruct(opts); err != nil {
		return nil, errors.Wrap(err, "validator.ValidateStruct failed")
	}

	obs := &observer{name: opts.Name}
	if opts.EnableLogging {
		l, err := log.NewLoggerWithOptions(opts.Logger)
		if err != nil {
			return nil, errors.WithMessage(err, "failed to create logger")
		}
		obs.logger = l.WithGroup("registry")
	}
	if opts.EnableMetrics {
		metrics, err := NewMetrics(opts.Name, opts.Registerer)
		if err != nil {
			return nil, err
		}
		obs.metrics = metrics
	}
	if opts.EnableTracing {
		obs.tracer = newTracer(opts.Name)
	}

	return &Registry{
		options: opts,
		dialect: opts.Dialect,
		obs:     obs,
		tables:  map[reflect.Type]*Table{},
		names:   map[string]*Table{},
		codecs:  map[reflect.Type]any{},
	}, nil
}

func (r *Registry) Dialect() string {
	return r.dialect
}

// Register 构建并缓存结构体对应的表，t 可以是结构体或结构体指针
func (r *Registry) Register(t reflect.Type) (*Table, error) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return nil, errors.New("nil type")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if table, ok := r.tables[t]; ok {
		return table, nil
	}

	name := tableName(t, r.options.Naming)
	var table *Table
	err := r.obs.observe(context.Background(), "register", name, func(ctx context.Context) error {
		if existing, ok := r.names[name]; ok {
			return errors.Wrapf(ErrDuplicateTable, "%s is used by both %v and %v", name, existing.Type, t)
		}

		opts := []schema.Option{schema.WithHook(r.options.Hook)}
		// 列名和 Declare 生成的编解码器使用同一套字段名
		if r.options.Codec != nil {
			opts = append(opts, schema.WithRename(codec.RenameFunc(r.options.Codec.Rename)))
		}
		if r.options.ShadowedDirectives {
			opts = append(opts, schema.WithShadowedDirectives())
		}
		s, err := schema.Build(t, opts...)
		if err != nil {
			return errors.WithMessagef(err, "build schema for %v failed", t)
		}

		table, err = newTable(name, t, s)
		return err
	})
	if err != nil {
		return nil, err
	}

	r.tables[t] = table
	r.names[name] = table
	r.order = append(r.order, table)
	r.obs.setTables(len(r.order))
	return table, nil
}

// Lookup 查找已注册的表
func (r *Registry) Lookup(t reflect.Type) (*Table, bool) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	table, ok := r.tables[t]
	return table, ok
}

// Tables 按注册顺序返回全部表
func (r *Registry) Tables() []*Table {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Table(nil), r.order...)
}

// Configure 检查表之间的引用：外键指向的表和列、关联关系的目标类型以及 back_populates
func (r *Registry) Configure() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.configure()
}

func (r *Registry) configure() error {
	for _, table := range r.order {
		for _, fk := range table.ForeignKeys {
			target, ok := r.names[fk.Table]
			if !ok {
				return errors.Wrapf(ErrUnresolvedReference, "%s.%s references unknown table %s", table.Name, fk.Column, fk.Table)
			}
			if _, ok := target.Column(fk.ForeignKeyConstraint.Column); !ok {
				return errors.Wrapf(ErrUnresolvedReference, "%s.%s references unknown column %s", table.Name, fk.Column, fk)
			}
		}

		for _, rel := range table.Relationships {
			target, ok := r.tables[rel.Target]
			if !ok {
				return errors.Wrapf(ErrUnresolvedReference, "relationship %s.%s targets unregistered type %v", table.Name, rel.Field, rel.Target)
			}
			if rel.BackPopulates == "" {
				continue
			}
			back, ok := target.Relationship(rel.BackPopulates)
			if !ok {
				return errors.Wrapf(ErrUnresolvedReference, "relationship %s.%s back populates unknown %s.%s", table.Name, rel.Field, target.Name, rel.BackPopulates)
			}
			if back.Target != table.Type {
				return errors.Wrapf(ErrUnresolvedReference, "relationship %s.%s targets %v, expected %v", target.Name, back.Field, back.Target, table.Type)
			}
		}
	}
	return nil
}

// SortedTables 按外键依赖排序，被引用的表在前，无依赖关系的表保持注册顺序
func (r *Registry) SortedTables() ([]*Table, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedTables()
}

func (r *Registry) sortedTables() ([]*Table, error) {
	position := make(map[*Table]int, len(r.order))
	for i, table := range r.order {
		position[table] = i
	}

	inDegree := map[*Table]int{}
	dependents := map[*Table][]*Table{}
	for _, table := range r.order {
		seen := map[*Table]bool{}
		for _, fk := range table.ForeignKeys {
			target, ok := r.names[fk.Table]
			// 自引用和未注册的表不参与排序
			if !ok || target == table || seen[target] {
				continue
			}
			seen[target] = true
			inDegree[table]++
			dependents[target] = append(dependents[target], table)
		}
	}

	var ready, sorted []*Table
	for _, table := range r.order {
		if inDegree[table] == 0 {
			ready = append(ready, table)
		}
	}
	for len(ready) > 0 {
		table := ready[0]
		ready = ready[1:]
		sorted = append(sorted, table)
		for _, dependent := range dependents[table] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
		sort.SliceStable(ready, func(i, j int) bool { return position[ready[i]] < position[ready[j]] })
	}

	if len(sorted) != len(r.order) {
		var cyclic []string
		for _, table := range r.order {
			if inDegree[table] > 0 {
				cyclic = append(cyclic, table.Name)
			}
		}
		return nil, errors.Wrapf(ErrCyclicForeignKey, "%v", cyclic)
	}
	return sorted, nil
}

// Migrate 检查引用后按依赖顺序建表
func (r *Registry) Migrate(ctx context.Context, executor Executor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.configure(); err != nil {
		return err
	}
	tables, err := r.sortedTables()
	if err != nil {
		return err
	}
	for _, table := range tables {
		if err := r.obs.observe(ctx, "migrate", table.Name, func(ctx context.Context) error {
			return executor.Migrate(ctx, table)
		}); err != nil {
			return err
		}
	}
	return nil
}

// Drop 按依赖的逆序删表
func (r *Registry) Drop(ctx context.Context, executor Executor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tables, err := r.sortedTables()
	if err != nil {
		return err
	}
	for i := len(tables) - 1; i >= 0; i-- {
		name := tables[i].Name
		if err := r.obs.observe(ctx, "drop", name, func(ctx context.Context) error {
			return executor.DropTable(ctx, name)
		}); err != nil {
			return err
		}
	}
	return nil
}

// Model 声明结果：表定义和按同一结构体生成的编解码器
type Model[T any] struct {
	*Table
	Codec *codec.Codec[T]
}

// Declare 注册 T 并生成编解码器
func Declare[T any](r *Registry) (*Model[T], error) {
	t := reflect.TypeFor[T]()
	table, err := r.Register(t)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.codecs[t]; ok {
		return &Model[T]{Table: table, Codec: c.(*codec.Codec[T])}, nil
	}
	c, err := codec.New[T](r.options.Codec)
	if err != nil {
		return nil, errors.WithMessagef(err, "create codec for %v failed", t)
	}
	r.codecs[t] = c
	return &Model[T]{Table: table, Codec: c}, nil
}

// MustDeclare 同 Declare，失败时 panic，用于包级变量初始化
func MustDeclare[T any](r *Registry) *Model[T] {
	m, err := Declare[T](r)
	if err != nil {
		panic(err)
	}
	return m
}
