package schema

import (
	"maps"

	"github.com/hatlonely/sqltable/inspect"
	"github.com/hatlonely/sqltable/sqltype"
)

// DirectiveKey 指令在 inspect.Meta.Extra 中的键
const DirectiveKey = "sqltable.directive"

// ColumnDirective 字段映射为列的声明
type ColumnDirective struct {
	PrimaryKey bool
	Nullable   sqltype.Nullability
	// ForeignKey 形如 "parent.id"
	ForeignKey string
	Unique     bool
	Index      bool
	// Type 为 nil 时由字段类型推导
	Type   sqltype.Type
	Args   []any
	Kwargs map[string]any
}

// RelationshipDirective 字段映射为关联关系的声明
type RelationshipDirective struct {
	BackPopulates string
	Args          []any
	Kwargs        map[string]any
}

type ColumnOption func(d *ColumnDirective, m *inspect.Meta)

type RelationshipOption func(d *RelationshipDirective)

// Column 声明字段映射为列，返回的元数据可以放在 FieldAnnotations 或类型的 Annotations 中
func Column(opts ...ColumnOption) inspect.Meta {
	d := ColumnDirective{}
	m := inspect.Meta{}
	for _, opt := range opts {
		opt(&d, &m)
	}
	return withDirective(m, d)
}

// Relationship 声明字段为关联关系，backPopulates 为对端的字段名
func Relationship(backPopulates string, opts ...RelationshipOption) inspect.Meta {
	d := RelationshipDirective{BackPopulates: backPopulates}
	for _, opt := range opts {
		opt(&d)
	}
	return withDirective(inspect.Meta{}, d)
}

func withDirective(m inspect.Meta, directive any) inspect.Meta {
	extra := make(map[string]any, len(m.Extra)+1)
	maps.Copy(extra, m.Extra)
	extra[DirectiveKey] = directive
	m.Extra = extra
	return m
}

func PrimaryKey() ColumnOption {
	return func(d *ColumnDirective, _ *inspect.Meta) { d.PrimaryKey = true }
}

func Nullable(nullable bool) ColumnOption {
	return func(d *ColumnDirective, _ *inspect.Meta) { d.Nullable = sqltype.Explicit(nullable) }
}

// NullableFromType 可空性完全由字段类型是否可缺省决定
func NullableFromType() ColumnOption {
	return func(d *ColumnDirective, _ *inspect.Meta) { d.Nullable = sqltype.NullTypeDerived }
}

func ForeignKey(target string) ColumnOption {
	return func(d *ColumnDirective, _ *inspect.Meta) { d.ForeignKey = target }
}

func Unique() ColumnOption {
	return func(d *ColumnDirective, _ *inspect.Meta) { d.Unique = true }
}

func Index() ColumnOption {
	return func(d *ColumnDirective, _ *inspect.Meta) { d.Index = true }
}

// StorageType 显式指定列类型，跳过类型推导
func StorageType(t sqltype.Type) ColumnOption {
	return func(d *ColumnDirective, _ *inspect.Meta) { d.Type = t }
}

// ColumnArgs 追加位置参数，位于外键约束之后
func ColumnArgs(args ...any) ColumnOption {
	return func(d *ColumnDirective, _ *inspect.Meta) { d.Args = append(d.Args, args...) }
}

// ColumnKwargs 追加关键字参数，与 primary_key/nullable/index/unique 冲突时以它为准
func ColumnKwargs(kwargs map[string]any) ColumnOption {
	return func(d *ColumnDirective, _ *inspect.Meta) {
		if d.Kwargs == nil {
			d.Kwargs = make(map[string]any, len(kwargs))
		}
		maps.Copy(d.Kwargs, kwargs)
	}
}

func Default(value any) ColumnOption {
	return ColumnKwargs(map[string]any{KwDefault: value})
}

func Comment(comment string) ColumnOption {
	return ColumnKwargs(map[string]any{KwComment: comment})
}

func Check(expr string) ColumnOption {
	return ColumnArgs(&CheckConstraint{Expr: expr})
}

// Size 字符串/字节的最大长度，和 validate:"max=N" 效果相同
func Size(n int) ColumnOption {
	return func(_ *ColumnDirective, m *inspect.Meta) { m.MaxLength = n }
}

func Timezone(tz bool) ColumnOption {
	return func(_ *ColumnDirective, m *inspect.Meta) { m.TZ = &tz }
}

func Precision(precision, scale int) ColumnOption {
	return func(_ *ColumnDirective, m *inspect.Meta) {
		m.Precision = precision
		m.Scale = scale
	}
}

func RelationshipArgs(args ...any) RelationshipOption {
	return func(d *RelationshipDirective) { d.Args = append(d.Args, args...) }
}

func RelationshipKwargs(kwargs map[string]any) RelationshipOption {
	return func(d *RelationshipDirective) {
		if d.Kwargs == nil {
			d.Kwargs = make(map[string]any, len(kwargs))
		}
		maps.Copy(d.Kwargs, kwargs)
	}
}
