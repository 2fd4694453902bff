package schema

import (
	"fmt"
	"maps"
	"reflect"
	"strings"

	"github.com/hatlonely/sqltable/inspect"
	"github.com/hatlonely/sqltable/sqltype"
	"github.com/pkg/errors"
)

// 关键字参数中有特殊含义的键
const (
	KwPrimaryKey = "primary_key"
	KwNullable   = "nullable"
	KwIndex      = "index"
	KwUnique     = "unique"
	KwDefault    = "default"
	KwComment    = "comment"
)

// ColumnDef 构建出的列定义，Schema 产出后只读
type ColumnDef struct {
	// 列名，即字段的编解码名
	Name       string
	Type       sqltype.Type
	PrimaryKey bool
	Nullable   bool
	Index      bool
	Unique     bool
	// 位置参数，外键约束在最前面
	Args []any
	// 除 primary_key/nullable/index/unique 之外的关键字参数
	Options map[string]any
}

// ForeignKeyConstraint 外键约束
type ForeignKeyConstraint struct {
	Table    string
	Column   string
	OnDelete string
	OnUpdate string
}

func (f *ForeignKeyConstraint) String() string {
	return f.Table + "." + f.Column
}

// CheckConstraint 检查约束，Expr 为 SQL 表达式
type CheckConstraint struct {
	Expr string
}

// RelationshipDef 构建出的关联关系，不对应任何列
type RelationshipDef struct {
	// Go 字段名
	Field         string
	BackPopulates string
	// Target 关联的结构体类型，由字段类型去掉切片和指针得到
	Target  reflect.Type
	Args    []any
	Options map[string]any
}

// ParseForeignKey 解析 "table.column" 形式的外键目标，表名中可以带 schema 前缀
func ParseForeignKey(target string) (*ForeignKeyConstraint, error) {
	idx := strings.LastIndexByte(target, '.')
	if idx <= 0 || idx == len(target)-1 {
		return nil, errors.Errorf("invalid foreign key %q, expected table.column", target)
	}
	return &ForeignKeyConstraint{Table: target[:idx], Column: target[idx+1:]}, nil
}

// Create 按字段名和推导出的类型构建列，res 只在指令未指定 Type 时使用
func (d ColumnDirective) Create(name string, res sqltype.Resolution) (*ColumnDef, error) {
	typ, typeNull := d.Type, sqltype.NullUnset
	if typ == nil {
		typ, typeNull = res.Type, res.Null
	}
	if typ == nil {
		return nil, errors.Errorf("column %s has no storage type", name)
	}

	col := &ColumnDef{
		Name:       name,
		Type:       typ,
		PrimaryKey: d.PrimaryKey,
		Index:      d.Index,
		Unique:     d.Unique,
	}

	// 主键永远不可空；其次类型可缺省则可空；最后才看显式声明
	switch {
	case d.PrimaryKey:
		col.Nullable = false
	case typeNull == sqltype.NullTypeDerived:
		col.Nullable = true
	default:
		col.Nullable = d.Nullable == sqltype.NullTrue
	}

	if d.ForeignKey != "" {
		fk, err := ParseForeignKey(d.ForeignKey)
		if err != nil {
			return nil, errors.WithMessagef(err, "column %s", name)
		}
		col.Args = append(col.Args, fk)
	}
	col.Args = append(col.Args, d.Args...)

	for key, value := range d.Kwargs {
		var target *bool
		switch key {
		case KwPrimaryKey:
			target = &col.PrimaryKey
		case KwNullable:
			target = &col.Nullable
		case KwIndex:
			target = &col.Index
		case KwUnique:
			target = &col.Unique
		default:
			if col.Options == nil {
				col.Options = make(map[string]any, len(d.Kwargs))
			}
			col.Options[key] = value
			continue
		}
		b, ok := value.(bool)
		if !ok {
			return nil, errors.Errorf("column %s: %s expects bool, got %T", name, key, value)
		}
		*target = b
	}

	return col, nil
}

// ForeignKeys 列上的外键约束
func (c *ColumnDef) ForeignKeys() []*ForeignKeyConstraint {
	var fks []*ForeignKeyConstraint
	for _, arg := range c.Args {
		if fk, ok := arg.(*ForeignKeyConstraint); ok {
			fks = append(fks, fk)
		}
	}
	return fks
}

// Checks 列上的检查约束
func (c *ColumnDef) Checks() []*CheckConstraint {
	var checks []*CheckConstraint
	for _, arg := range c.Args {
		if check, ok := arg.(*CheckConstraint); ok {
			checks = append(checks, check)
		}
	}
	return checks
}

func (c *ColumnDef) Default() (any, bool) {
	v, ok := c.Options[KwDefault]
	return v, ok
}

func (c *ColumnDef) Comment() string {
	if s, ok := c.Options[KwComment].(string); ok {
		return s
	}
	return ""
}

func (c *ColumnDef) String() string {
	var sb strings.Builder
	sb.WriteString(c.Name)
	sb.WriteByte(' ')
	sb.WriteString(c.Type.String())
	if c.PrimaryKey {
		sb.WriteString(" PRIMARY KEY")
	}
	if !c.Nullable {
		sb.WriteString(" NOT NULL")
	}
	if c.Unique {
		sb.WriteString(" UNIQUE")
	}
	for _, fk := range c.ForeignKeys() {
		fmt.Fprintf(&sb, " REFERENCES %s(%s)", fk.Table, fk.Column)
	}
	return sb.String()
}

// Create 按字段构建关联关系
func (d RelationshipDirective) Create(field string, target reflect.Type) *RelationshipDef {
	rel := &RelationshipDef{
		Field:         field,
		BackPopulates: d.BackPopulates,
		Target:        relationTarget(target),
		Args:          append([]any(nil), d.Args...),
	}
	if len(d.Kwargs) > 0 {
		rel.Options = maps.Clone(d.Kwargs)
	}
	return rel
}

func relationTarget(t reflect.Type) reflect.Type {
	for t != nil {
		if inner := inspect.WrappedType(t); inner != nil {
			t = inner
			continue
		}
		switch t.Kind() {
		case reflect.Pointer, reflect.Slice, reflect.Array:
			t = t.Elem()
			continue
		}
		return t
	}
	return nil
}
