package schema

import (
	"github.com/hatlonely/sqltable/inspect"
	"github.com/hatlonely/sqltable/sqltype"
	"github.com/pkg/errors"
)

// Resolve 把单个字段解析为列或关联关系
//
// 元数据由外到内查找指令，取第一个：
//   - 没有指令时按字段类型生成默认列
//   - 列指令未指定 Type 时由字段类型推导，可缺省的类型推导出可空
//   - 关联关系指令直接生成关联关系
func Resolve(field inspect.Field, opts ...Option) (Entry, error) {
	return resolve(field, newOptions(opts))
}

func resolve(field inspect.Field, o *options) (Entry, error) {
	bare, layers := inspect.Unwrap(field.Type)

	var directive any
	for _, layer := range layers {
		d, ok := layer.Extra[DirectiveKey]
		if !ok || d == nil {
			continue
		}
		if directive != nil {
			return Entry{}, errors.Wrapf(ErrAmbiguousDirective, "%s is shadowed by %s", describe(d), describe(directive))
		}
		directive = d
		if o.shadowedDirectives {
			break
		}
	}

	entry := Entry{Field: field.Name}
	switch d := directive.(type) {
	case nil:
		col, err := column(ColumnDirective{}, field.EncodeName, bare, o.hook)
		if err != nil {
			return Entry{}, err
		}
		entry.Column = col
	case ColumnDirective:
		col, err := column(d, field.EncodeName, bare, o.hook)
		if err != nil {
			return Entry{}, err
		}
		entry.Column = col
	case *ColumnDirective:
		col, err := column(*d, field.EncodeName, bare, o.hook)
		if err != nil {
			return Entry{}, err
		}
		entry.Column = col
	case RelationshipDirective:
		entry.Relationship = d.Create(field.Name, field.StructField.Type)
	case *RelationshipDirective:
		entry.Relationship = d.Create(field.Name, field.StructField.Type)
	default:
		return Entry{}, errors.Wrapf(ErrInvalidDirective, "%T", directive)
	}
	return entry, nil
}

func column(d ColumnDirective, name string, bare inspect.Type, hook sqltype.Hook) (*ColumnDef, error) {
	// 显式指定的类型不再走类型映射，无法映射的类型可以借此声明
	if d.Type != nil {
		return d.Create(name, sqltype.Resolution{})
	}
	res, err := sqltype.Map(bare, hook)
	if err != nil {
		return nil, err
	}
	return d.Create(name, res)
}

func describe(directive any) string {
	switch d := directive.(type) {
	case ColumnDirective, *ColumnDirective:
		return "column directive"
	case RelationshipDirective:
		return "relationship directive(" + d.BackPopulates + ")"
	case *RelationshipDirective:
		return "relationship directive(" + d.BackPopulates + ")"
	}
	return "unknown directive"
}
