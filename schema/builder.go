package schema

import (
	"reflect"

	"github.com/hatlonely/sqltable/inspect"
	"github.com/hatlonely/sqltable/sqltype"
)

type options struct {
	hook               sqltype.Hook
	rename             func(string) string
	shadowedDirectives bool
}

type Option func(*options)

// WithHook 自定义类型映射，优先于内置规则
func WithHook(hook sqltype.Hook) Option {
	return func(o *options) { o.hook = hook }
}

// WithRename 没有 json tag 的字段的列名生成规则，默认使用 Go 字段名
func WithRename(rename func(string) string) Option {
	return func(o *options) { o.rename = rename }
}

// WithShadowedDirectives 允许一个字段上出现多个指令，只取最外层的一个
func WithShadowedDirectives() Option {
	return func(o *options) { o.shadowedDirectives = true }
}

func newOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Entry 字段的构建结果，Column 和 Relationship 有且只有一个非空
type Entry struct {
	// Go 字段名
	Field        string
	Column       *ColumnDef
	Relationship *RelationshipDef
}

func (e Entry) IsRelationship() bool {
	return e.Relationship != nil
}

// Schema 结构体字段到列和关联关系的映射，按字段声明顺序排列
type Schema struct {
	typ     reflect.Type
	entries []Entry
	index   map[string]int
}

// Build 构建结构体的 Schema，任一字段失败即返回 *FieldError
func Build(t reflect.Type, opts ...Option) (*Schema, error) {
	o := newOptions(opts)

	st, err := inspect.StructOf(t)
	if err != nil {
		return nil, err
	}
	infos, err := inspect.Fields(st, o.rename)
	if err != nil {
		return nil, err
	}

	inspectOpts := []inspect.Option{
		inspect.WithTagParser(TagKey, ParseTag),
		inspect.WithRename(o.rename),
	}
	s := &Schema{typ: st, index: make(map[string]int, len(infos))}
	for _, info := range infos {
		field, skip, err := inspect.InspectField(st, info, inspectOpts...)
		if err != nil {
			return nil, &FieldError{Field: info.Name, Err: err}
		}
		if skip {
			continue
		}
		entry, err := resolve(field, o)
		if err != nil {
			return nil, &FieldError{Field: info.Name, Err: err}
		}
		s.index[info.Name] = len(s.entries)
		s.entries = append(s.entries, entry)
	}
	return s, nil
}

// BuildT 构建类型参数 T 的 Schema
func BuildT[T any](opts ...Option) (*Schema, error) {
	return Build(reflect.TypeOf((*T)(nil)).Elem(), opts...)
}

func (s *Schema) Type() reflect.Type {
	return s.typ
}

func (s *Schema) Len() int {
	return len(s.entries)
}

// Entries 全部字段的构建结果，返回的切片是副本
func (s *Schema) Entries() []Entry {
	return append([]Entry(nil), s.entries...)
}

// Get 按 Go 字段名查找
func (s *Schema) Get(field string) (Entry, bool) {
	i, ok := s.index[field]
	if !ok {
		return Entry{}, false
	}
	return s.entries[i], true
}

func (s *Schema) Columns() []*ColumnDef {
	var cols []*ColumnDef
	for _, e := range s.entries {
		if e.Column != nil {
			cols = append(cols, e.Column)
		}
	}
	return cols
}

func (s *Schema) Relationships() []*RelationshipDef {
	var rels []*RelationshipDef
	for _, e := range s.entries {
		if e.Relationship != nil {
			rels = append(rels, e.Relationship)
		}
	}
	return rels
}

// PrimaryKey 主键列，按声明顺序
func (s *Schema) PrimaryKey() []*ColumnDef {
	var cols []*ColumnDef
	for _, c := range s.Columns() {
		if c.PrimaryKey {
			cols = append(cols, c)
		}
	}
	return cols
}
