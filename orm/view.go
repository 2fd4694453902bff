package orm

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/hatlonely/sqltable/inspect"
	"github.com/pkg/errors"
)

// View 结构体的普通视图：Mapped[T] 字段替换为 T，编解码名写入 json/msgpack/bson tag
//
// 视图是独立构造的新类型，源类型不会被修改
type View struct {
	source   reflect.Type
	plain    reflect.Type
	fields   []viewField
	released atomic.Bool
}

type viewField struct {
	info inspect.FieldInfo
	// 源字段是 Mapped[T]，取值时要取 V
	mapped bool
	// 视图中字段的类型和源字段（去掉 Mapped 之后）不同，需要转换
	convert bool
}

type viewOptions struct {
	rename  func(string) string
	sorted  bool
	replace map[reflect.Type]reflect.Type
}

type ViewOption func(*viewOptions)

// WithViewRename 没有 json tag 的字段的编解码名生成规则
func WithViewRename(rename func(string) string) ViewOption {
	return func(o *viewOptions) { o.rename = rename }
}

// WithSortedFields 视图字段按编解码名排序
func WithSortedFields() ViewOption {
	return func(o *viewOptions) { o.sorted = true }
}

// WithReplace 视图中 from 类型（及其指针）的字段替换为 to 类型，两者底层类型必须相同
func WithReplace(from, to reflect.Type) ViewOption {
	return func(o *viewOptions) {
		if o.replace == nil {
			o.replace = map[reflect.Type]reflect.Type{}
		}
		o.replace[from] = to
	}
}

// PlainView 构建结构体的普通视图
func PlainView(t reflect.Type, opts ...ViewOption) (*View, error) {
	o := &viewOptions{}
	for _, opt := range opts {
		opt(o)
	}

	source, err := inspect.StructOf(t)
	if err != nil {
		return nil, err
	}
	infos, err := inspect.Fields(source, o.rename)
	if err != nil {
		return nil, err
	}
	if o.sorted {
		sort.SliceStable(infos, func(i, j int) bool { return infos[i].EncodeName < infos[j].EncodeName })
	}

	view := &View{source: source}
	structFields := make([]reflect.StructField, 0, len(infos))
	for _, info := range infos {
		if err := settable(source, info); err != nil {
			return nil, err
		}
		typ := info.StructField.Type
		field := viewField{info: info}
		if IsMapped(typ) {
			typ = typ.Field(0).Type
			field.mapped = true
		}
		if replaced, ok := replaceType(typ, o.replace); ok {
			if !typ.ConvertibleTo(replaced) || !replaced.ConvertibleTo(typ) {
				return nil, errors.Errorf("field %s: %s cannot be replaced by %s", info.Name, typ, replaced)
			}
			typ = replaced
			field.convert = true
		}

		structFields = append(structFields, reflect.StructField{
			Name: info.Name,
			Type: typ,
			Tag:  plainTag(info),
		})
		view.fields = append(view.fields, field)
	}

	view.plain = reflect.StructOf(structFields)
	return view, nil
}

// WithPlainView 在 fn 执行期间提供普通视图，fn 返回（包括 panic）后视图即被释放
func WithPlainView(t reflect.Type, fn func(v *View) error, opts ...ViewOption) error {
	view, err := PlainView(t, opts...)
	if err != nil {
		return err
	}
	defer view.Release()
	return fn(view)
}

// settable 经由未导出的嵌入结构体提升的字段无法通过反射读写
func settable(source reflect.Type, info inspect.FieldInfo) error {
	t := source
	for _, i := range info.StructField.Index[:len(info.StructField.Index)-1] {
		sf := t.Field(i)
		if !sf.IsExported() {
			return errors.Errorf("field %s is promoted through unexported embedded %s", info.Name, sf.Name)
		}
		t = sf.Type
	}
	return nil
}

func replaceType(t reflect.Type, replace map[reflect.Type]reflect.Type) (reflect.Type, bool) {
	if to, ok := replace[t]; ok {
		return to, true
	}
	if t.Kind() == reflect.Pointer {
		if to, ok := replace[t.Elem()]; ok {
			return reflect.PointerTo(to), true
		}
	}
	return nil, false
}

func plainTag(info inspect.FieldInfo) reflect.StructTag {
	name := info.EncodeName
	jsonTag := name
	if tag, ok := info.StructField.Tag.Lookup("json"); ok {
		if _, opts, found := strings.Cut(tag, ","); found {
			jsonTag = name + "," + opts
		}
	}
	tag := fmt.Sprintf(`json:%q msgpack:%q bson:%q`, jsonTag, name, name)
	if v, ok := info.StructField.Tag.Lookup("validate"); ok {
		tag += fmt.Sprintf(` validate:%q`, v)
	}
	return reflect.StructTag(tag)
}

// Release 释放视图，之后再使用视图会 panic
func (v *View) Release() {
	v.released.Store(true)
}

func (v *View) check() {
	if v.released.Load() {
		panic(fmt.Sprintf("orm: plain view of %s used after release", v.source))
	}
}

// Source 源结构体类型
func (v *View) Source() reflect.Type {
	v.check()
	return v.source
}

// Type 视图结构体类型
func (v *View) Type() reflect.Type {
	v.check()
	return v.plain
}

// Fields 视图字段对应的源字段，顺序和视图一致
func (v *View) Fields() []inspect.FieldInfo {
	v.check()
	infos := make([]inspect.FieldInfo, len(v.fields))
	for i, f := range v.fields {
		infos[i] = f.info
	}
	return infos
}

// New 返回指向视图零值的指针
func (v *View) New() any {
	v.check()
	return reflect.New(v.plain).Interface()
}

// ToPlain 把源结构体（值或指针）转换为视图结构体，返回指向视图结构体的指针
func (v *View) ToPlain(value any) (any, error) {
	v.check()
	src, err := v.structValue(value, v.source)
	if err != nil {
		return nil, err
	}

	dst := reflect.New(v.plain).Elem()
	for i, f := range v.fields {
		fv := src.FieldByIndex(f.info.StructField.Index)
		if f.mapped {
			fv = fv.Field(0)
		}
		if f.convert {
			fv = fv.Convert(v.plain.Field(i).Type)
		}
		dst.Field(i).Set(fv)
	}
	return dst.Addr().Interface(), nil
}

// FromPlain 把视图结构体（值或指针）写回 dst，dst 必须是指向源结构体的指针
func (v *View) FromPlain(plain any, dst any) error {
	v.check()
	src, err := v.structValue(plain, v.plain)
	if err != nil {
		return err
	}
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Type() != v.source {
		return errors.Errorf("expected *%s, got %T", v.source, dst)
	}

	out := rv.Elem()
	for i, f := range v.fields {
		target := out.FieldByIndex(f.info.StructField.Index)
		if f.mapped {
			target = target.Field(0)
		}
		fv := src.Field(i)
		if f.convert {
			fv = fv.Convert(target.Type())
		}
		target.Set(fv)
	}
	return nil
}

func (v *View) structValue(value any, expected reflect.Type) (reflect.Value, error) {
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}, errors.Errorf("nil *%s", expected)
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() || rv.Type() != expected {
		return reflect.Value{}, errors.Errorf("expected %s, got %T", expected, value)
	}
	return rv, nil
}
