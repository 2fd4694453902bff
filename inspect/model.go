package inspect

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// FieldInfo 结构体字段的基本信息，不包含语义类型
type FieldInfo struct {
	// Go 字段名
	Name string
	// 编解码使用的字段名
	EncodeName string
	// Index 为完整的索引路径，可以直接用于 FieldByIndex
	StructField reflect.StructField
}

// Field 结构体字段，Type 为带元数据包装的语义类型
type Field struct {
	FieldInfo
	Type Type
}

// Model 结构体的字段列表，按声明顺序排列
type Model struct {
	Type   reflect.Type
	Fields []Field
}

// TagParser 把结构体 tag 解析为一层元数据，skip 为 true 时忽略该字段
type TagParser func(tag string) (meta Meta, skip bool, err error)

type tagParser struct {
	key   string
	parse TagParser
}

type options struct {
	tags   []tagParser
	rename func(string) string
}

type Option func(*options)

// WithTagParser 注册 tag 解析器，多个解析器按注册顺序产生由外到内的元数据层
func WithTagParser(key string, parse TagParser) Option {
	return func(o *options) {
		o.tags = append(o.tags, tagParser{key: key, parse: parse})
	}
}

// WithRename 没有 json tag 的字段使用 rename 生成编解码字段名
func WithRename(rename func(string) string) Option {
	return func(o *options) {
		if rename != nil {
			o.rename = rename
		}
	}
}

func newOptions(opts []Option) *options {
	o := &options{rename: func(name string) string { return name }}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// StructOf 去掉指针，返回结构体类型
func StructOf(t reflect.Type) (reflect.Type, error) {
	if t == nil {
		return nil, errors.Wrap(ErrNotStruct, "nil type")
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, errors.Wrapf(ErrNotStruct, "expected struct, got %s", t)
	}
	return t, nil
}

// Fields 按声明顺序列出可导出字段，匿名嵌入的结构体字段会被展开
func Fields(t reflect.Type, rename func(string) string) ([]FieldInfo, error) {
	t, err := StructOf(t)
	if err != nil {
		return nil, err
	}
	if rename == nil {
		rename = func(name string) string { return name }
	}

	var fields []FieldInfo
	for _, sf := range reflect.VisibleFields(t) {
		if sf.Anonymous {
			if sf.Type.Kind() == reflect.Pointer && sf.Type.Elem().Kind() == reflect.Struct {
				return nil, errors.Wrapf(ErrEmbeddedPointer, "%s.%s", t, sf.Name)
			}
			if sf.Type.Kind() == reflect.Struct {
				continue
			}
		}
		if !sf.IsExported() {
			continue
		}

		encodeName := rename(sf.Name)
		if tag, ok := sf.Tag.Lookup("json"); ok {
			name := strings.Split(tag, ",")[0]
			if name == "-" {
				continue
			}
			if name != "" {
				encodeName = name
			}
		}

		fields = append(fields, FieldInfo{
			Name:        sf.Name,
			EncodeName:  encodeName,
			StructField: sf,
		})
	}
	return fields, nil
}

// Inspect 解析结构体的全部字段
func Inspect(t reflect.Type, opts ...Option) (*Model, error) {
	o := newOptions(opts)
	st, err := StructOf(t)
	if err != nil {
		return nil, err
	}
	infos, err := Fields(st, o.rename)
	if err != nil {
		return nil, err
	}

	model := &Model{Type: st, Fields: make([]Field, 0, len(infos))}
	annotations := fieldAnnotations(st)
	for _, info := range infos {
		field, skip, err := inspectField(info, annotations[info.Name], o)
		if err != nil {
			return nil, errors.WithMessagef(err, "field %s", info.Name)
		}
		if skip {
			continue
		}
		model.Fields = append(model.Fields, field)
	}
	return model, nil
}

// InspectField 解析单个字段，skip 为 true 表示 tag 要求忽略该字段
func InspectField(t reflect.Type, info FieldInfo, opts ...Option) (Field, bool, error) {
	st, err := StructOf(t)
	if err != nil {
		return Field{}, false, err
	}
	return inspectField(info, fieldAnnotations(st)[info.Name], newOptions(opts))
}

func inspectField(info FieldInfo, annotations []Meta, o *options) (Field, bool, error) {
	// 字段级元数据：编程方式声明的在最外层，其次是 tag
	metas := append([]Meta(nil), annotations...)
	for _, tp := range o.tags {
		tag, ok := info.StructField.Tag.Lookup(tp.key)
		if !ok {
			continue
		}
		meta, skip, err := tp.parse(tag)
		if err != nil {
			return Field{}, false, errors.WithMessagef(err, "invalid %s tag %q", tp.key, tag)
		}
		if skip {
			return Field{}, true, nil
		}
		metas = append(metas, meta)
	}
	if meta, ok := validateMeta(info.StructField.Tag.Get("validate")); ok {
		metas = append(metas, meta)
	}

	bare, typeMetas, err := classify(info.StructField.Type)
	if err != nil {
		return Field{}, false, err
	}
	metas = append(metas, typeMetas...)

	return Field{FieldInfo: info, Type: wrap(bare, metas)}, false, nil
}

// fieldAnnotations 读取结构体通过 FieldAnnotations 声明的字段元数据
func fieldAnnotations(t reflect.Type) map[string][]Meta {
	if a, ok := zeroAs[FieldAnnotator](t, annotatorType); ok {
		return a.FieldAnnotations()
	}
	if reflect.PointerTo(t).Implements(annotatorType) {
		return reflect.New(t).Interface().(FieldAnnotator).FieldAnnotations()
	}
	return nil
}

// validateMeta 从 validator 的 tag 中提取长度约束，dive 之后的规则作用于元素，不再解析
func validateMeta(tag string) (Meta, bool) {
	if tag == "" {
		return Meta{}, false
	}
	var meta Meta
	found := false
	for _, rule := range strings.Split(tag, ",") {
		rule = strings.TrimSpace(rule)
		if rule == "dive" {
			break
		}
		key, value, ok := strings.Cut(rule, "=")
		if !ok || (key != "max" && key != "len") {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			continue
		}
		meta.MaxLength = n
		found = true
	}
	return meta, found
}
