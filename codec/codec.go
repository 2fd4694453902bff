package codec

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"

	"github.com/go-openapi/inflect"
	"github.com/hatlonely/sqltable/cfg"
	"github.com/hatlonely/sqltable/cfg/validator"
	"github.com/hatlonely/sqltable/orm"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
	"go.mongodb.org/mongo-driver/bson"
	"gorm.io/gorm/schema"
)

const (
	FormatJSON    = "json"
	FormatMsgPack = "msgpack"
	FormatBSON    = "bson"
)

const (
	OrderUnordered = "unordered"
	OrderDeclared  = "declared"
	OrderSorted    = "sorted"
)

// bsonItemsKey BSON 顶层必须是文档，批量编码时包一层 {"items": [...]}
const bsonItemsKey = "items"

var (
	ErrUnknownField = errors.New("unknown field")
	ErrValidation   = errors.New("validation failed")
)

type Options struct {
	Format string `cfg:"format" def:"json" validate:"oneof=json msgpack bson"`
	// Strict 解码时拒绝未知字段
	Strict bool `cfg:"strict"`
	// Order 字段顺序，unordered 和 declared 都按声明顺序输出
	Order string `cfg:"order" def:"declared" validate:"oneof=unordered declared sorted"`
	// Rename 没有 json tag 的字段的命名规则：空（Go 字段名）、camel、snake、kebab
	// 常见缩写视为一个词：AccountID -> account_id / account-id / accountId
	Rename string `cfg:"rename" validate:"omitempty,oneof=camel snake kebab"`
	// DecimalFormat 只对 JSON 生效
	DecimalFormat string `cfg:"decimalFormat" def:"string" validate:"oneof=string number"`
	// UUIDFormat 只对 JSON 生效
	UUIDFormat string `cfg:"uuidFormat" def:"canonical" validate:"oneof=canonical hex"`
	// Validate 解码后按 validate tag 校验
	Validate bool `cfg:"validate"`

	// EncHook interface 类型字段中的值在编码前交给它转换
	EncHook func(v any) (any, error) `cfg:"-"`
	// FloatHook JSON 解码时 interface 类型字段中的浮点数交给它解析
	FloatHook func(s string) (any, error) `cfg:"-"`
}

// Codec 结构体的编解码器，基于结构体的普通视图，构建之后只读
type Codec[T any] struct {
	options *Options
	view    *orm.View
	// 视图字段的编解码名，严格模式下 BSON 用于检查未知字段
	known map[string]struct{}
	// 视图中 interface 类型字段的下标
	dynamic []int
	// 视图中可能含有 interface 值的字段的下标，包括 map[string]any、[]any 和嵌套结构体
	numeric []int
	// T 为结构体指针
	pointer bool
}

// New 构建编解码器，options 为 nil 时使用默认配置
func New[T any](options *Options) (*Codec[T], error) {
	opts := &Options{}
	if options != nil {
		*opts = *options
	}
	if err := cfg.SetDefaults(opts); err != nil {
		return nil, errors.WithMessage(err, "cfg.SetDefaults failed")
	}
	if err := validator.ValidateStruct(opts); err != nil {
		return nil, errors.Wrap(err, "invalid codec options")
	}

	var viewOpts []orm.ViewOption
	if rename := RenameFunc(opts.Rename); rename != nil {
		viewOpts = append(viewOpts, orm.WithViewRename(rename))
	}
	if opts.Order == OrderSorted {
		viewOpts = append(viewOpts, orm.WithSortedFields())
	}
	switch opts.Format {
	case FormatJSON:
		if opts.DecimalFormat == "number" {
			viewOpts = append(viewOpts, orm.WithReplace(decimalType, reflect.TypeOf(numberDecimal{})))
		}
		if opts.UUIDFormat == "hex" {
			viewOpts = append(viewOpts, orm.WithReplace(uuidType, reflect.TypeOf(hexUUID{})))
		}
	case FormatBSON:
		viewOpts = append(viewOpts,
			orm.WithReplace(decimalType, reflect.TypeOf(bsonDecimal{})),
			orm.WithReplace(uuidType, reflect.TypeOf(bsonUUID{})),
			orm.WithReplace(dateType, reflect.TypeOf(bsonDate{})),
		)
	}

	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Pointer {
		return nil, errors.Errorf("unsupported type %s, expected struct or pointer to struct", t)
	}
	view, err := orm.PlainView(t, viewOpts...)
	if err != nil {
		return nil, errors.WithMessage(err, "orm.PlainView failed")
	}

	c := &Codec[T]{options: opts, view: view, known: map[string]struct{}{}, pointer: t.Kind() == reflect.Pointer}
	for _, info := range view.Fields() {
		c.known[info.EncodeName] = struct{}{}
	}
	plain := view.Type()
	for i := 0; i < plain.NumField(); i++ {
		ft := plain.Field(i).Type
		if ft.Kind() == reflect.Interface {
			c.dynamic = append(c.dynamic, i)
		}
		if holdsAny(ft, map[reflect.Type]bool{}) {
			c.numeric = append(c.numeric, i)
		}
	}
	return c, nil
}

// RenameFunc 返回命名规则对应的字段名转换函数，空规则返回 nil
func RenameFunc(rename string) func(string) string {
	switch rename {
	case "camel":
		return func(name string) string {
			return inflect.CamelizeDownFirst(SnakeCase(name))
		}
	case "snake":
		return SnakeCase
	case "kebab":
		return func(name string) string {
			return strings.ReplaceAll(SnakeCase(name), "_", "-")
		}
	}
	return nil
}

var naming = schema.NamingStrategy{}

// SnakeCase 转为下划线形式，常见缩写视为一个词：AccountID -> account_id
func SnakeCase(name string) string {
	return naming.ColumnName("", name)
}

// Format 编码格式
func (c *Codec[T]) Format() string {
	return c.options.Format
}

// PlainType 实际参与编解码的视图结构体类型
func (c *Codec[T]) PlainType() reflect.Type {
	return c.view.Type()
}

func (c *Codec[T]) Encode(v T) ([]byte, error) {
	plain, err := c.toPlain(v)
	if err != nil {
		return nil, err
	}
	return c.marshal(plain)
}

func (c *Codec[T]) Decode(data []byte) (T, error) {
	plain := c.view.New()
	if err := c.unmarshal(data, plain); err != nil {
		var zero T
		return zero, err
	}
	if err := c.afterDecode(plain); err != nil {
		var zero T
		return zero, err
	}
	return c.fromPlain(plain)
}

// fromPlain T 为结构体指针时为结果分配新的结构体
func (c *Codec[T]) fromPlain(plain any) (T, error) {
	var result T
	if c.pointer {
		ptr := reflect.New(c.view.Source())
		if err := c.view.FromPlain(plain, ptr.Interface()); err != nil {
			return result, err
		}
		return ptr.Interface().(T), nil
	}
	if err := c.view.FromPlain(plain, &result); err != nil {
		return result, err
	}
	return result, nil
}

func (c *Codec[T]) EncodeMany(vs []T) ([]byte, error) {
	items := reflect.MakeSlice(reflect.SliceOf(c.view.Type()), len(vs), len(vs))
	for i, v := range vs {
		plain, err := c.toPlain(v)
		if err != nil {
			return nil, errors.WithMessagef(err, "item %d", i)
		}
		items.Index(i).Set(reflect.ValueOf(plain).Elem())
	}
	if c.options.Format == FormatBSON {
		return bson.Marshal(bson.D{{Key: bsonItemsKey, Value: items.Interface()}})
	}
	return c.marshal(items.Interface())
}

func (c *Codec[T]) DecodeMany(data []byte) ([]T, error) {
	sliceType := reflect.SliceOf(c.view.Type())
	items := reflect.New(sliceType)

	if c.options.Format == FormatBSON {
		wrapper := reflect.New(reflect.StructOf([]reflect.StructField{{
			Name: "Items",
			Type: sliceType,
			Tag:  reflect.StructTag(`bson:"` + bsonItemsKey + `"`),
		}}))
		if err := c.unmarshalBSONMany(data, wrapper.Interface()); err != nil {
			return nil, err
		}
		items.Elem().Set(wrapper.Elem().Field(0))
	} else if err := c.unmarshal(data, items.Interface()); err != nil {
		return nil, err
	}

	n := items.Elem().Len()
	result := make([]T, n)
	for i := 0; i < n; i++ {
		plain := items.Elem().Index(i).Addr().Interface()
		if err := c.afterDecode(plain); err != nil {
			return nil, errors.WithMessagef(err, "item %d", i)
		}
		item, err := c.fromPlain(plain)
		if err != nil {
			return nil, errors.WithMessagef(err, "item %d", i)
		}
		result[i] = item
	}
	return result, nil
}

func (c *Codec[T]) toPlain(v T) (any, error) {
	plain, err := c.view.ToPlain(v)
	if err != nil {
		return nil, err
	}
	if c.options.EncHook == nil || len(c.dynamic) == 0 {
		return plain, nil
	}
	rv := reflect.ValueOf(plain).Elem()
	for _, i := range c.dynamic {
		field := rv.Field(i)
		if field.IsNil() {
			continue
		}
		converted, err := c.options.EncHook(field.Interface())
		if err != nil {
			return nil, errors.WithMessagef(err, "enc hook on field %s", rv.Type().Field(i).Name)
		}
		if converted == nil {
			field.Set(reflect.Zero(field.Type()))
			continue
		}
		field.Set(reflect.ValueOf(converted))
	}
	return plain, nil
}

func (c *Codec[T]) afterDecode(plain any) error {
	if c.options.FloatHook != nil && c.options.Format == FormatJSON {
		rv := reflect.ValueOf(plain).Elem()
		for _, i := range c.numeric {
			if err := c.fixNumbers(rv.Field(i)); err != nil {
				return errors.WithMessagef(err, "float hook on field %s", rv.Type().Field(i).Name)
			}
		}
	}
	if c.options.Validate {
		if err := validator.ValidateStruct(plain); err != nil {
			return errors.Wrap(ErrValidation, err.Error())
		}
	}
	return nil
}

// holdsAny 类型中是否可能出现 interface 值，UseNumber 之后这些位置上是 json.Number
func holdsAny(t reflect.Type, seen map[reflect.Type]bool) bool {
	if seen[t] {
		return false
	}
	seen[t] = true
	switch t.Kind() {
	case reflect.Interface:
		return true
	case reflect.Pointer, reflect.Slice, reflect.Array, reflect.Map:
		return holdsAny(t.Elem(), seen)
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if f := t.Field(i); f.IsExported() && holdsAny(f.Type, seen) {
				return true
			}
		}
	}
	return false
}

// fixNumbers 递归替换 rv 中 interface 位置上的 json.Number
func (c *Codec[T]) fixNumbers(rv reflect.Value) error {
	switch rv.Kind() {
	case reflect.Interface:
		if rv.IsNil() || rv.NumMethod() > 0 {
			return nil
		}
		v, err := c.convertNumbers(rv.Interface())
		if err != nil {
			return err
		}
		if v == nil {
			rv.Set(reflect.Zero(rv.Type()))
			return nil
		}
		rv.Set(reflect.ValueOf(v))
	case reflect.Pointer:
		if !rv.IsNil() {
			return c.fixNumbers(rv.Elem())
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := c.fixNumbers(rv.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Map:
		if !holdsAny(rv.Type().Elem(), map[reflect.Type]bool{}) {
			return nil
		}
		iter := rv.MapRange()
		for iter.Next() {
			item := reflect.New(rv.Type().Elem()).Elem()
			item.Set(iter.Value())
			if err := c.fixNumbers(item); err != nil {
				return err
			}
			rv.SetMapIndex(iter.Key(), item)
		}
	case reflect.Struct:
		for i := 0; i < rv.NumField(); i++ {
			f := rv.Type().Field(i)
			if f.IsExported() && holdsAny(f.Type, map[reflect.Type]bool{}) {
				if err := c.fixNumbers(rv.Field(i)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// convertNumbers 把 json.Number 转为整数，浮点数交给 FloatHook
func (c *Codec[T]) convertNumbers(v any) (any, error) {
	switch x := v.(type) {
	case json.Number:
		s := x.String()
		if !strings.ContainsAny(s, ".eE") {
			if n, err := x.Int64(); err == nil {
				return n, nil
			}
		}
		return c.options.FloatHook(s)
	case map[string]any:
		for k, item := range x {
			converted, err := c.convertNumbers(item)
			if err != nil {
				return nil, err
			}
			x[k] = converted
		}
		return x, nil
	case []any:
		for i, item := range x {
			converted, err := c.convertNumbers(item)
			if err != nil {
				return nil, err
			}
			x[i] = converted
		}
		return x, nil
	}
	return v, nil
}

func (c *Codec[T]) marshal(v any) ([]byte, error) {
	switch c.options.Format {
	case FormatMsgPack:
		return msgpack.Marshal(v)
	case FormatBSON:
		return bson.Marshal(v)
	default:
		return json.Marshal(v)
	}
}

func (c *Codec[T]) unmarshal(data []byte, v any) error {
	switch c.options.Format {
	case FormatMsgPack:
		dec := msgpack.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields(c.options.Strict)
		return wrapUnknown(dec.Decode(v))
	case FormatBSON:
		if c.options.Strict {
			if err := c.checkBSONKeys(bson.Raw(data)); err != nil {
				return err
			}
		}
		return bson.Unmarshal(data, v)
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		if c.options.Strict {
			dec.DisallowUnknownFields()
		}
		if c.options.FloatHook != nil {
			dec.UseNumber()
		}
		return wrapUnknown(dec.Decode(v))
	}
}

func (c *Codec[T]) unmarshalBSONMany(data []byte, v any) error {
	if c.options.Strict {
		items, err := bson.Raw(data).LookupErr(bsonItemsKey)
		if err != nil {
			return errors.Wrapf(err, "missing %q", bsonItemsKey)
		}
		array, ok := items.ArrayOK()
		if !ok {
			return errors.Errorf("%q is not an array", bsonItemsKey)
		}
		values, err := array.Values()
		if err != nil {
			return err
		}
		for i, value := range values {
			doc, ok := value.DocumentOK()
			if !ok {
				return errors.Errorf("item %d is not a document", i)
			}
			if err := c.checkBSONKeys(doc); err != nil {
				return errors.WithMessagef(err, "item %d", i)
			}
		}
	}
	return bson.Unmarshal(data, v)
}

func (c *Codec[T]) checkBSONKeys(doc bson.Raw) error {
	elements, err := doc.Elements()
	if err != nil {
		return err
	}
	for _, element := range elements {
		if _, ok := c.known[element.Key()]; !ok {
			return errors.Wrapf(ErrUnknownField, "%q", element.Key())
		}
	}
	return nil
}

// wrapUnknown 统一 encoding/json 和 msgpack 的未知字段错误
func wrapUnknown(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "unknown field") {
		return errors.Wrap(ErrUnknownField, err.Error())
	}
	return err
}
