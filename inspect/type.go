package inspect

import (
	"fmt"
	"reflect"
	"strings"
)

// Kind 语义类型分类
type Kind string

const (
	KindBool     Kind = "bool"
	KindBytes    Kind = "bytes"
	KindDateTime Kind = "datetime"
	KindDecimal  Kind = "decimal"
	KindDate     Kind = "date"
	KindEnum     Kind = "enum"
	KindFloat    Kind = "float"
	KindInt      Kind = "int"
	KindRaw      Kind = "raw"
	KindStr      Kind = "str"
	KindUnion    Kind = "union"
	KindUUID     Kind = "uuid"
	KindList     Kind = "list"
	KindDict     Kind = "dict"
	KindStruct   Kind = "struct"
	KindCustom   Kind = "custom"
	KindMetadata Kind = "metadata"
)

// Type 字段的语义类型，与任何存储框架无关
type Type interface {
	Kind() Kind
	String() string
}

type BoolType struct{}

// BytesType 字节序列，MaxLength 为 0 表示不限长度
type BytesType struct {
	MaxLength int
}

// DateTimeType 时间戳，TZ 表示是否带时区
type DateTimeType struct {
	TZ bool
}

// DecimalType 定点小数，Precision/Scale 为 0 表示未指定
type DecimalType struct {
	Precision int
	Scale     int
}

type DateType struct{}

// EnumType 枚举，Values 为全部成员
type EnumType struct {
	Type   reflect.Type
	Values []string
}

type FloatType struct{}

type IntType struct{}

// RawType 不做解析的原始编码数据
type RawType struct{}

// StrType 字符串，MaxLength 为 0 表示不限长度
type StrType struct {
	MaxLength int
}

// UnionType 联合类型，IncludesNone 表示可以缺省（nil）
type UnionType struct {
	Types        []Type
	IncludesNone bool
}

type UUIDType struct{}

type ListType struct {
	Item Type
}

type DictType struct {
	Key   Type
	Value Type
}

// StructType 嵌套结构体，只记录 Go 类型，不展开字段
type StructType struct {
	Type reflect.Type
}

// CustomType 无法归类但实现了 driver.Valuer 的自定义类型
type CustomType struct {
	Type reflect.Type
}

// Metadata 类型外层的元数据包装，可以多层嵌套
type Metadata struct {
	Type        Type
	Title       string
	Description string
	Extra       map[string]any
}

func (BoolType) Kind() Kind     { return KindBool }
func (BytesType) Kind() Kind    { return KindBytes }
func (DateTimeType) Kind() Kind { return KindDateTime }
func (DecimalType) Kind() Kind  { return KindDecimal }
func (DateType) Kind() Kind     { return KindDate }
func (EnumType) Kind() Kind     { return KindEnum }
func (FloatType) Kind() Kind    { return KindFloat }
func (IntType) Kind() Kind      { return KindInt }
func (RawType) Kind() Kind      { return KindRaw }
func (StrType) Kind() Kind      { return KindStr }
func (UnionType) Kind() Kind    { return KindUnion }
func (UUIDType) Kind() Kind     { return KindUUID }
func (ListType) Kind() Kind     { return KindList }
func (DictType) Kind() Kind     { return KindDict }
func (StructType) Kind() Kind   { return KindStruct }
func (CustomType) Kind() Kind   { return KindCustom }
func (*Metadata) Kind() Kind    { return KindMetadata }

func (BoolType) String() string { return "bool" }

func (t BytesType) String() string {
	if t.MaxLength > 0 {
		return fmt.Sprintf("bytes(%d)", t.MaxLength)
	}
	return "bytes"
}

func (t DateTimeType) String() string {
	if t.TZ {
		return "datetime(tz)"
	}
	return "datetime"
}

func (t DecimalType) String() string {
	if t.Precision > 0 {
		return fmt.Sprintf("decimal(%d,%d)", t.Precision, t.Scale)
	}
	return "decimal"
}

func (DateType) String() string { return "date" }

func (t EnumType) String() string {
	return fmt.Sprintf("enum %s{%s}", t.Type, strings.Join(t.Values, ","))
}

func (FloatType) String() string { return "float" }
func (IntType) String() string   { return "int" }
func (RawType) String() string   { return "raw" }

func (t StrType) String() string {
	if t.MaxLength > 0 {
		return fmt.Sprintf("str(%d)", t.MaxLength)
	}
	return "str"
}

func (t UnionType) String() string {
	parts := make([]string, 0, len(t.Types)+1)
	for _, member := range t.Types {
		parts = append(parts, member.String())
	}
	if t.IncludesNone {
		parts = append(parts, "none")
	}
	return "union[" + strings.Join(parts, "|") + "]"
}

func (UUIDType) String() string { return "uuid" }

func (t ListType) String() string { return "list[" + t.Item.String() + "]" }

func (t DictType) String() string {
	return "dict[" + t.Key.String() + "]" + t.Value.String()
}

func (t StructType) String() string { return "struct " + t.Type.String() }
func (t CustomType) String() string { return "custom " + t.Type.String() }

func (m *Metadata) String() string {
	return "metadata(" + m.Type.String() + ")"
}

// Unwrap 剥去全部 Metadata 包装，返回裸类型和由外到内的包装层
func Unwrap(t Type) (Type, []*Metadata) {
	var layers []*Metadata
	for {
		m, ok := t.(*Metadata)
		if !ok {
			return t, layers
		}
		layers = append(layers, m)
		t = m.Type
	}
}
