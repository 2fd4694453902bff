package inspect

import (
	"database/sql/driver"
	"encoding/json"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/hatlonely/sqltable/types"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	ErrUnclassifiableType = errors.New("unclassifiable type")
	ErrNotStruct          = errors.New("not a struct type")
	ErrEmbeddedPointer    = errors.New("embedded struct pointer is not supported")
)

var (
	timeType       = reflect.TypeOf(time.Time{})
	dateType       = reflect.TypeOf(types.Date{})
	decimalType    = reflect.TypeOf(decimal.Decimal{})
	uuidType       = reflect.TypeOf(uuid.UUID{})
	rawJSONType    = reflect.TypeOf(json.RawMessage{})
	rawMsgpackType = reflect.TypeOf(msgpack.RawMessage{})
	valuerType     = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
)

// TypeInfo 识别 Go 类型的语义类型，类型级元数据会以 Metadata 包装返回
func TypeInfo(t reflect.Type) (Type, error) {
	bare, metas, err := classify(t)
	if err != nil {
		return nil, err
	}
	return wrap(bare, metas), nil
}

// classify 返回裸类型以及沿途收集到的类型级元数据（由外到内）
func classify(t reflect.Type) (Type, []Meta, error) {
	if t == nil {
		return nil, nil, errors.Wrap(ErrUnclassifiableType, "nil type")
	}

	var metas []Meta
	for {
		if a, ok := zeroAs[Annotated](t, annotatedType); ok {
			metas = append(metas, a.Annotations()...)
		}
		inner := WrappedType(t)
		if inner == nil {
			break
		}
		t = inner
	}

	switch t {
	case timeType:
		return DateTimeType{}, metas, nil
	case dateType:
		return DateType{}, metas, nil
	case decimalType:
		return DecimalType{}, metas, nil
	case uuidType:
		return UUIDType{}, metas, nil
	case rawJSONType, rawMsgpackType:
		return RawType{}, metas, nil
	}

	if e, ok := zeroAs[Enum](t, enumType); ok && isEnumKind(t.Kind()) {
		values := append([]string(nil), e.Values()...)
		return EnumType{Type: t, Values: values}, metas, nil
	}

	if v, ok := zeroAs[Variant](t, variantType); ok {
		union := UnionType{}
		for _, member := range v.Variants() {
			bare, memberMetas, err := classify(member)
			if err != nil {
				return nil, nil, errors.WithMessagef(err, "variant of %s", t)
			}
			// 成员本身可缺省时先拍平，元数据包装到各个成员上
			if u, ok := bare.(UnionType); ok {
				for _, m := range u.Types {
					union.Types = append(union.Types, wrap(m, memberMetas))
				}
				union.IncludesNone = union.IncludesNone || u.IncludesNone
				continue
			}
			union.Types = append(union.Types, wrap(bare, memberMetas))
		}
		return union, metas, nil
	}

	if isSQLNull(t) {
		inner, innerMetas, err := classify(t.Field(0).Type)
		if err != nil {
			return nil, nil, err
		}
		return optional(inner), append(metas, innerMetas...), nil
	}

	switch t.Kind() {
	case reflect.Pointer:
		inner, innerMetas, err := classify(t.Elem())
		if err != nil {
			return nil, nil, err
		}
		return optional(inner), append(metas, innerMetas...), nil
	case reflect.Bool:
		return BoolType{}, metas, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return IntType{}, metas, nil
	case reflect.Float32, reflect.Float64:
		return FloatType{}, metas, nil
	case reflect.String:
		return StrType{}, metas, nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return BytesType{}, metas, nil
		}
		item, err := TypeInfo(t.Elem())
		if err != nil {
			return nil, nil, err
		}
		return ListType{Item: item}, metas, nil
	case reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return BytesType{MaxLength: t.Len()}, metas, nil
		}
		item, err := TypeInfo(t.Elem())
		if err != nil {
			return nil, nil, err
		}
		return ListType{Item: item}, metas, nil
	case reflect.Map:
		key, err := TypeInfo(t.Key())
		if err != nil {
			return nil, nil, err
		}
		value, err := TypeInfo(t.Elem())
		if err != nil {
			return nil, nil, err
		}
		return DictType{Key: key, Value: value}, metas, nil
	case reflect.Struct:
		if t.Implements(valuerType) {
			return CustomType{Type: t}, metas, nil
		}
		return StructType{Type: t}, metas, nil
	}

	if t.Implements(valuerType) {
		return CustomType{Type: t}, metas, nil
	}
	return nil, nil, errors.Wrapf(ErrUnclassifiableType, "%s (kind %s)", t, t.Kind())
}

// optional 把类型变为可缺省的联合类型，嵌套的可缺省类型会被拍平
func optional(t Type) Type {
	if u, ok := t.(UnionType); ok {
		u.IncludesNone = true
		return u
	}
	return UnionType{Types: []Type{t}, IncludesNone: true}
}

// isSQLNull 识别 database/sql 中的 NullString/NullInt64/Null[T] 等类型
func isSQLNull(t reflect.Type) bool {
	if t.Kind() != reflect.Struct || t.PkgPath() != "database/sql" || t.NumField() != 2 {
		return false
	}
	valid := t.Field(1)
	return valid.Name == "Valid" && valid.Type.Kind() == reflect.Bool
}

func isEnumKind(k reflect.Kind) bool {
	switch k {
	case reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}
