package sqltype

import (
	"github.com/hatlonely/sqltable/inspect"
	"github.com/pkg/errors"
)

var (
	ErrUnmappableType    = errors.New("unmappable type")
	ErrUnsupportedUnion  = errors.New("unsupported union")
	ErrInvalidHookResult = errors.New("invalid hook result")
)

// Nullability 列的可空性来源
type Nullability int

const (
	// NullUnset 未声明，按默认值处理（不可空）
	NullUnset Nullability = iota
	// NullFalse 显式声明不可空
	NullFalse
	// NullTrue 显式声明可空
	NullTrue
	// NullTypeDerived 由类型推导：可缺省的类型即可空
	NullTypeDerived
)

// Explicit 把布尔值转换为显式的可空性
func Explicit(nullable bool) Nullability {
	if nullable {
		return NullTrue
	}
	return NullFalse
}

func (n Nullability) String() string {
	switch n {
	case NullFalse:
		return "not null"
	case NullTrue:
		return "null"
	case NullTypeDerived:
		return "type derived"
	default:
		return "unset"
	}
}

// Resolution 类型映射结果
type Resolution struct {
	Type Type
	// Null 为 NullTypeDerived 表示类型本身可缺省
	Null Nullability
}

// HookResult Hook 的返回值：要么给出存储类型，要么放弃交给内置规则
type HookResult struct {
	value    any
	declined bool
}

// Mapped 返回 Hook 映射出的存储类型，value 必须是 Type
func Mapped(value any) HookResult {
	return HookResult{value: value}
}

// Declined Hook 不处理该类型
func Declined() HookResult {
	return HookResult{declined: true}
}

// IsDeclined 判断 Hook 是否放弃
func (r HookResult) IsDeclined() bool {
	return r.declined
}

// Hook 自定义类型映射，优先于内置规则
type Hook func(t inspect.Type) HookResult

// Map 把语义类型映射为存储类型
func Map(t inspect.Type, hook Hook) (Resolution, error) {
	bare, _ := inspect.Unwrap(t)
	if bare == nil {
		return Resolution{}, errors.Wrap(ErrUnmappableType, "nil type")
	}

	if hook != nil {
		result := hook(bare)
		if !result.declined {
			typ, ok := result.value.(Type)
			if !ok || typ == nil {
				return Resolution{}, errors.Wrapf(ErrInvalidHookResult, "hook returned %T for %s, expected sqltype.Type", result.value, bare)
			}
			return Resolution{Type: typ}, nil
		}
	}

	switch v := bare.(type) {
	case inspect.BoolType:
		return Resolution{Type: Boolean{}}, nil
	case inspect.BytesType:
		return Resolution{Type: Binary{Length: v.MaxLength}}, nil
	case inspect.DateTimeType:
		return Resolution{Type: DateTime{Timezone: v.TZ}}, nil
	case inspect.DecimalType:
		return Resolution{Type: Decimal{Precision: v.Precision, Scale: v.Scale}}, nil
	case inspect.DateType:
		return Resolution{Type: Date{}}, nil
	case inspect.EnumType:
		return Resolution{Type: Enum{TypeName: v.Type.Name(), Values: append([]string(nil), v.Values...)}}, nil
	case inspect.FloatType:
		return Resolution{Type: Float{}}, nil
	case inspect.IntType:
		return Resolution{Type: Integer{}}, nil
	case inspect.RawType:
		return Resolution{Type: LargeBinary{}}, nil
	case inspect.StrType:
		if v.MaxLength > 0 {
			return Resolution{Type: String{Length: v.MaxLength}}, nil
		}
		return Resolution{Type: AutoString{}}, nil
	case inspect.UUIDType:
		return Resolution{Type: UUID{}}, nil
	case inspect.UnionType:
		if !v.IncludesNone || len(v.Types) != 1 {
			return Resolution{}, errors.Wrapf(ErrUnsupportedUnion, "%s: only a single type with none is supported", v)
		}
		inner, err := Map(v.Types[0], hook)
		if err != nil {
			return Resolution{}, err
		}
		inner.Null = NullTypeDerived
		return inner, nil
	}

	return Resolution{}, errors.Wrapf(ErrUnmappableType, "%s has no matching storage type", bare)
}
