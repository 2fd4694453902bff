package inspect

import (
	"reflect"
)

// Meta 一层元数据：约束会折叠进裸类型，Extra/Title/Description 会形成一层 Metadata
type Meta struct {
	// 字符串/字节的最大长度
	MaxLength int
	// 时间是否带时区，nil 表示不指定
	TZ *bool
	// 定点小数的精度和小数位数
	Precision int
	Scale     int

	Title       string
	Description string
	// 扩展信息，供其他子系统挂载数据（例如存储映射指令）
	Extra map[string]any
}

// hasLayer 是否需要生成一层 Metadata
func (m Meta) hasLayer() bool {
	return len(m.Extra) > 0 || m.Title != "" || m.Description != ""
}

// Annotated 由命名类型实现，为所有使用该类型的字段提供元数据
//
//	type Email string
//	func (Email) Annotations() []inspect.Meta { return []inspect.Meta{{MaxLength: 320}} }
type Annotated interface {
	Annotations() []Meta
}

// FieldAnnotator 由结构体实现，按 Go 字段名为字段提供元数据，顺序由外到内
type FieldAnnotator interface {
	FieldAnnotations() map[string][]Meta
}

// Wrapper 由存储映射包装类型实现（例如 orm.Mapped[T]），返回被包装的类型
type Wrapper interface {
	WrappedType() reflect.Type
}

// Enum 由枚举类型实现，返回全部成员
type Enum interface {
	Values() []string
}

// Variant 由联合类型实现，返回全部候选成员类型
type Variant interface {
	Variants() []reflect.Type
}

var (
	annotatedType = reflect.TypeOf((*Annotated)(nil)).Elem()
	annotatorType = reflect.TypeOf((*FieldAnnotator)(nil)).Elem()
	wrapperType   = reflect.TypeOf((*Wrapper)(nil)).Elem()
	enumType      = reflect.TypeOf((*Enum)(nil)).Elem()
	variantType   = reflect.TypeOf((*Variant)(nil)).Elem()
)

// zeroAs 取类型零值并断言为接口，只支持值接收者的实现
func zeroAs[I any](t reflect.Type, iface reflect.Type) (I, bool) {
	var zero I
	if !t.Implements(iface) {
		return zero, false
	}
	if t.Kind() == reflect.Pointer || t.Kind() == reflect.Interface {
		return zero, false
	}
	v, ok := reflect.Zero(t).Interface().(I)
	return v, ok
}

// IsWrapper 判断类型是否为存储映射包装类型
func IsWrapper(t reflect.Type) bool {
	_, ok := zeroAs[Wrapper](t, wrapperType)
	return ok
}

// WrappedType 返回包装类型携带的类型参数，非包装类型返回 nil
func WrappedType(t reflect.Type) reflect.Type {
	if w, ok := zeroAs[Wrapper](t, wrapperType); ok {
		return w.WrappedType()
	}
	return nil
}

// applyConstraints 把约束折叠进裸类型，联合类型会下推到成员
func applyConstraints(t Type, m Meta) Type {
	switch v := t.(type) {
	case StrType:
		if m.MaxLength > 0 {
			v.MaxLength = m.MaxLength
		}
		return v
	case BytesType:
		if m.MaxLength > 0 {
			v.MaxLength = m.MaxLength
		}
		return v
	case DateTimeType:
		if m.TZ != nil {
			v.TZ = *m.TZ
		}
		return v
	case DecimalType:
		if m.Precision > 0 {
			v.Precision = m.Precision
		}
		if m.Scale > 0 {
			v.Scale = m.Scale
		}
		return v
	case UnionType:
		members := make([]Type, len(v.Types))
		for i, member := range v.Types {
			members[i] = applyConstraints(member, m)
		}
		v.Types = members
		return v
	default:
		return t
	}
}

// wrap 按由外到内的顺序为裸类型加上 Metadata 包装，并折叠约束
func wrap(bare Type, metas []Meta) Type {
	// 约束从内向外应用，外层覆盖内层
	for i := len(metas) - 1; i >= 0; i-- {
		bare = applyConstraints(bare, metas[i])
	}

	result := bare
	for i := len(metas) - 1; i >= 0; i-- {
		m := metas[i]
		if !m.hasLayer() {
			continue
		}
		result = &Metadata{
			Type:        result,
			Title:       m.Title,
			Description: m.Description,
			Extra:       m.Extra,
		}
	}
	return result
}
