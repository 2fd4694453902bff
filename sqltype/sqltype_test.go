package sqltype

import (
	"reflect"
	"testing"

	"github.com/hatlonely/sqltable/inspect"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type money struct{ Cents int64 }

type titled string

func (titled) Annotations() []inspect.Meta { return []inspect.Meta{{Title: "titled"}} }

type maybeTitled struct{}

func (maybeTitled) Variants() []reflect.Type { return []reflect.Type{reflect.TypeOf((*titled)(nil))} }

func TestMap(t *testing.T) {
	Convey("测试 Map 方法", t, func() {
		Convey("内置规则", func() {
			for _, c := range []struct {
				in   inspect.Type
				want Type
			}{
				{inspect.BoolType{}, Boolean{}},
				{inspect.BytesType{}, Binary{}},
				{inspect.BytesType{MaxLength: 16}, Binary{Length: 16}},
				{inspect.DateTimeType{TZ: true}, DateTime{Timezone: true}},
				{inspect.DecimalType{Precision: 10, Scale: 2}, Decimal{Precision: 10, Scale: 2}},
				{inspect.DateType{}, Date{}},
				{inspect.FloatType{}, Float{}},
				{inspect.IntType{}, Integer{}},
				{inspect.RawType{}, LargeBinary{}},
				{inspect.StrType{}, AutoString{}},
				{inspect.StrType{MaxLength: 10}, String{Length: 10}},
				{inspect.UUIDType{}, UUID{}},
			} {
				res, err := Map(c.in, nil)
				So(err, ShouldBeNil)
				So(res.Type, ShouldResemble, c.want)
				So(res.Null, ShouldEqual, NullUnset)
			}
		})

		Convey("枚举", func() {
			type status string
			res, err := Map(inspect.EnumType{Type: reflect.TypeOf(status("")), Values: []string{"on", "off"}}, nil)
			So(err, ShouldBeNil)
			So(res.Type, ShouldResemble, Enum{TypeName: "status", Values: []string{"on", "off"}})
		})

		Convey("可缺省类型推导为可空", func() {
			res, err := Map(inspect.UnionType{Types: []inspect.Type{inspect.StrType{MaxLength: 10}}, IncludesNone: true}, nil)
			So(err, ShouldBeNil)
			So(res.Type, ShouldResemble, String{Length: 10})
			So(res.Null, ShouldEqual, NullTypeDerived)
		})

		Convey("联合类型中带元数据的可缺省成员", func() {
			typ, err := inspect.TypeInfo(reflect.TypeOf(maybeTitled{}))
			So(err, ShouldBeNil)
			res, err := Map(typ, nil)
			So(err, ShouldBeNil)
			So(res.Type, ShouldResemble, AutoString{})
			So(res.Null, ShouldEqual, NullTypeDerived)
		})

		Convey("元数据包装被剥去", func() {
			res, err := Map(&inspect.Metadata{Type: inspect.IntType{}, Title: "id"}, nil)
			So(err, ShouldBeNil)
			So(res.Type, ShouldResemble, Integer{})
		})

		Convey("不支持的联合类型", func() {
			_, err := Map(inspect.UnionType{Types: []inspect.Type{inspect.IntType{}, inspect.StrType{}}, IncludesNone: true}, nil)
			So(errors.Is(err, ErrUnsupportedUnion), ShouldBeTrue)

			_, err = Map(inspect.UnionType{Types: []inspect.Type{inspect.IntType{}}}, nil)
			So(errors.Is(err, ErrUnsupportedUnion), ShouldBeTrue)
		})

		Convey("无法映射的类型", func() {
			_, err := Map(inspect.ListType{Item: inspect.IntType{}}, nil)
			So(errors.Is(err, ErrUnmappableType), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "list[int]")
		})

		Convey("Hook 优先于内置规则", func() {
			hook := func(t inspect.Type) HookResult {
				if c, ok := t.(inspect.CustomType); ok && c.Type == reflect.TypeOf(money{}) {
					return Mapped(Decimal{Precision: 18, Scale: 2})
				}
				if _, ok := t.(inspect.ListType); ok {
					return Mapped(JSON{})
				}
				return Declined()
			}

			res, err := Map(inspect.CustomType{Type: reflect.TypeOf(money{})}, hook)
			So(err, ShouldBeNil)
			So(res.Type, ShouldResemble, Decimal{Precision: 18, Scale: 2})

			res, err = Map(inspect.ListType{Item: inspect.StrType{}}, hook)
			So(err, ShouldBeNil)
			So(res.Type, ShouldResemble, JSON{})

			res, err = Map(inspect.IntType{}, hook)
			So(err, ShouldBeNil)
			So(res.Type, ShouldResemble, Integer{})
		})

		Convey("Hook 同样作用于可缺省类型的成员", func() {
			hook := func(t inspect.Type) HookResult {
				if _, ok := t.(inspect.ListType); ok {
					return Mapped(JSON{})
				}
				return Declined()
			}
			res, err := Map(inspect.UnionType{Types: []inspect.Type{inspect.ListType{Item: inspect.IntType{}}}, IncludesNone: true}, hook)
			So(err, ShouldBeNil)
			So(res.Type, ShouldResemble, JSON{})
			So(res.Null, ShouldEqual, NullTypeDerived)
		})

		Convey("Hook 返回非存储类型", func() {
			hook := func(t inspect.Type) HookResult { return Mapped("VARCHAR") }
			_, err := Map(inspect.CustomType{Type: reflect.TypeOf(money{})}, hook)
			So(errors.Is(err, ErrInvalidHookResult), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "string")

			hook = func(t inspect.Type) HookResult { return Mapped(nil) }
			_, err = Map(inspect.IntType{}, hook)
			So(errors.Is(err, ErrInvalidHookResult), ShouldBeTrue)
		})
	})
}

func TestMapDeterministic(t *testing.T) {
	in := inspect.UnionType{Types: []inspect.Type{inspect.DecimalType{Precision: 12, Scale: 4}}, IncludesNone: true}
	first, err := Map(in, nil)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Map(in, nil)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestParse(t *testing.T) {
	for _, c := range []struct {
		text string
		want Type
	}{
		{"bool", Boolean{}},
		{"BIGINT", Integer{}},
		{"double", Float{}},
		{"date", Date{}},
		{"timestamp", DateTime{}},
		{"timestamptz", DateTime{Timezone: true}},
		{"text", AutoString{}},
		{"blob", LargeBinary{}},
		{"uuid", UUID{}},
		{"jsonb", JSON{}},
		{"varchar(20)", String{Length: 20}},
		{"string(64)", String{Length: 64}},
		{"binary", Binary{}},
		{"binary(16)", Binary{Length: 16}},
		{"decimal", Decimal{}},
		{"numeric(10)", Decimal{Precision: 10}},
		{"decimal(10, 2)", Decimal{Precision: 10, Scale: 2}},
	} {
		got, err := Parse(c.text)
		require.NoError(t, err, c.text)
		assert.Equal(t, c.want, got, c.text)
	}

	for _, text := range []string{"varchar", "decimal(1,2,3)", "binary(1,2)", "string(x)", "varchar(10", "geometry"} {
		_, err := Parse(text)
		assert.Error(t, err, text)
	}
}

func TestNullability(t *testing.T) {
	assert.Equal(t, NullTrue, Explicit(true))
	assert.Equal(t, NullFalse, Explicit(false))
	assert.Equal(t, "unset", NullUnset.String())
	assert.Equal(t, "type derived", NullTypeDerived.String())
	assert.True(t, Declined().IsDeclined())
	assert.False(t, Mapped(Integer{}).IsDeclined())
}
