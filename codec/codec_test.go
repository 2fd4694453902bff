package codec

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hatlonely/sqltable/orm"
	"github.com/hatlonely/sqltable/types"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"go.mongodb.org/mongo-driver/bson"
)

type Item struct {
	ID    orm.Mapped[int64] `json:"id"`
	Name  string            `json:"name" validate:"max=5"`
	Price decimal.Decimal   `json:"price"`
	Token uuid.UUID         `json:"token"`
	Day   types.Date        `json:"day"`
	Tags  []string          `json:"tags"`
	Extra any               `json:"extra"`
}

type pair struct {
	B int `json:"b"`
	A int `json:"a"`
}

type profile struct {
	UserName string
	Age      int
}

type account struct {
	AccountID  int64
	HTTPServer string
}

type nested struct {
	Extra any `json:"extra"`
}

type attributed struct {
	Attrs map[string]any `json:"attrs"`
	List  []any          `json:"list"`
	Inner *nested        `json:"inner"`
}

type priced struct {
	Price decimal.Decimal `json:"price"`
	Token uuid.UUID       `json:"token"`
}

func newItem() Item {
	return Item{
		ID:    orm.Of(int64(7)),
		Name:  "pen",
		Price: decimal.RequireFromString("9.99"),
		Token: uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		Day:   types.DateOf(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)),
		Tags:  []string{"a", "b"},
		Extra: "note",
	}
}

func TestRoundTrip(t *testing.T) {
	for _, format := range []string{FormatJSON, FormatMsgPack, FormatBSON} {
		t.Run(format, func(t *testing.T) {
			c, err := New[Item](&Options{Format: format, Strict: true, Validate: true})
			require.NoError(t, err)
			assert.Equal(t, format, c.Format())

			in := newItem()
			buf, err := c.Encode(in)
			require.NoError(t, err)

			out, err := c.Decode(buf)
			require.NoError(t, err)
			assert.Equal(t, in.ID.V, out.ID.V)
			assert.Equal(t, in.Name, out.Name)
			assert.True(t, in.Price.Equal(out.Price), out.Price.String())
			assert.Equal(t, in.Token, out.Token)
			assert.Equal(t, in.Day, out.Day)
			assert.Equal(t, in.Tags, out.Tags)
			assert.Equal(t, "note", out.Extra)

			many, err := c.EncodeMany([]Item{in, in})
			require.NoError(t, err)
			items, err := c.DecodeMany(many)
			require.NoError(t, err)
			require.Len(t, items, 2)
			assert.Equal(t, in.Name, items[1].Name)
			assert.Equal(t, in.ID.V, items[1].ID.V)
		})
	}
}

func TestCodec(t *testing.T) {
	Convey("测试 Codec", t, func() {
		Convey("默认按声明顺序输出", func() {
			c, err := New[pair](nil)
			So(err, ShouldBeNil)
			buf, err := c.Encode(pair{B: 1, A: 2})
			So(err, ShouldBeNil)
			So(string(buf), ShouldEqual, `{"b":1,"a":2}`)
		})

		Convey("按字段名排序", func() {
			c, err := New[pair](&Options{Order: OrderSorted})
			So(err, ShouldBeNil)
			buf, err := c.Encode(pair{B: 1, A: 2})
			So(err, ShouldBeNil)
			So(string(buf), ShouldEqual, `{"a":2,"b":1}`)
		})

		Convey("字段命名规则", func() {
			c, err := New[profile](&Options{Rename: "snake"})
			So(err, ShouldBeNil)
			buf, err := c.Encode(profile{UserName: "bob", Age: 3})
			So(err, ShouldBeNil)
			So(string(buf), ShouldEqual, `{"user_name":"bob","age":3}`)

			c, err = New[profile](&Options{Rename: "camel"})
			So(err, ShouldBeNil)
			buf, err = c.Encode(profile{UserName: "bob", Age: 3})
			So(err, ShouldBeNil)
			So(string(buf), ShouldEqual, `{"userName":"bob","age":3}`)
		})

		Convey("JSON 严格模式拒绝未知字段", func() {
			c, err := New[pair](&Options{Strict: true})
			So(err, ShouldBeNil)
			_, err = c.Decode([]byte(`{"a":1,"zzz":2}`))
			So(errors.Is(err, ErrUnknownField), ShouldBeTrue)

			_, err = c.DecodeMany([]byte(`[{"a":1},{"zzz":2}]`))
			So(errors.Is(err, ErrUnknownField), ShouldBeTrue)

			lenient, err := New[pair](nil)
			So(err, ShouldBeNil)
			v, err := lenient.Decode([]byte(`{"a":1,"zzz":2}`))
			So(err, ShouldBeNil)
			So(v.A, ShouldEqual, 1)
		})

		Convey("msgpack 严格模式拒绝未知字段", func() {
			buf, err := msgpack.Marshal(map[string]any{"a": 1, "zzz": 2})
			So(err, ShouldBeNil)

			c, err := New[pair](&Options{Format: FormatMsgPack, Strict: true})
			So(err, ShouldBeNil)
			_, err = c.Decode(buf)
			So(errors.Is(err, ErrUnknownField), ShouldBeTrue)

			lenient, err := New[pair](&Options{Format: FormatMsgPack})
			So(err, ShouldBeNil)
			v, err := lenient.Decode(buf)
			So(err, ShouldBeNil)
			So(v.A, ShouldEqual, 1)
		})

		Convey("BSON 严格模式拒绝未知字段", func() {
			c, err := New[pair](&Options{Format: FormatBSON, Strict: true})
			So(err, ShouldBeNil)

			buf, err := bson.Marshal(bson.D{{Key: "a", Value: 1}, {Key: "zzz", Value: 2}})
			So(err, ShouldBeNil)
			_, err = c.Decode(buf)
			So(errors.Is(err, ErrUnknownField), ShouldBeTrue)

			buf, err = bson.Marshal(bson.D{{Key: "items", Value: bson.A{bson.D{{Key: "zzz", Value: 1}}}}})
			So(err, ShouldBeNil)
			_, err = c.DecodeMany(buf)
			So(errors.Is(err, ErrUnknownField), ShouldBeTrue)
		})

		Convey("定点小数输出为数字，UUID 输出为十六进制", func() {
			c, err := New[priced](&Options{DecimalFormat: "number", UUIDFormat: "hex"})
			So(err, ShouldBeNil)
			in := priced{
				Price: decimal.RequireFromString("9.99"),
				Token: uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
			}
			buf, err := c.Encode(in)
			So(err, ShouldBeNil)
			So(string(buf), ShouldEqual, `{"price":9.99,"token":"6ba7b8109dad11d180b400c04fd430c8"}`)

			out, err := c.Decode(buf)
			So(err, ShouldBeNil)
			So(out.Price.Equal(in.Price), ShouldBeTrue)
			So(out.Token, ShouldEqual, in.Token)
		})

		Convey("解码后校验", func() {
			c, err := New[Item](&Options{Validate: true})
			So(err, ShouldBeNil)
			_, err = c.Decode([]byte(`{"name":"too long name"}`))
			So(errors.Is(err, ErrValidation), ShouldBeTrue)

			c, err = New[Item](nil)
			So(err, ShouldBeNil)
			_, err = c.Decode([]byte(`{"name":"too long name"}`))
			So(err, ShouldBeNil)
		})

		Convey("EncHook 转换 interface 字段中的值", func() {
			c, err := New[Item](&Options{EncHook: func(v any) (any, error) {
				if z, ok := v.(complex128); ok {
					return fmt.Sprintf("%g", z), nil
				}
				return v, nil
			}})
			So(err, ShouldBeNil)

			item := newItem()
			item.Extra = complex(1, 2)
			_, err = c.Encode(item)
			So(err, ShouldBeNil)

			plain, err := New[Item](nil)
			So(err, ShouldBeNil)
			_, err = plain.Encode(item)
			So(err, ShouldNotBeNil)
		})

		Convey("FloatHook 解析 interface 字段中的浮点数", func() {
			c, err := New[Item](&Options{FloatHook: func(s string) (any, error) {
				return decimal.NewFromString(s)
			}})
			So(err, ShouldBeNil)
			out, err := c.Decode([]byte(`{"extra":{"a":1.5,"b":[2, 2.25]}}`))
			So(err, ShouldBeNil)

			extra := out.Extra.(map[string]any)
			So(extra["a"].(decimal.Decimal).String(), ShouldEqual, "1.5")
			list := extra["b"].([]any)
			So(list[0], ShouldEqual, int64(2))
			So(list[1].(decimal.Decimal).String(), ShouldEqual, "2.25")
		})

		Convey("FloatHook 解析 map 和切片字段中的浮点数", func() {
			c, err := New[attributed](&Options{FloatHook: func(s string) (any, error) {
				return decimal.NewFromString(s)
			}})
			So(err, ShouldBeNil)
			out, err := c.Decode([]byte(`{"attrs":{"a":1.5,"b":2,"c":{"d":0.25}},"list":[3,4.75],"inner":{"extra":[0.5]}}`))
			So(err, ShouldBeNil)

			So(out.Attrs["a"].(decimal.Decimal).String(), ShouldEqual, "1.5")
			So(out.Attrs["b"], ShouldEqual, int64(2))
			So(out.Attrs["c"].(map[string]any)["d"].(decimal.Decimal).String(), ShouldEqual, "0.25")
			So(out.List[0], ShouldEqual, int64(3))
			So(out.List[1].(decimal.Decimal).String(), ShouldEqual, "4.75")
			So(out.Inner.Extra.([]any)[0].(decimal.Decimal).String(), ShouldEqual, "0.5")

			many, err := c.DecodeMany([]byte(`[{"attrs":{"a":1.5}},{"list":[0.5]}]`))
			So(err, ShouldBeNil)
			So(many[0].Attrs["a"].(decimal.Decimal).String(), ShouldEqual, "1.5")
			So(many[1].List[0].(decimal.Decimal).String(), ShouldEqual, "0.5")
		})

		Convey("结构体指针", func() {
			c, err := New[*pair](nil)
			So(err, ShouldBeNil)
			buf, err := c.Encode(&pair{B: 1, A: 2})
			So(err, ShouldBeNil)
			So(string(buf), ShouldEqual, `{"b":1,"a":2}`)

			out, err := c.Decode(buf)
			So(err, ShouldBeNil)
			So(out, ShouldResemble, &pair{B: 1, A: 2})

			buf, err = c.EncodeMany([]*pair{{B: 1}, {A: 2}})
			So(err, ShouldBeNil)
			items, err := c.DecodeMany(buf)
			So(err, ShouldBeNil)
			So(items, ShouldResemble, []*pair{{B: 1}, {A: 2}})
			So(items[0], ShouldNotPointTo, items[1])

			_, err = c.Encode(nil)
			So(err, ShouldNotBeNil)
		})

		Convey("命名规则把常见缩写当作一个词", func() {
			in := account{AccountID: 1, HTTPServer: "x"}
			for rename, expected := range map[string]string{
				"snake": `{"account_id":1,"http_server":"x"}`,
				"kebab": `{"account-id":1,"http-server":"x"}`,
				"camel": `{"accountId":1,"httpServer":"x"}`,
			} {
				c, err := New[account](&Options{Rename: rename})
				So(err, ShouldBeNil)
				buf, err := c.Encode(in)
				So(err, ShouldBeNil)
				So(string(buf), ShouldEqual, expected)

				out, err := c.Decode(buf)
				So(err, ShouldBeNil)
				So(out, ShouldResemble, in)
			}
			So(SnakeCase("EmployeeID"), ShouldEqual, "employee_id")
			So(SnakeCase("UserName"), ShouldEqual, "user_name")
		})

		Convey("非法配置", func() {
			_, err := New[pair](&Options{Format: "xml"})
			So(err, ShouldNotBeNil)
			_, err = New[pair](&Options{Rename: "upper"})
			So(err, ShouldNotBeNil)
			_, err = New[int](nil)
			So(err, ShouldNotBeNil)
			_, err = New[**pair](nil)
			So(err, ShouldNotBeNil)
		})
	})
}
