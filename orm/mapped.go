package orm

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Mapped 参与存储映射的字段，列类型由 T 推导，编解码时等同于 T
//
//	type User struct {
//		ID   orm.Mapped[int64]   `sqltable:"pk"`
//		Name orm.Mapped[*string] `validate:"max=32"`
//	}
type Mapped[T any] struct {
	V T
}

// Of 包装一个值
func Of[T any](v T) Mapped[T] {
	return Mapped[T]{V: v}
}

// WrappedType 实现 inspect.Wrapper
func (Mapped[T]) WrappedType() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func (Mapped[T]) mapped() {}

func (m Mapped[T]) Get() T {
	return m.V
}

func (m *Mapped[T]) Set(v T) {
	m.V = v
}

func (m Mapped[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.V)
}

func (m *Mapped[T]) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &m.V)
}

func (m Mapped[T]) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(m.V)
}

func (m *Mapped[T]) DecodeMsgpack(dec *msgpack.Decoder) error {
	return dec.Decode(&m.V)
}

func (m Mapped[T]) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(m.V)
}

func (m *Mapped[T]) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	return bson.UnmarshalValue(t, data, &m.V)
}

// Value 实现 driver.Valuer
func (m Mapped[T]) Value() (driver.Value, error) {
	return driver.DefaultParameterConverter.ConvertValue(m.V)
}

// Scan 实现 sql.Scanner，NULL 扫描为零值
func (m *Mapped[T]) Scan(src any) error {
	var n sql.Null[T]
	if err := n.Scan(src); err != nil {
		return err
	}
	m.V = n.V
	return nil
}

// mappedField 用于识别 Mapped 字段，取值和赋值都通过字段 V
type mappedField interface {
	WrappedType() reflect.Type
	mapped()
}

var mappedFieldType = reflect.TypeOf((*mappedField)(nil)).Elem()

// IsMapped 判断类型是否为 Mapped[T]
func IsMapped(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && t.Implements(mappedFieldType)
}
