package codec

import (
	"encoding/hex"
	"reflect"

	"github.com/google/uuid"
	"github.com/hatlonely/sqltable/types"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// numberDecimal JSON 中以数字输出的定点小数，解码时数字和字符串都接受
type numberDecimal decimal.Decimal

func (d numberDecimal) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(d).String()), nil
}

func (d *numberDecimal) UnmarshalJSON(data []byte) error {
	var v decimal.Decimal
	if err := v.UnmarshalJSON(data); err != nil {
		return err
	}
	*d = numberDecimal(v)
	return nil
}

// hexUUID 不带连字符的 32 位十六进制 UUID
type hexUUID uuid.UUID

func (u hexUUID) MarshalText() ([]byte, error) {
	buf := make([]byte, hex.EncodedLen(len(u)))
	hex.Encode(buf, u[:])
	return buf, nil
}

func (u *hexUUID) UnmarshalText(data []byte) error {
	v, err := uuid.ParseBytes(data)
	if err != nil {
		return err
	}
	*u = hexUUID(v)
	return nil
}

// bsonDecimal BSON 中以 Decimal128 存储的定点小数
type bsonDecimal decimal.Decimal

func (d bsonDecimal) MarshalBSONValue() (bsontype.Type, []byte, error) {
	v, err := primitive.ParseDecimal128(decimal.Decimal(d).String())
	if err != nil {
		return 0, nil, errors.Wrapf(err, "decimal %s out of range", decimal.Decimal(d))
	}
	return bson.MarshalValue(v)
}

func (d *bsonDecimal) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	var text string
	switch t {
	case bsontype.Decimal128:
		var v primitive.Decimal128
		if err := bson.UnmarshalValue(t, data, &v); err != nil {
			return err
		}
		text = v.String()
	case bsontype.String:
		if err := bson.UnmarshalValue(t, data, &text); err != nil {
			return err
		}
	default:
		return errors.Errorf("cannot decode bson %s into decimal", t)
	}
	v, err := decimal.NewFromString(text)
	if err != nil {
		return err
	}
	*d = bsonDecimal(v)
	return nil
}

// bsonUUID BSON 中以 binary subtype 4 存储的 UUID
type bsonUUID uuid.UUID

func (u bsonUUID) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(primitive.Binary{Subtype: bsontype.BinaryUUID, Data: u[:]})
}

func (u *bsonUUID) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	var bin primitive.Binary
	if err := bson.UnmarshalValue(t, data, &bin); err != nil {
		return err
	}
	v, err := uuid.FromBytes(bin.Data)
	if err != nil {
		return err
	}
	*u = bsonUUID(v)
	return nil
}

// bsonDate BSON 中以 "2006-01-02" 字符串存储的日期
type bsonDate types.Date

func (d bsonDate) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(types.Date(d).String())
}

func (d *bsonDate) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	var text string
	if err := bson.UnmarshalValue(t, data, &text); err != nil {
		return err
	}
	v, err := types.ParseDate(text)
	if err != nil {
		return err
	}
	*d = bsonDate(v)
	return nil
}

var (
	decimalType = reflect.TypeOf(decimal.Decimal{})
	uuidType    = reflect.TypeOf(uuid.UUID{})
	dateType    = reflect.TypeOf(types.Date{})
)
