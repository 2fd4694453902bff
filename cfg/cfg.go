package cfg

import (
	"os"

	"github.com/hatlonely/sqltable/cfg/decoder"
	"github.com/hatlonely/sqltable/cfg/storage"
	"github.com/hatlonely/sqltable/cfg/validator"
	"github.com/pkg/errors"
)

// Load 读取配置文件并绑定到 object，格式由扩展名决定（json/yaml/yml/toml/ini）
// key 为空时绑定整个文件，否则绑定 key 对应的子配置
func Load(filename string, key string, object any) error {
	dec, err := decoder.NewDecoderForFile(filename)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.Wrapf(err, "read config %s failed", filename)
	}
	return unmarshal(dec, data, key, object)
}

// Unmarshal 按指定格式解码配置数据并绑定到 object
func Unmarshal(format string, data []byte, key string, object any) error {
	dec, err := decoder.NewDecoder(format)
	if err != nil {
		return err
	}
	return unmarshal(dec, data, key, object)
}

func unmarshal(dec decoder.Decoder, data []byte, key string, object any) error {
	s, err := dec.Decode(data)
	if err != nil {
		return err
	}
	return Bind(s.Sub(key), object)
}

// Bind 将存储中的配置绑定到 object，然后填充默认值并校验
func Bind(s storage.Storage, object any) error {
	if err := s.ConvertTo(object); err != nil {
		return errors.WithMessage(err, "convert config failed")
	}
	if err := SetDefaults(object); err != nil {
		return errors.WithMessage(err, "set defaults failed")
	}
	if err := validator.ValidateStruct(object); err != nil {
		return errors.Wrap(err, "validate config failed")
	}
	return nil
}
