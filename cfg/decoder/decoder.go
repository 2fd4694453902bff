package decoder

import (
	"path/filepath"
	"strings"

	"github.com/hatlonely/sqltable/cfg/storage"
	"github.com/pkg/errors"
)

// Decoder 将原始配置数据解码为存储对象
type Decoder interface {
	Decode(data []byte) (storage.Storage, error)
}

// NewDecoder 按格式名创建解码器，格式名也可以是文件扩展名
func NewDecoder(format string) (Decoder, error) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "json":
		return NewJsonDecoder(), nil
	case "yaml", "yml":
		return NewYamlDecoder(), nil
	case "toml":
		return NewTomlDecoder(), nil
	case "ini":
		return NewIniDecoder(), nil
	}
	return nil, errors.Errorf("unsupported config format: %q", format)
}

// NewDecoderForFile 按文件扩展名创建解码器
func NewDecoderForFile(filename string) (Decoder, error) {
	return NewDecoder(filepath.Ext(filename))
}
