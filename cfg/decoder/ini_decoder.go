package decoder

import (
	"strconv"
	"strings"

	"github.com/hatlonely/sqltable/cfg/storage"
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
)

// IniDecoder INI 解码器，section 名中的点号表示嵌套，如 [logger.output]
type IniDecoder struct {
	AllowBoolKeys bool
	AllowShadows  bool
}

func NewIniDecoder() *IniDecoder {
	return &IniDecoder{
		AllowBoolKeys: true,
		AllowShadows:  true,
	}
}

func (i *IniDecoder) Decode(data []byte) (storage.Storage, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		AllowBooleanKeys:         i.AllowBoolKeys,
		AllowShadows:             i.AllowShadows,
		SpaceBeforeInlineComment: true,
	}, data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode INI")
	}

	result := map[string]any{}
	for _, section := range file.Sections() {
		current := result
		if name := section.Name(); name != ini.DefaultSection {
			for _, part := range strings.Split(name, ".") {
				next, ok := current[part].(map[string]any)
				if !ok {
					next = map[string]any{}
					current[part] = next
				}
				current = next
			}
		}
		for _, key := range section.Keys() {
			current[key.Name()] = i.parseValue(key)
		}
	}
	return storage.NewMapStorage(result), nil
}

func (i *IniDecoder) parseValue(key *ini.Key) any {
	if i.AllowShadows {
		if values := key.ValueWithShadows(); len(values) > 1 {
			result := make([]any, len(values))
			for idx, v := range values {
				result[idx] = parseScalar(v)
			}
			return result
		}
	}
	return parseScalar(key.String())
}

func parseScalar(value string) any {
	switch strings.ToLower(value) {
	case "true":
		return true
	case "false":
		return false
	}
	if v, err := strconv.ParseInt(value, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(value, 64); err == nil {
		return v
	}
	return value
}
