package decoder

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/hatlonely/sqltable/cfg/storage"
	"github.com/pkg/errors"
)

// JsonDecoder JSON 解码器，默认允许注释和尾随逗号
type JsonDecoder struct {
	UseJSON5 bool
}

func NewJsonDecoder() *JsonDecoder {
	return &JsonDecoder{UseJSON5: true}
}

var trailingCommaRegex = regexp.MustCompile(`,(\s*[}\]])`)

func (j *JsonDecoder) Decode(data []byte) (storage.Storage, error) {
	if j.UseJSON5 {
		data = []byte(trailingCommaRegex.ReplaceAllString(removeComments(string(data)), "$1"))
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, errors.Wrap(err, "failed to decode JSON")
	}
	return storage.NewMapStorage(result), nil
}

// removeComments 移除字符串之外的 // 和 /* */ 注释
func removeComments(content string) string {
	var buf strings.Builder
	inString, escaped := false, false
	for i := 0; i < len(content); i++ {
		c := content[i]
		if inString {
			buf.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch {
		case c == '"':
			inString = true
		case c == '/' && i+1 < len(content) && content[i+1] == '/':
			for i < len(content) && content[i] != '\n' {
				i++
			}
			if i < len(content) {
				buf.WriteByte('\n')
			}
			continue
		case c == '/' && i+1 < len(content) && content[i+1] == '*':
			end := strings.Index(content[i+2:], "*/")
			if end < 0 {
				return buf.String()
			}
			i += end + 3
			continue
		}
		buf.WriteByte(c)
	}
	return buf.String()
}
