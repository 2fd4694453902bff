package schema

import (
	"strconv"
	"strings"

	"github.com/hatlonely/sqltable/inspect"
	"github.com/hatlonely/sqltable/sqltype"
	"github.com/pkg/errors"
)

// TagKey 结构体 tag 的键
//
//	type User struct {
//		ID    int64   `sqltable:"pk"`
//		Name  string  `sqltable:"size=64,index,comment='user name'"`
//		Team  int64   `sqltable:"fk=teams.id,null"`
//		Price decimal.Decimal `sqltable:"precision=10,scale=2"`
//		Notes string  `sqltable:"-"`
//	}
const TagKey = "sqltable"

// ParseTag 解析 sqltable tag，只含约束（size/tz/precision/scale）的 tag 不产生指令
func ParseTag(tag string) (inspect.Meta, bool, error) {
	tag = strings.TrimSpace(tag)
	if tag == "-" {
		return inspect.Meta{}, true, nil
	}

	parts, err := splitTag(tag)
	if err != nil {
		return inspect.Meta{}, false, err
	}

	var (
		meta      inspect.Meta
		col       ColumnDirective
		rel       *RelationshipDirective
		hasColumn bool
	)
	for _, part := range parts {
		key, value, hasValue := strings.Cut(part, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "pk", "primary", "primary_key":
			col.PrimaryKey = true
			hasColumn = true
		case "fk", "foreign_key":
			if value == "" {
				return inspect.Meta{}, false, errors.Errorf("%s requires a target", key)
			}
			col.ForeignKey = value
			hasColumn = true
		case "unique":
			col.Unique = true
			hasColumn = true
		case "index":
			col.Index = true
			hasColumn = true
		case "null", "nullable":
			switch {
			case !hasValue || value == "true":
				col.Nullable = sqltype.NullTrue
			case value == "false":
				col.Nullable = sqltype.NullFalse
			case value == "auto":
				col.Nullable = sqltype.NullTypeDerived
			default:
				return inspect.Meta{}, false, errors.Errorf("invalid %s %q", key, value)
			}
			hasColumn = true
		case "notnull", "not_null", "required":
			col.Nullable = sqltype.NullFalse
			hasColumn = true
		case "type":
			t, err := sqltype.Parse(value)
			if err != nil {
				return inspect.Meta{}, false, err
			}
			col.Type = t
			hasColumn = true
		case "default":
			col.Kwargs = setKwarg(col.Kwargs, KwDefault, literal(value))
			hasColumn = true
		case "comment":
			col.Kwargs = setKwarg(col.Kwargs, KwComment, unquote(value))
			hasColumn = true
		case "check":
			col.Args = append(col.Args, &CheckConstraint{Expr: unquote(value)})
			hasColumn = true
		case "size", "max":
			n, err := positive(key, value)
			if err != nil {
				return inspect.Meta{}, false, err
			}
			meta.MaxLength = n
		case "tz":
			tz := !hasValue || value == "true"
			meta.TZ = &tz
		case "precision":
			n, err := positive(key, value)
			if err != nil {
				return inspect.Meta{}, false, err
			}
			meta.Precision = n
		case "scale":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return inspect.Meta{}, false, errors.Errorf("invalid scale %q", value)
			}
			meta.Scale = n
		case "rel", "back_populates":
			rel = &RelationshipDirective{BackPopulates: value}
		default:
			return inspect.Meta{}, false, errors.Errorf("unknown option %q", key)
		}
	}

	switch {
	case rel != nil && hasColumn:
		return inspect.Meta{}, false, errors.New("rel cannot be combined with column options")
	case rel != nil:
		return withDirective(meta, *rel), false, nil
	case hasColumn:
		return withDirective(meta, col), false, nil
	}
	return meta, false, nil
}

// splitTag 按逗号切分，括号和单引号内的逗号不切分
func splitTag(tag string) ([]string, error) {
	var (
		parts   []string
		depth   int
		quoted  bool
		current strings.Builder
	)
	for _, r := range tag {
		switch {
		case r == '\'':
			quoted = !quoted
		case quoted:
		case r == '(':
			depth++
		case r == ')':
			depth--
			if depth < 0 {
				return nil, errors.Errorf("unbalanced parenthesis in %q", tag)
			}
		case r == ',' && depth == 0:
			if s := strings.TrimSpace(current.String()); s != "" {
				parts = append(parts, s)
			}
			current.Reset()
			continue
		}
		current.WriteRune(r)
	}
	if quoted || depth != 0 {
		return nil, errors.Errorf("unterminated quote or parenthesis in %q", tag)
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		parts = append(parts, s)
	}
	return parts, nil
}

func setKwarg(kwargs map[string]any, key string, value any) map[string]any {
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	kwargs[key] = value
	return kwargs
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return s[1 : len(s)-1]
	}
	return s
}

// literal 默认值：带引号的是字符串，其余按 true/false、整数、浮点数的顺序解析
func literal(s string) any {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return s[1 : len(s)-1]
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func positive(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, errors.Errorf("invalid %s %q", key, value)
	}
	return n, nil
}
