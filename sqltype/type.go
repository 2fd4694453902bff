package sqltype

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Type 存储列类型
type Type interface {
	// Name 类型名，同时作为 tag 中 type= 的取值
	Name() string
	String() string
}

type Boolean struct{}

// Binary 定长二进制，Length 为 0 时不指定长度
type Binary struct {
	Length int
}

// LargeBinary 不限长度的二进制
type LargeBinary struct{}

type DateTime struct {
	Timezone bool
}

// Decimal 定点小数，Precision 为 0 时使用数据库默认精度
type Decimal struct {
	Precision int
	Scale     int
}

type Date struct{}

// Enum 枚举列，TypeName 为 Go 枚举类型名，Values 为全部成员
type Enum struct {
	TypeName string
	Values   []string
}

type Float struct{}

type Integer struct{}

// String 定长上限字符串
type String struct {
	Length int
}

// AutoString 未指定长度的字符串，由方言决定具体列类型
type AutoString struct{}

type UUID struct{}

// JSON 以 JSON 形式存储的列，内置规则不会产生，供 Hook 映射结构体、列表等类型
type JSON struct{}

func (Boolean) Name() string     { return "boolean" }
func (Binary) Name() string      { return "binary" }
func (LargeBinary) Name() string { return "blob" }
func (DateTime) Name() string    { return "datetime" }
func (Decimal) Name() string     { return "decimal" }
func (Date) Name() string        { return "date" }
func (Enum) Name() string        { return "enum" }
func (Float) Name() string       { return "float" }
func (Integer) Name() string     { return "integer" }
func (String) Name() string      { return "string" }
func (AutoString) Name() string  { return "text" }
func (UUID) Name() string        { return "uuid" }
func (JSON) Name() string        { return "json" }

func (Boolean) String() string { return "BOOLEAN" }

func (t Binary) String() string {
	if t.Length > 0 {
		return fmt.Sprintf("BINARY(%d)", t.Length)
	}
	return "BINARY"
}

func (LargeBinary) String() string { return "BLOB" }

func (t DateTime) String() string {
	if t.Timezone {
		return "DATETIME(TZ)"
	}
	return "DATETIME"
}

func (t Decimal) String() string {
	if t.Precision > 0 {
		return fmt.Sprintf("DECIMAL(%d,%d)", t.Precision, t.Scale)
	}
	return "DECIMAL"
}

func (Date) String() string { return "DATE" }

func (t Enum) String() string {
	return fmt.Sprintf("ENUM(%s)", strings.Join(t.Values, ","))
}

func (Float) String() string   { return "FLOAT" }
func (Integer) String() string { return "INTEGER" }

func (t String) String() string {
	return fmt.Sprintf("VARCHAR(%d)", t.Length)
}

func (AutoString) String() string { return "TEXT" }
func (UUID) String() string       { return "UUID" }
func (JSON) String() string       { return "JSON" }

// Parse 解析 tag 中的类型名，支持带参数的形式，例如 string(20)、decimal(10,2)、binary(16)
func Parse(text string) (Type, error) {
	text = strings.ToLower(strings.TrimSpace(text))
	name, args, err := splitArgs(text)
	if err != nil {
		return nil, err
	}

	switch name {
	case "boolean", "bool":
		return Boolean{}, nil
	case "integer", "int", "bigint":
		return Integer{}, nil
	case "float", "double", "real":
		return Float{}, nil
	case "date":
		return Date{}, nil
	case "datetime", "timestamp":
		return DateTime{}, nil
	case "datetimetz", "timestamptz":
		return DateTime{Timezone: true}, nil
	case "text", "autostring":
		return AutoString{}, nil
	case "blob", "largebinary":
		return LargeBinary{}, nil
	case "uuid":
		return UUID{}, nil
	case "json", "jsonb":
		return JSON{}, nil
	case "string", "varchar":
		if len(args) != 1 {
			return nil, errors.Errorf("type %q requires a length", text)
		}
		return String{Length: args[0]}, nil
	case "binary":
		if len(args) > 1 {
			return nil, errors.Errorf("type %q accepts at most one argument", text)
		}
		if len(args) == 1 {
			return Binary{Length: args[0]}, nil
		}
		return Binary{}, nil
	case "decimal", "numeric":
		switch len(args) {
		case 0:
			return Decimal{}, nil
		case 1:
			return Decimal{Precision: args[0]}, nil
		case 2:
			return Decimal{Precision: args[0], Scale: args[1]}, nil
		}
		return nil, errors.Errorf("type %q accepts at most two arguments", text)
	}
	return nil, errors.Errorf("unknown storage type %q", text)
}

func splitArgs(text string) (string, []int, error) {
	open := strings.IndexByte(text, '(')
	if open < 0 {
		return text, nil, nil
	}
	if !strings.HasSuffix(text, ")") {
		return "", nil, errors.Errorf("malformed storage type %q", text)
	}
	var args []int
	for _, part := range strings.Split(text[open+1:len(text)-1], ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return "", nil, errors.Errorf("malformed storage type argument %q in %q", part, text)
		}
		args = append(args, n)
	}
	return text[:open], args, nil
}
