package schema

import (
	"reflect"
	"testing"

	"github.com/hatlonely/sqltable/inspect"
	"github.com/hatlonely/sqltable/sqltype"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Parent struct {
	ID       int64    `sqltable:"pk"`
	Name     *string  `validate:"max=10"`
	Children []*Child `sqltable:"rel=parent"`
}

type Child struct {
	ID       int64 `sqltable:"pk,fk=parent.id"`
	Count    int
	Nickname string `json:"nick" sqltable:"size=32,unique,comment='display name'"`
	Parent   *Parent
	Cache    string `sqltable:"-"`
}

func (Child) FieldAnnotations() map[string][]inspect.Meta {
	return map[string][]inspect.Meta{
		"Parent": {Relationship("children")},
	}
}

type point struct{ X, Y int }

type withCustom struct {
	Location point
}

// tenantID 类型级的列指令，所有使用它的字段都带外键
type tenantID int64

func (tenantID) Annotations() []inspect.Meta {
	return []inspect.Meta{Column(ForeignKey("tenants.id"), Index())}
}

type withTenant struct {
	Tenant tenantID
}

type withShadowed struct {
	Tenant tenantID `sqltable:"unique"`
}

func TestBuild(t *testing.T) {
	Convey("测试 Build 方法", t, func() {
		Convey("普通整数字段生成不可空的整数列", func() {
			s, err := BuildT[Child]()
			So(err, ShouldBeNil)
			e, ok := s.Get("Count")
			So(ok, ShouldBeTrue)
			So(e.IsRelationship(), ShouldBeFalse)
			So(e.Column.Name, ShouldEqual, "Count")
			So(e.Column.Type, ShouldResemble, sqltype.Integer{})
			So(e.Column.Nullable, ShouldBeFalse)
			So(e.Column.PrimaryKey, ShouldBeFalse)
		})

		Convey("带长度的可缺省字符串生成可空的定长字符串列", func() {
			s, err := BuildT[Parent]()
			So(err, ShouldBeNil)
			e, ok := s.Get("Name")
			So(ok, ShouldBeTrue)
			So(e.Column.Type, ShouldResemble, sqltype.String{Length: 10})
			So(e.Column.Nullable, ShouldBeTrue)
		})

		Convey("主键加外键", func() {
			s, err := BuildT[Child]()
			So(err, ShouldBeNil)
			e, _ := s.Get("ID")
			So(e.Column.PrimaryKey, ShouldBeTrue)
			So(e.Column.Nullable, ShouldBeFalse)
			So(e.Column.ForeignKeys(), ShouldResemble, []*ForeignKeyConstraint{{Table: "parent", Column: "id"}})
			So(e.Column.Args[0], ShouldResemble, &ForeignKeyConstraint{Table: "parent", Column: "id"})
		})

		Convey("关联关系不产生列", func() {
			s, err := BuildT[Child]()
			So(err, ShouldBeNil)
			e, ok := s.Get("Parent")
			So(ok, ShouldBeTrue)
			So(e.IsRelationship(), ShouldBeTrue)
			So(e.Column, ShouldBeNil)
			So(e.Relationship.BackPopulates, ShouldEqual, "children")
			So(e.Relationship.Target, ShouldEqual, reflect.TypeOf(Parent{}))

			for _, c := range s.Columns() {
				So(c.Name, ShouldNotEqual, "Parent")
			}

			p, err := BuildT[Parent]()
			So(err, ShouldBeNil)
			So(p.Relationships(), ShouldHaveLength, 1)
			So(p.Relationships()[0].Target, ShouldEqual, reflect.TypeOf(Child{}))
		})

		Convey("Hook 返回非存储类型", func() {
			hook := func(t inspect.Type) sqltype.HookResult {
				if _, ok := t.(inspect.StructType); ok {
					return sqltype.Mapped(map[string]int{"x": 1})
				}
				return sqltype.Declined()
			}
			_, err := BuildT[withCustom](WithHook(hook))
			So(errors.Is(err, sqltype.ErrInvalidHookResult), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "map[string]int")

			var fe *FieldError
			So(errors.As(err, &fe), ShouldBeTrue)
			So(fe.Field, ShouldEqual, "Location")
		})

		Convey("Hook 映射自定义类型", func() {
			hook := func(t inspect.Type) sqltype.HookResult {
				if _, ok := t.(inspect.StructType); ok {
					return sqltype.Mapped(sqltype.JSON{})
				}
				return sqltype.Declined()
			}
			s, err := BuildT[withCustom](WithHook(hook))
			So(err, ShouldBeNil)
			So(s.Columns()[0].Type, ShouldResemble, sqltype.JSON{})
		})

		Convey("没有 Hook 时无法映射", func() {
			_, err := BuildT[withCustom]()
			So(errors.Is(err, sqltype.ErrUnmappableType), ShouldBeTrue)
		})

		Convey("tag 选项", func() {
			s, err := BuildT[Child]()
			So(err, ShouldBeNil)
			So(s.Len(), ShouldEqual, 4)

			_, ok := s.Get("Cache")
			So(ok, ShouldBeFalse)

			e, _ := s.Get("Nickname")
			So(e.Column.Name, ShouldEqual, "nick")
			So(e.Column.Type, ShouldResemble, sqltype.String{Length: 32})
			So(e.Column.Unique, ShouldBeTrue)
			So(e.Column.Comment(), ShouldEqual, "display name")
		})

		Convey("类型级指令", func() {
			s, err := BuildT[withTenant]()
			So(err, ShouldBeNil)
			c := s.Columns()[0]
			So(c.Type, ShouldResemble, sqltype.Integer{})
			So(c.Index, ShouldBeTrue)
			So(c.ForeignKeys()[0].String(), ShouldEqual, "tenants.id")
		})

		Convey("多个指令默认报错", func() {
			_, err := BuildT[withShadowed]()
			So(errors.Is(err, ErrAmbiguousDirective), ShouldBeTrue)
		})

		Convey("允许遮蔽时取最外层指令", func() {
			s, err := BuildT[withShadowed](WithShadowedDirectives())
			So(err, ShouldBeNil)
			c := s.Columns()[0]
			So(c.Unique, ShouldBeTrue)
			So(c.Index, ShouldBeFalse)
			So(c.ForeignKeys(), ShouldBeEmpty)
		})

		Convey("重复构建结果一致", func() {
			a, err := BuildT[Child]()
			So(err, ShouldBeNil)
			b, err := BuildT[Child]()
			So(err, ShouldBeNil)
			So(a.Entries(), ShouldResemble, b.Entries())
		})

		Convey("非结构体", func() {
			_, err := BuildT[int]()
			So(errors.Is(err, inspect.ErrNotStruct), ShouldBeTrue)
		})
	})
}

func TestColumnDirectiveCreate(t *testing.T) {
	derived := sqltype.Resolution{Type: sqltype.Integer{}, Null: sqltype.NullTypeDerived}
	plain := sqltype.Resolution{Type: sqltype.Integer{}}

	for _, c := range []struct {
		name     string
		d        ColumnDirective
		res      sqltype.Resolution
		nullable bool
	}{
		{"默认不可空", ColumnDirective{}, plain, false},
		{"主键不可空", ColumnDirective{PrimaryKey: true, Nullable: sqltype.NullTrue}, derived, false},
		{"类型可缺省则可空", ColumnDirective{Nullable: sqltype.NullFalse}, derived, true},
		{"显式可空", ColumnDirective{Nullable: sqltype.NullTrue}, plain, true},
		{"显式不可空", ColumnDirective{Nullable: sqltype.NullFalse}, plain, false},
		{"由类型决定但类型不可缺省", ColumnDirective{Nullable: sqltype.NullTypeDerived}, plain, false},
		{"显式类型忽略推导结果", ColumnDirective{Type: sqltype.Float{}}, derived, false},
	} {
		col, err := c.d.Create("n", c.res)
		require.NoError(t, err, c.name)
		assert.Equal(t, c.nullable, col.Nullable, c.name)
	}
}

func TestColumnDirectiveKwargs(t *testing.T) {
	d := ColumnDirective{
		PrimaryKey: true,
		ForeignKey: "app.users.id",
		Args:       []any{&CheckConstraint{Expr: "n > 0"}},
		Kwargs: map[string]any{
			KwPrimaryKey: false,
			KwNullable:   true,
			KwDefault:    int64(1),
		},
	}
	col, err := d.Create("n", sqltype.Resolution{Type: sqltype.Integer{}})
	require.NoError(t, err)
	assert.False(t, col.PrimaryKey)
	assert.True(t, col.Nullable)
	assert.Equal(t, []*ForeignKeyConstraint{{Table: "app.users", Column: "id"}}, col.ForeignKeys())
	assert.Equal(t, []*CheckConstraint{{Expr: "n > 0"}}, col.Checks())
	v, ok := col.Default()
	assert.True(t, ok)
	assert.Equal(t, int64(1), v)
	assert.NotContains(t, col.Options, KwNullable)

	_, err = ColumnDirective{Kwargs: map[string]any{KwUnique: "yes"}}.Create("n", sqltype.Resolution{Type: sqltype.Integer{}})
	assert.Error(t, err)

	_, err = ColumnDirective{ForeignKey: "users"}.Create("n", sqltype.Resolution{Type: sqltype.Integer{}})
	assert.Error(t, err)

	_, err = ColumnDirective{}.Create("n", sqltype.Resolution{})
	assert.Error(t, err)
}

func TestParseTag(t *testing.T) {
	meta, skip, err := ParseTag("-")
	require.NoError(t, err)
	assert.True(t, skip)
	assert.Nil(t, meta.Extra)

	meta, skip, err = ParseTag("size=20")
	require.NoError(t, err)
	assert.False(t, skip)
	assert.Equal(t, 20, meta.MaxLength)
	assert.Nil(t, meta.Extra)

	meta, _, err = ParseTag("pk, type=decimal(10,2), default=0.5, check='v >= 0, v < 1', null=auto")
	require.NoError(t, err)
	d, ok := meta.Extra[DirectiveKey].(ColumnDirective)
	require.True(t, ok)
	assert.True(t, d.PrimaryKey)
	assert.Equal(t, sqltype.Decimal{Precision: 10, Scale: 2}, d.Type)
	assert.Equal(t, 0.5, d.Kwargs[KwDefault])
	assert.Equal(t, []any{&CheckConstraint{Expr: "v >= 0, v < 1"}}, d.Args)
	assert.Equal(t, sqltype.NullTypeDerived, d.Nullable)

	meta, _, err = ParseTag("tz,precision=12,scale=4")
	require.NoError(t, err)
	require.NotNil(t, meta.TZ)
	assert.True(t, *meta.TZ)
	assert.Equal(t, 12, meta.Precision)
	assert.Equal(t, 4, meta.Scale)

	meta, _, err = ParseTag("rel=owner")
	require.NoError(t, err)
	assert.Equal(t, RelationshipDirective{BackPopulates: "owner"}, meta.Extra[DirectiveKey])

	meta, _, err = ParseTag("default='it''s',notnull")
	require.NoError(t, err)
	d = meta.Extra[DirectiveKey].(ColumnDirective)
	assert.Equal(t, sqltype.NullFalse, d.Nullable)

	for _, tag := range []string{"rel=owner,pk", "bogus", "size=0", "type=geometry", "fk", "null=maybe", "check='open", "type=decimal(10,2"} {
		_, _, err := ParseTag(tag)
		assert.Error(t, err, tag)
	}
}

func TestResolve(t *testing.T) {
	field := inspect.Field{
		FieldInfo: inspect.FieldInfo{Name: "Value", EncodeName: "value"},
		Type: &inspect.Metadata{
			Type:  inspect.StrType{MaxLength: 5},
			Extra: map[string]any{DirectiveKey: "not a directive"},
		},
	}
	_, err := Resolve(field)
	assert.True(t, errors.Is(err, ErrInvalidDirective))

	field.Type = &inspect.Metadata{
		Type:  inspect.UnionType{Types: []inspect.Type{inspect.StrType{MaxLength: 5}}, IncludesNone: true},
		Extra: map[string]any{DirectiveKey: &ColumnDirective{Index: true}},
	}
	entry, err := Resolve(field)
	require.NoError(t, err)
	assert.Equal(t, "Value", entry.Field)
	assert.Equal(t, "value", entry.Column.Name)
	assert.Equal(t, sqltype.String{Length: 5}, entry.Column.Type)
	assert.True(t, entry.Column.Nullable)
	assert.True(t, entry.Column.Index)
}
