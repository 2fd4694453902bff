package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type outputOptions struct {
	Type string `cfg:"type" def:"console" validate:"oneof=console file"`
	Path string `cfg:"path"`
}

type serviceOptions struct {
	Name    string         `cfg:"name" validate:"required"`
	Dialect string         `cfg:"dialect" def:"sqlite3" validate:"oneof=sqlite3 mysql postgres"`
	Workers int            `cfg:"workers" def:"4"`
	Timeout time.Duration  `cfg:"timeout" def:"3s"`
	Tags    []string       `cfg:"tags"`
	Output  *outputOptions `cfg:"output"`
	Hook    func()         `cfg:"-"`
}

func writeFile(t *testing.T, name string, content string) string {
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	Convey("测试 Load", t, func() {
		files := map[string]string{
			"service.yaml": `
service:
  name: orders
  dialect: mysql
  timeout: 5s
  tags: [a, b]
  output:
    path: /tmp/app.log
`,
			"service.json": `{
  // 注释
  "service": {
    "name": "orders",
    "dialect": "mysql",
    "timeout": "5s",
    "tags": ["a", "b"],
    "output": {"path": "/tmp/app.log"}, /* 尾随逗号 */
  }
}`,
			"service.toml": `
[service]
name = "orders"
dialect = "mysql"
timeout = "5s"
tags = ["a", "b"]

[service.output]
path = "/tmp/app.log"
`,
			"service.ini": `
[service]
name = orders
dialect = mysql
timeout = 5s
tags = a
tags = b

[service.output]
path = /tmp/app.log
`,
		}

		for name, content := range files {
			path := writeFile(t, name, content)

			var options serviceOptions
			So(Load(path, "service", &options), ShouldBeNil)
			So(options.Name, ShouldEqual, "orders")
			So(options.Dialect, ShouldEqual, "mysql")
			So(options.Workers, ShouldEqual, 4)
			So(options.Timeout, ShouldEqual, 5*time.Second)
			So(options.Tags, ShouldResemble, []string{"a", "b"})
			So(options.Output, ShouldNotBeNil)
			So(options.Output.Type, ShouldEqual, "console")
			So(options.Output.Path, ShouldEqual, "/tmp/app.log")
		}
	})

	Convey("测试加载失败", t, func() {
		var options serviceOptions
		So(Load(writeFile(t, "service.xml", "<a/>"), "", &options), ShouldNotBeNil)
		So(Load(filepath.Join(t.TempDir(), "missing.yaml"), "", &options), ShouldNotBeNil)

		// 校验失败
		So(Unmarshal("yaml", []byte("dialect: oracle\nname: x\n"), "", &options), ShouldNotBeNil)
		So(Unmarshal("yaml", []byte("dialect: mysql\n"), "", &serviceOptions{}), ShouldNotBeNil)

		// 类型不匹配
		So(Unmarshal("json", []byte(`{"name": ["x"]}`), "", &serviceOptions{}), ShouldNotBeNil)
	})

	Convey("测试 Unmarshal", t, func() {
		var options serviceOptions
		So(Unmarshal("yml", []byte("name: orders\nworkers: 8\n"), "", &options), ShouldBeNil)
		So(options.Workers, ShouldEqual, 8)
		So(options.Dialect, ShouldEqual, "sqlite3")
		So(options.Timeout, ShouldEqual, 3*time.Second)
		So(options.Output, ShouldBeNil)
	})
}
