package writer

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNewWriterWithOptions(t *testing.T) {
	Convey("测试 NewWriterWithOptions", t, func() {
		Convey("nil 配置输出到控制台", func() {
			w, err := NewWriterWithOptions(nil)
			So(err, ShouldBeNil)
			_, ok := w.(*ConsoleWriter)
			So(ok, ShouldBeTrue)
			So(w.Close(), ShouldBeNil)
		})

		Convey("控制台输出目标", func() {
			w, err := NewWriterWithOptions(&Options{Type: "console", Console: &ConsoleWriterOptions{Target: "stderr"}})
			So(err, ShouldBeNil)
			So(w.(*ConsoleWriter).writer, ShouldEqual, os.Stderr)

			_, err = NewWriterWithOptions(&Options{Console: &ConsoleWriterOptions{Target: "printer"}})
			So(err, ShouldNotBeNil)
		})

		Convey("文件输出", func() {
			path := filepath.Join(t.TempDir(), "logs", "app.log")
			w, err := NewWriterWithOptions(&Options{Type: "file", File: &FileWriterOptions{Path: path}})
			So(err, ShouldBeNil)

			_, err = w.Write([]byte("hello\n"))
			So(err, ShouldBeNil)
			So(w.Close(), ShouldBeNil)
			So(w.Close(), ShouldBeNil)

			_, err = w.Write([]byte("closed\n"))
			So(err, ShouldNotBeNil)

			buf, err := os.ReadFile(path)
			So(err, ShouldBeNil)
			So(string(buf), ShouldEqual, "hello\n")
		})

		Convey("文件路径不能为空", func() {
			_, err := NewWriterWithOptions(&Options{Type: "file"})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "file path is required")
		})

		Convey("多路输出", func() {
			dir := t.TempDir()
			a := filepath.Join(dir, "a.log")
			b := filepath.Join(dir, "b.log")
			w, err := NewWriterWithOptions(&Options{Type: "multi", Writers: []*Options{
				{Type: "file", File: &FileWriterOptions{Path: a}},
				{Type: "file", File: &FileWriterOptions{Path: b}},
			}})
			So(err, ShouldBeNil)

			n, err := w.Write([]byte("both\n"))
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 5)
			So(w.Close(), ShouldBeNil)

			for _, path := range []string{a, b} {
				buf, err := os.ReadFile(path)
				So(err, ShouldBeNil)
				So(string(buf), ShouldEqual, "both\n")
			}
		})

		Convey("多路输出中任一失败则整体失败", func() {
			_, err := NewWriterWithOptions(&Options{Type: "multi", Writers: []*Options{
				{Type: "console"},
				{Type: "file"},
			}})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "create writer 1 failed")

			_, err = NewWriterWithOptions(&Options{Type: "multi"})
			So(err, ShouldNotBeNil)
		})

		Convey("未知类型", func() {
			_, err := NewWriterWithOptions(&Options{Type: "kafka"})
			So(err, ShouldNotBeNil)
		})
	})
}
