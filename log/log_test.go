package log

import (
	"testing"

	"github.com/hatlonely/sqltable/log/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDefault(t *testing.T) {
	Convey("测试默认日志器", t, func() {
		origin := Default()
		So(origin, ShouldNotBeNil)
		defer SetDefault(origin)

		l, err := NewLoggerWithOptions(&logger.SLogOptions{Level: "error", Format: "json"})
		So(err, ShouldBeNil)
		SetDefault(l)
		So(Default(), ShouldEqual, l)

		SetDefault(nil)
		So(Default(), ShouldEqual, l)

		same, err := NewLoggerWithOptions(nil)
		So(err, ShouldBeNil)
		So(same, ShouldEqual, l)

		_, err = NewLoggerWithOptions(&logger.SLogOptions{Format: "xml"})
		So(err, ShouldNotBeNil)
	})
}
