package writer

import (
	"io"

	"github.com/pkg/errors"
)

// Writer 日志输出器
type Writer interface {
	io.Writer
	io.Closer
}

// Options 输出器配置，Type 决定使用哪一项子配置
type Options struct {
	// 输出类型：console, file, multi
	Type string `cfg:"type" def:"console" validate:"oneof=console file multi"`

	Console *ConsoleWriterOptions `cfg:"console"`
	File    *FileWriterOptions    `cfg:"file"`
	// Writers 仅 multi 类型使用
	Writers []*Options `cfg:"writers"`
}

// NewWriterWithOptions 按配置创建输出器，options 为 nil 时输出到标准输出
func NewWriterWithOptions(options *Options) (Writer, error) {
	if options == nil {
		return NewConsoleWriterWithOptions(nil)
	}

	switch options.Type {
	case "", "console":
		return NewConsoleWriterWithOptions(options.Console)
	case "file":
		return NewFileWriterWithOptions(options.File)
	case "multi":
		return NewMultiWriterWithOptions(&MultiWriterOptions{Writers: options.Writers})
	}
	return nil, errors.Errorf("unsupported writer type: %s", options.Type)
}
