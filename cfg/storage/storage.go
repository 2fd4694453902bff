package storage

// Storage 配置数据存储接口
type Storage interface {
	// Sub 获取子配置，key 以点号分隔多级嵌套，[] 表示数组索引
	// 例如 "registry.logger.output"
	Sub(key string) Storage

	// ConvertTo 将配置数据绑定到结构体或 map/slice 等任意结构
	ConvertTo(object any) error
}
