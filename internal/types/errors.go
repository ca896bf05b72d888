package types

import "errors"

var (
	// ErrUnsupportedImage 输入无法解码为图片
	ErrUnsupportedImage = errors.New("unsupported image")
	// ErrImageTooSmall 图片小于配置的最小尺寸
	ErrImageTooSmall = errors.New("image below minimum size")
	// ErrImageTooLarge 图片超过配置的最大尺寸
	ErrImageTooLarge = errors.New("image exceeds maximum size")

	// ErrStoreNotConfigured 对象存储未配置，put 以失败结果返回而不是报错
	ErrStoreNotConfigured = errors.New("object store not configured")
	// ErrStoreTransport 与对象存储通信失败
	ErrStoreTransport = errors.New("object store transport failure")

	// ErrFilesystem 临时文件创建、写入或删除失败
	ErrFilesystem = errors.New("transient file failure")
)
