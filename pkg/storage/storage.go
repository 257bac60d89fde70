package storage

import (
	"io"
)

// FileInfo 文件元数据结构
type FileInfo struct {
	Path      string // 存储路径（键）
	Name      string // 原始文件名
	Size      int64  // 文件大小(字节)
	MimeType  string // 文件MIME类型(可选)
	PublicURL string // 公开访问URL(实现相关，可能为空)
}

// Storage Blob存储接口
// 按路径存取不透明的字节内容，不假设任何事务性保证
// 可以有不同实现(本地文件系统、MinIO等)
type Storage interface {
	// Upload 按路径保存内容并返回文件信息
	Upload(reader io.Reader, path string) (FileInfo, error)

	// Download 获取指定路径的文件内容
	Download(path string) (io.ReadCloser, error)

	// Delete 删除指定路径的文件
	Delete(path string) error

	// Exists 检查指定路径的文件是否存在
	Exists(path string) (bool, error)

	// List 列出所有文件
	List() ([]FileInfo, error)
}

// Factory 存储实现的工厂函数
// 用于根据配置创建不同类型的存储实现
type Factory func(cfg interface{}) (Storage, error)
