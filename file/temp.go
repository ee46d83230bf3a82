package file

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// DefaultTempDir 导出未指定目标文件时使用的目录
func DefaultTempDir() string {
	return filepath.Join(os.TempDir(), "export", "query")
}

// NewTempFile 在 dir 下生成一个随机文件名，dir 为空时使用 DefaultTempDir，文件本身不会被创建
func NewTempFile(dir string) *LocalFile {
	if dir == "" {
		dir = DefaultTempDir()
	}
	return NewLocalFile(filepath.Join(dir, uuid.NewString()))
}
