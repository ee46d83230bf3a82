package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const (
	CompressionNone    = "none"
	CompressionUnknown = "unknown"
	CompressionGzip    = "gzip"
	CompressionBzip2   = "bzip2"
	CompressionLzop    = "lzop"
)

var ErrNotSupported = errors.New("operation not supported")

// File 数据文件
type File interface {
	Path() string
	String() string
	Exists() (bool, error)
	// Writer appending 为 false 时截断已有内容
	Writer(appending bool) (io.WriteCloser, error)
	Reader() (io.ReadCloser, error)
	Delete() error
}

// FormatAware 声明了序列化格式的文件
type FormatAware interface {
	Format() Format
	SetFormat(format Format)
}

type CompressionAware interface {
	Compression() string
}

type EncodingAware interface {
	Encoding() string
}

// Credentials 对象存储访问凭证
type Credentials struct {
	AccessKeyID     string `cfg:"accessKeyId" validate:"required"`
	SecretAccessKey string `cfg:"secretAccessKey" validate:"required"`
}

type CredentialsProvider interface {
	Retrieve(ctx context.Context) (Credentials, error)
}

// StaticCredentials 固定凭证
type StaticCredentials Credentials

func (c StaticCredentials) Retrieve(ctx context.Context) (Credentials, error) {
	return Credentials(c), nil
}

// EnvCredentials 从 AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY 读取
type EnvCredentials struct{}

func (EnvCredentials) Retrieve(ctx context.Context) (Credentials, error) {
	c := Credentials{
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
	}
	if c.AccessKeyID == "" || c.SecretAccessKey == "" {
		return c, errors.New("AWS_ACCESS_KEY_ID or AWS_SECRET_ACCESS_KEY is not set")
	}
	return c, nil
}

// ObjectStorage 位于对象存储上的文件
type ObjectStorage interface {
	Bucket() string
	Key() string
	Credentials(ctx context.Context) (Credentials, error)
}

// node 文件的公共属性
type node struct {
	path        string
	format      Format
	compression string
	encoding    string
}

func (n *node) Path() string            { return n.path }
func (n *node) Format() Format          { return n.format }
func (n *node) SetFormat(f Format)      { n.format = f }
func (n *node) Compression() string     { return n.compression }
func (n *node) Encoding() string        { return n.encoding }
func (n *node) setCompression(c string) { n.compression = c }
func (n *node) setEncoding(e string)    { n.encoding = e }

type LocalFile struct {
	node
}

func NewLocalFile(path string) *LocalFile {
	return &LocalFile{node: node{path: path, compression: CompressionNone}}
}

func (f *LocalFile) WithFormat(format Format) *LocalFile {
	f.SetFormat(format)
	return f
}

func (f *LocalFile) WithCompression(compression string) *LocalFile {
	f.setCompression(compression)
	return f
}

func (f *LocalFile) WithEncoding(encoding string) *LocalFile {
	f.setEncoding(encoding)
	return f
}

func (f *LocalFile) String() string {
	return f.path
}

func (f *LocalFile) Exists() (bool, error) {
	_, err := os.Stat(f.path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrapf(err, "stat %s failed", f.path)
}

func (f *LocalFile) Writer(appending bool) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create directory for %s", f.path)
	}
	flag := os.O_CREATE | os.O_WRONLY
	if appending {
		flag |= os.O_APPEND
	} else {
		flag |= os.O_TRUNC
	}
	fp, err := os.OpenFile(f.path, flag, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", f.path)
	}
	return fp, nil
}

func (f *LocalFile) Reader() (io.ReadCloser, error) {
	fp, err := os.Open(f.path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", f.path)
	}
	return fp, nil
}

func (f *LocalFile) Delete() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to remove %s", f.path)
	}
	return nil
}

type S3FileOptions struct {
	Bucket      string       `cfg:"bucket" validate:"required"`
	Key         string       `cfg:"key" validate:"required"`
	Compression string       `cfg:"compression" def:"none"`
	Encoding    string       `cfg:"encoding"`
	Credentials *Credentials `cfg:"credentials"`
}

// S3File 对象存储上的文件，只作为仓库端 COPY/UNLOAD 的位置描述，数据不经过本进程
type S3File struct {
	node
	bucket      string
	credentials CredentialsProvider
}

func NewS3File(bucket string, key string, credentials CredentialsProvider) *S3File {
	if credentials == nil {
		credentials = EnvCredentials{}
	}
	return &S3File{
		node:        node{path: key, compression: CompressionNone},
		bucket:      bucket,
		credentials: credentials,
	}
}

func NewS3FileWithOptions(options *S3FileOptions) (*S3File, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}
	var provider CredentialsProvider
	if options.Credentials != nil {
		provider = StaticCredentials(*options.Credentials)
	}
	f := NewS3File(options.Bucket, options.Key, provider)
	if options.Compression != "" {
		f.setCompression(options.Compression)
	}
	f.setEncoding(options.Encoding)
	return f, nil
}

func (f *S3File) WithFormat(format Format) *S3File {
	f.SetFormat(format)
	return f
}

func (f *S3File) WithCompression(compression string) *S3File {
	f.setCompression(compression)
	return f
}

func (f *S3File) WithEncoding(encoding string) *S3File {
	f.setEncoding(encoding)
	return f
}

func (f *S3File) Bucket() string { return f.bucket }
func (f *S3File) Key() string    { return f.path }

func (f *S3File) Credentials(ctx context.Context) (Credentials, error) {
	c, err := f.credentials.Retrieve(ctx)
	if err != nil {
		return c, errors.WithMessagef(err, "failed to retrieve credentials for %s", f)
	}
	return c, nil
}

func (f *S3File) URI() string {
	return fmt.Sprintf("s3://%s/%s", f.bucket, f.path)
}

func (f *S3File) String() string {
	return f.URI()
}

func (f *S3File) Exists() (bool, error) {
	return false, errors.Wrapf(ErrNotSupported, "exists on %s", f)
}

func (f *S3File) Writer(appending bool) (io.WriteCloser, error) {
	return nil, errors.Wrapf(ErrNotSupported, "write to %s", f)
}

func (f *S3File) Reader() (io.ReadCloser, error) {
	return nil, errors.Wrapf(ErrNotSupported, "read from %s", f)
}

func (f *S3File) Delete() error {
	return errors.Wrapf(ErrNotSupported, "delete %s", f)
}
