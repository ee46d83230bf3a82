package exporter

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/hatlonely/datadb/config"
	"github.com/hatlonely/datadb/file"
	"github.com/hatlonely/datadb/log"
	"github.com/hatlonely/datadb/log/logger"
	"github.com/hatlonely/datadb/rdb"
	"github.com/hatlonely/datadb/rdb/helper"
	"github.com/hatlonely/datadb/ref"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

type MysqlTableExporterOptions struct {
	Host     string           `cfg:"host" def:"localhost"`
	Port     int              `cfg:"port" def:"3306"`
	User     string           `cfg:"user"`
	Password string           `cfg:"password"`
	Binary   string           `cfg:"binary" def:"mysqldump"`
	Logger   *ref.TypeOptions `cfg:"logger"`
}

// MysqlTableExporter 调用 mysqldump 导出整张表，只保留 VALUES 元组追加到本地文件
//
// 表声明了列时退回到 SELECT 路径，保证列投影生效
type MysqlTableExporter struct {
	options *MysqlTableExporterOptions
	file    *file.LocalFile
	format  file.Format
	helper  *helper.MysqlHelper
	logger  logger.Logger
}

// NewMysqlTableExporterWithOptions f 为空时导出到临时文件，必须是尚不存在的本地文件
func NewMysqlTableExporterWithOptions(options *MysqlTableExporterOptions, f file.File, format file.Format) (*MysqlTableExporter, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}
	copied := *options
	if err := config.SetDefaults(&copied); err != nil {
		return nil, err
	}
	options = &copied
	l, err := log.NewLoggerWithOptions(options.Logger)
	if err != nil {
		return nil, errors.WithMessage(err, "log.NewLoggerWithOptions failed")
	}
	h, err := helper.NewMysqlHelperWithOptions(&helper.Options{Logger: options.Logger})
	if err != nil {
		return nil, err
	}

	e := &MysqlTableExporter{options: options, format: format, helper: h, logger: l}
	if f == nil {
		return e, nil
	}

	if format == nil {
		if aware, ok := f.(file.FormatAware); ok {
			e.format = aware.Format()
		}
	}
	exists, err := f.Exists()
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errors.Wrapf(rdb.ErrDestinationExists, "the provided file: %s already exists", f)
	}
	local, ok := f.(*file.LocalFile)
	if !ok {
		return nil, errors.Wrapf(rdb.ErrRequiresLocalFile, "the provided file: %s is not a local file", f)
	}
	// mysqldump 直接写原始字节，不支持压缩和转码
	if c := local.Compression(); c != "" && c != file.CompressionNone {
		return nil, errors.Wrapf(rdb.ErrUnsupportedCompression, "mysqldump is unable to write a %s compressed file: %s", c, f)
	}
	if enc := local.Encoding(); enc != "" && !strings.EqualFold(enc, "utf-8") && !strings.EqualFold(enc, "utf8") {
		return nil, errors.Wrapf(rdb.ErrUnsupportedEncoding, "mysqldump is unable to write a %s encoded file: %s", enc, f)
	}
	e.file = local
	return e, nil
}

func (e *MysqlTableExporter) WithLogger(l logger.Logger) *MysqlTableExporter {
	e.logger = l
	e.helper.SetLogger(l)
	return e
}

func (e *MysqlTableExporter) Export(ctx context.Context, table rdb.Table) (file.File, error) {
	if e.file == nil {
		e.file = file.NewTempFile("")
	}

	// native 是 mysqldump 实际产出的格式，target 是调用方要求的格式
	target := e.format
	native := e.format
	if native == nil || !e.helper.IsValidExportFormat(native) {
		native = e.helper.DefaultExportFormat()
	}
	if target == nil {
		target = native
	}

	e.logger.InfoContext(ctx, "exporting mysql table to file", "table", table.FullName(), "file", e.file.String())

	if len(table.Columns()) > 0 {
		query, err := selectQuery(table)
		if err != nil {
			return nil, err
		}
		return NewQueryExporter(e.file, target).WithLogger(e.logger).Export(ctx, query)
	}

	if err := e.dump(ctx, table); err != nil {
		return nil, err
	}
	e.file.SetFormat(native)

	if target == native {
		return e.file, nil
	}
	description, err := e.helper.DescribeTable(ctx, table)
	if err != nil {
		return nil, err
	}
	return file.ReFormat(ctx, e.file, native, target, &file.ReFormatOptions{KeepOld: false, Columns: description.Columns()})
}

func (e *MysqlTableExporter) arguments(table rdb.Table, redacted bool) []string {
	args := []string{"-h" + e.options.Host, "-u" + e.options.User}
	if e.options.Password != "" {
		if redacted {
			args = append(args, "-p***")
		} else {
			args = append(args, "-p"+e.options.Password)
		}
	}
	args = append(args,
		"-P"+strconv.Itoa(e.options.Port),
		"--no-create-info",
		"--compact",
		"--compress",
		"--quick",
		"--skip-extended-insert",
		"--single-transaction",
		"--skip-tz-utc",
		"--order-by-primary",
	)
	if source, ok := table.(rdb.SourceTable); ok && source.Where() != "" {
		args = append(args, "--where="+source.Where())
	}
	return append(args, table.Schema(), table.Name())
}

// dump mysqldump 和过滤阶段并行，任一阶段失败都会终止整个导出
func (e *MysqlTableExporter) dump(ctx context.Context, table rdb.Table) error {
	if e.logger.Enabled(ctx, slog.LevelDebug) {
		e.logger.DebugContext(ctx, "executing command", "cmd", e.options.Binary+" "+strings.Join(e.arguments(table, true), " "))
	}

	out, err := e.file.Writer(true)
	if err != nil {
		return err
	}
	defer out.Close()

	g, gctx := errgroup.WithContext(ctx)
	pr, pw := io.Pipe()
	var stderr bytes.Buffer
	cmd := exec.CommandContext(gctx, e.options.Binary, e.arguments(table, false)...)
	cmd.Stdout = pw
	cmd.Stderr = &stderr

	g.Go(func() error {
		err := cmd.Run()
		if err != nil {
			err = errors.Wrapf(rdb.ErrDumpFailed, "%s exited with %v: %s", e.options.Binary, err, strings.TrimSpace(stderr.String()))
		}
		pw.CloseWithError(err)
		return err
	})
	g.Go(func() error {
		err := filterDump(pr, out)
		pr.CloseWithError(err)
		return err
	})
	if err := g.Wait(); err != nil {
		return errors.WithMessagef(err, "failed to export %s", table.FullName())
	}
	return nil
}

var insertValues = regexp.MustCompile("^INSERT INTO `[^`]+` VALUES \\((.+)\\);\\s?$")

// filterDump 只保留 INSERT 语句里的元组，并把转义的换行还原成转义符加真实换行
func filterDump(in io.Reader, out io.Writer) error {
	br := bufio.NewReader(in)
	bw := bufio.NewWriter(out)
	for {
		line, err := br.ReadString('\n')
		if line != "" && strings.HasPrefix(line, "INSERT INTO") {
			if m := insertValues.FindStringSubmatch(line); m != nil {
				line = m[1] + "\n"
			}
			if _, werr := bw.WriteString(unescapeNewLines(line)); werr != nil {
				return errors.Wrap(werr, "failed to write dump output")
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}
	return errors.Wrap(bw.Flush(), "failed to flush dump output")
}

func unescapeNewLines(line string) string {
	if !strings.Contains(line, `\`) {
		return line
	}
	var sb strings.Builder
	sb.Grow(len(line))
	for i := 0; i < len(line); i++ {
		if line[i] != '\\' || i+1 == len(line) {
			sb.WriteByte(line[i])
			continue
		}
		i++
		switch line[i] {
		case 'n':
			sb.WriteString("\\\n")
		case 'r':
			sb.WriteString("\\\r")
		default:
			sb.WriteByte('\\')
			sb.WriteByte(line[i])
		}
	}
	return sb.String()
}

var _ Table = (*MysqlTableExporter)(nil)
