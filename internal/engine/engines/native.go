package engines

import (
	"archive/tar"
	"compress/bzip2"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/nwaples/rardecode/v2"
	"github.com/ulikunitz/xz"
	"github.com/unarc/unarc/internal/engine"
	"github.com/yeka/zip"
	"go.uber.org/zap"
)

const nativeName = "native"

// Native is the fallback engine: a pure-Go, format-dispatched extractor.
// Broader availability than the 7-Zip binary, lower reliability on exotic
// archives, which is why it only runs when the primary cannot.
type Native struct {
	logger *zap.Logger
}

func NewNative(logger *zap.Logger) *Native {
	return &Native{logger: logger}
}

func (e *Native) Name() string {
	return nativeName
}

func (e *Native) Extract(ctx context.Context, req engine.Request) error {
	format := engine.DetectFormat(req.Archive)

	var files int
	var bytes int64
	var err error
	switch format {
	case engine.FormatZip:
		files, bytes, err = e.extractZip(ctx, req)
	case engine.Format7z:
		files, bytes, err = e.extract7z(ctx, req)
	case engine.FormatRar:
		files, bytes, err = e.extractRar(ctx, req)
	case engine.FormatTar, engine.FormatTarGz, engine.FormatTarBz2, engine.FormatTarXz, engine.FormatTarZst:
		files, bytes, err = e.extractTar(ctx, req, format)
	case engine.FormatGz, engine.FormatBz2, engine.FormatXz, engine.FormatZst:
		files, bytes, err = e.extractSingle(ctx, req, format)
	default:
		return engine.Errorf(engine.ClassUnsupportedFormat, nativeName, "unrecognized archive %s", filepath.Base(req.Archive))
	}
	if err != nil {
		return err
	}

	e.logger.Debug("native extraction complete",
		zap.String("archive", req.Archive),
		zap.Int("files", files),
		zap.Int64("bytes", bytes),
	)
	return nil
}

func (e *Native) extractZip(ctx context.Context, req engine.Request) (int, int64, error) {
	rc, err := zip.OpenReader(req.Archive)
	if err != nil {
		return 0, 0, engine.Errorf(engine.ClassCorruptArchive, nativeName, "open zip: %w", err)
	}
	defer rc.Close()

	var files int
	var total int64
	for _, f := range rc.File {
		if err := ctx.Err(); err != nil {
			return files, total, engine.NewError(engine.ClassOther, nativeName, err)
		}
		if f.FileInfo().IsDir() {
			continue
		}
		if f.IsEncrypted() {
			if req.Password == "" {
				return files, total, engine.Errorf(engine.ClassWrongPassword, nativeName, "entry %q is encrypted", f.Name)
			}
			f.SetPassword(req.Password)
		}
		r, err := f.Open()
		if err != nil {
			return files, total, engine.NewError(classifyEntryError(f.IsEncrypted(), err), nativeName, err)
		}
		n, err := writeEntry(req.Dest, f.Name, r)
		r.Close()
		if err != nil {
			return files, total, engine.NewError(classifyEntryError(f.IsEncrypted(), err), nativeName, err)
		}
		files++
		total += n
	}
	return files, total, nil
}

func (e *Native) extract7z(ctx context.Context, req engine.Request) (int, int64, error) {
	var rc *sevenzip.ReadCloser
	var err error
	if req.Password != "" {
		rc, err = sevenzip.OpenReaderWithPassword(req.Archive, req.Password)
	} else {
		rc, err = sevenzip.OpenReader(req.Archive)
	}
	if err != nil {
		return 0, 0, engine.NewError(classifyEntryError(req.Password != "", err), nativeName, fmt.Errorf("open 7z: %w", err))
	}
	defer rc.Close()

	var files int
	var total int64
	for _, f := range rc.File {
		if err := ctx.Err(); err != nil {
			return files, total, engine.NewError(engine.ClassOther, nativeName, err)
		}
		if f.FileInfo().IsDir() {
			continue
		}
		r, err := f.Open()
		if err != nil {
			return files, total, engine.NewError(classifyEntryError(true, err), nativeName, err)
		}
		n, err := writeEntry(req.Dest, f.Name, r)
		r.Close()
		if err != nil {
			return files, total, engine.NewError(classifyEntryError(true, err), nativeName, err)
		}
		files++
		total += n
	}
	return files, total, nil
}

func (e *Native) extractRar(ctx context.Context, req engine.Request) (int, int64, error) {
	var opts []rardecode.Option
	if req.Password != "" {
		opts = append(opts, rardecode.Password(req.Password))
	}
	rc, err := rardecode.OpenReader(req.Archive, opts...)
	if err != nil {
		return 0, 0, engine.NewError(classifyEntryError(true, err), nativeName, fmt.Errorf("open rar: %w", err))
	}
	defer rc.Close()

	var files int
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return files, total, engine.NewError(engine.ClassOther, nativeName, err)
		}
		hdr, err := rc.Next()
		if err == io.EOF {
			return files, total, nil
		}
		if err != nil {
			return files, total, engine.NewError(classifyEntryError(true, err), nativeName, err)
		}
		if hdr.IsDir {
			continue
		}
		n, err := writeEntry(req.Dest, hdr.Name, rc)
		if err != nil {
			return files, total, engine.NewError(classifyEntryError(true, err), nativeName, err)
		}
		files++
		total += n
	}
}

func (e *Native) extractTar(ctx context.Context, req engine.Request, format engine.Format) (int, int64, error) {
	f, err := os.Open(req.Archive)
	if err != nil {
		return 0, 0, engine.NewError(engine.ClassOther, nativeName, err)
	}
	defer f.Close()

	decompressed, closeDecompressor, err := decompressor(format, f)
	if err != nil {
		return 0, 0, engine.Errorf(engine.ClassCorruptArchive, nativeName, "open %s stream: %w", format, err)
	}
	defer closeDecompressor()

	tr := tar.NewReader(decompressed)
	var files int
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return files, total, engine.NewError(engine.ClassOther, nativeName, err)
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			return files, total, nil
		}
		if err != nil {
			return files, total, engine.Errorf(engine.ClassCorruptArchive, nativeName, "read tar: %w", err)
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			continue
		case tar.TypeReg:
			n, err := writeEntry(req.Dest, hdr.Name, tr)
			if err != nil {
				return files, total, engine.NewError(engine.ClassOther, nativeName, err)
			}
			files++
			total += n
		default:
			// Symlinks and special files are not reproduced.
			e.logger.Debug("skipping non-regular tar entry",
				zap.String("name", hdr.Name),
				zap.Uint8("type", hdr.Typeflag),
			)
		}
	}
}

func (e *Native) extractSingle(ctx context.Context, req engine.Request, format engine.Format) (int, int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, engine.NewError(engine.ClassOther, nativeName, err)
	}

	f, err := os.Open(req.Archive)
	if err != nil {
		return 0, 0, engine.NewError(engine.ClassOther, nativeName, err)
	}
	defer f.Close()

	decompressed, closeDecompressor, err := decompressor(format, f)
	if err != nil {
		return 0, 0, engine.Errorf(engine.ClassCorruptArchive, nativeName, "open %s stream: %w", format, err)
	}
	defer closeDecompressor()

	n, err := writeEntry(req.Dest, engine.ArchiveStem(req.Archive), decompressed)
	if err != nil {
		return 0, 0, engine.Errorf(engine.ClassCorruptArchive, nativeName, "decompress: %w", err)
	}
	return 1, n, nil
}

// decompressor wraps r in the decompression stream for format. The returned
// close func must be called after reading. Plain tar passes through.
func decompressor(format engine.Format, r io.Reader) (io.Reader, func() error, error) {
	switch format {
	case engine.FormatGz, engine.FormatTarGz:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return gr, gr.Close, nil
	case engine.FormatBz2, engine.FormatTarBz2:
		return bzip2.NewReader(r), func() error { return nil }, nil
	case engine.FormatXz, engine.FormatTarXz:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return xr, func() error { return nil }, nil
	case engine.FormatZst, engine.FormatTarZst:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, func() error { zr.Close(); return nil }, nil
	case engine.FormatTar:
		return r, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("no decompressor for format %q", format)
	}
}

// entryPath resolves an archive entry name under dest, rejecting names that
// would escape it.
func entryPath(dest, name string) (string, error) {
	name = filepath.FromSlash(strings.ReplaceAll(name, `\`, "/"))
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("absolute entry name %q", name)
	}
	clean := filepath.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("entry name %q escapes destination", name)
	}
	return filepath.Join(dest, clean), nil
}

func writeEntry(dest, name string, r io.Reader) (int64, error) {
	path, err := entryPath(dest, name)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create entry directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create entry %s: %w", name, err)
	}
	n, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, fmt.Errorf("write entry %s: %w", name, err)
	}
	return n, nil
}

// classifyEntryError decides between a password failure and corrupt data.
// The libraries report wrong passwords as read/checksum errors on encrypted
// content, so any failure on encrypted data that mentions passwords or
// decryption counts as a password failure, and so does a checksum mismatch.
func classifyEntryError(encrypted bool, err error) engine.FailureClass {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "password") || strings.Contains(msg, "decrypt") || strings.Contains(msg, "encrypt") {
		return engine.ClassWrongPassword
	}
	if encrypted && (strings.Contains(msg, "checksum") || strings.Contains(msg, "crc") || strings.Contains(msg, "authentication")) {
		return engine.ClassWrongPassword
	}
	return engine.ClassCorruptArchive
}
