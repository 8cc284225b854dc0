package engine

import (
	"path/filepath"
	"strings"
)

// Format identifies an archive format by its filename.
type Format string

const (
	FormatZip     Format = "zip"
	FormatRar     Format = "rar"
	Format7z      Format = "7z"
	FormatTar     Format = "tar"
	FormatTarGz   Format = "tar.gz"
	FormatTarBz2  Format = "tar.bz2"
	FormatTarXz   Format = "tar.xz"
	FormatTarZst  Format = "tar.zst"
	FormatGz      Format = "gz"
	FormatBz2     Format = "bz2"
	FormatXz      Format = "xz"
	FormatZst     Format = "zst"
	FormatUnknown Format = ""
)

// Compound suffixes must be checked before their plain compression suffix,
// so "x.tar.gz" is tar.gz and not gz.
var compoundSuffixes = []struct {
	suffix string
	format Format
}{
	{".tar.gz", FormatTarGz},
	{".tgz", FormatTarGz},
	{".tar.bz2", FormatTarBz2},
	{".tbz2", FormatTarBz2},
	{".tar.xz", FormatTarXz},
	{".txz", FormatTarXz},
	{".tar.zst", FormatTarZst},
	{".tzst", FormatTarZst},
}

var simpleSuffixes = map[string]Format{
	".zip": FormatZip,
	".rar": FormatRar,
	".7z":  Format7z,
	".tar": FormatTar,
	".gz":  FormatGz,
	".bz2": FormatBz2,
	".xz":  FormatXz,
	".zst": FormatZst,
}

// DetectFormat returns the archive format implied by the file name, or
// FormatUnknown for files that are not recognized archives.
func DetectFormat(path string) Format {
	name := strings.ToLower(filepath.Base(path))
	for _, c := range compoundSuffixes {
		if strings.HasSuffix(name, c.suffix) {
			return c.format
		}
	}
	if f, ok := simpleSuffixes[filepath.Ext(name)]; ok {
		return f
	}
	return FormatUnknown
}

// ArchiveStem strips the recognized archive suffix from the base name, so
// "data.tar.gz" becomes "data". Unrecognized names lose only their final
// extension.
func ArchiveStem(path string) string {
	name := filepath.Base(path)
	lower := strings.ToLower(name)
	for _, c := range compoundSuffixes {
		if strings.HasSuffix(lower, c.suffix) {
			return name[:len(name)-len(c.suffix)]
		}
	}
	ext := filepath.Ext(name)
	if ext == "" {
		return name
	}
	return name[:len(name)-len(ext)]
}
