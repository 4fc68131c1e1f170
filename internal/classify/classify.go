// Package classify decides the type label of a file from its path, and
// optionally from the first bytes of its content.
package classify

import (
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"dirsummary/internal/summary"
)

// SniffBytes is how much content the Sniffer asks for.
const SniffBytes = 3072

type kind struct {
	label   string
	display string
}

var byExt = map[string]kind{
	".png":     {"png", "PNG image"},
	".jpg":     {"jpeg", "JPEG image"},
	".jpeg":    {"jpeg", "JPEG image"},
	".gif":     {"gif", "GIF image"},
	".webp":    {"webp", "WebP image"},
	".svg":     {"svg", "SVG image"},
	".bmp":     {"bmp", "Bitmap image"},
	".tif":     {"tiff", "TIFF image"},
	".tiff":    {"tiff", "TIFF image"},
	".ico":     {"ico", "Icon"},
	".pdf":     {"pdf", "PDF document"},
	".txt":     {"text", "Text"},
	".md":      {"markdown", "Markdown"},
	".rst":     {"rst", "reStructuredText"},
	".csv":     {"csv", "CSV table"},
	".tsv":     {"tsv", "TSV table"},
	".json":    {"json", "JSON"},
	".jsonl":   {"jsonl", "JSON lines"},
	".yaml":    {"yaml", "YAML"},
	".yml":     {"yaml", "YAML"},
	".toml":    {"toml", "TOML"},
	".xml":     {"xml", "XML"},
	".html":    {"html", "HTML"},
	".htm":     {"html", "HTML"},
	".css":     {"css", "CSS"},
	".go":      {"go", "Go source"},
	".py":      {"python", "Python source"},
	".ipynb":   {"ipynb", "Jupyter notebook"},
	".rs":      {"rust", "Rust source"},
	".js":      {"javascript", "JavaScript source"},
	".ts":      {"typescript", "TypeScript source"},
	".tsx":     {"typescript", "TypeScript source"},
	".java":    {"java", "Java source"},
	".kt":      {"kotlin", "Kotlin source"},
	".c":       {"c", "C source"},
	".h":       {"c", "C source"},
	".cc":      {"cpp", "C++ source"},
	".cpp":     {"cpp", "C++ source"},
	".hpp":     {"cpp", "C++ source"},
	".cs":      {"csharp", "C# source"},
	".rb":      {"ruby", "Ruby source"},
	".sh":      {"shell", "Shell script"},
	".sql":     {"sql", "SQL"},
	".proto":   {"proto", "Protocol Buffers"},
	".parquet": {"parquet", "Parquet table"},
	".zip":     {"zip", "Zip archive"},
	".gz":      {"gzip", "Gzip archive"},
	".tgz":     {"gzip", "Gzip archive"},
	".tar":     {"tar", "Tar archive"},
	".7z":      {"7z", "7-Zip archive"},
	".mp3":     {"mp3", "MP3 audio"},
	".wav":     {"wav", "WAV audio"},
	".flac":    {"flac", "FLAC audio"},
	".mp4":     {"mp4", "MP4 video"},
	".mov":     {"mov", "QuickTime video"},
	".webm":    {"webm", "WebM video"},
}

var byName = map[string]kind{
	"makefile":   {"make", "Makefile"},
	"dockerfile": {"dockerfile", "Dockerfile"},
	"license":    {"text", "Text"},
	"readme":     {"text", "Text"},
}

// Extensions classifies purely by file name.
type Extensions struct{}

func (Extensions) Classify(p string) summary.FileClassification {
	if k, ok := lookup(p); ok {
		return summary.FileClassification{TypeLabel: k.label, DisplayLabel: k.display}
	}
	return summary.FileClassification{}
}

func lookup(p string) (kind, bool) {
	base := path.Base(summary.CleanPath(p))
	if k, ok := byName[strings.ToLower(base)]; ok {
		return k, true
	}
	k, ok := byExt[strings.ToLower(path.Ext(base))]
	return k, ok
}

// HeadFunc returns up to SniffBytes of a file's content.
type HeadFunc func(p string) ([]byte, error)

// Sniffer falls back to content detection when the name is not conclusive.
// Read failures and binary blobs of unknown shape stay unclassified.
type Sniffer struct {
	Head HeadFunc
}

func (s Sniffer) Classify(p string) summary.FileClassification {
	if k, ok := lookup(p); ok {
		return summary.FileClassification{TypeLabel: k.label, DisplayLabel: k.display}
	}
	if s.Head == nil {
		return summary.FileClassification{}
	}
	head, err := s.Head(p)
	if err != nil || len(head) == 0 {
		return summary.FileClassification{}
	}
	return FromContent(head)
}

// FromContent classifies raw bytes with mimetype detection.
func FromContent(head []byte) summary.FileClassification {
	m := mimetype.Detect(head)
	if m.Is("application/octet-stream") {
		return summary.FileClassification{}
	}
	if k, ok := byExt[m.Extension()]; ok {
		return summary.FileClassification{TypeLabel: k.label, DisplayLabel: k.display}
	}
	label := strings.TrimPrefix(m.Extension(), ".")
	if label == "" {
		mime := m.String()
		if i := strings.IndexByte(mime, ';'); i >= 0 {
			mime = mime[:i]
		}
		label = mime[strings.LastIndexByte(mime, '/')+1:]
	}
	return summary.FileClassification{TypeLabel: label, DisplayLabel: m.String()}
}
