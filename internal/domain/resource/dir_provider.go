package resource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/genbi-core/genbi-mcp/internal/domain/tool"
)

// mimeByExtension は拡張子からMIMEタイプを引く
var mimeByExtension = map[string]string{
	".csv":  "text/csv",
	".json": "application/json",
	".txt":  "text/plain",
	".md":   "text/markdown",
	".yaml": "application/yaml",
	".yml":  "application/yaml",
}

// DirProvider はディレクトリ配下のファイルをfile://リソースとして公開
type DirProvider struct {
	root string
}

// NewDirProvider は指定ディレクトリを公開するProviderを作成
func NewDirProvider(root string) *DirProvider {
	return &DirProvider{root: root}
}

// List はディレクトリ直下のファイルをファイル名順で返す
func (p *DirProvider) List(ctx context.Context) ([]Resource, error) {
	entries, err := os.ReadDir(p.root)
	if err != nil {
		return nil, fmt.Errorf("read resource directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	result := make([]Resource, 0, len(names))
	for _, name := range names {
		result = append(result, Resource{
			URI:         p.uriFor(name),
			Name:        name,
			Description: fmt.Sprintf("File resource %s", name),
			MIMEType:    mimeFor(name),
		})
	}
	return result, nil
}

// Read はfile:// URIで指定されたファイルの内容を返す。
// ディレクトリ外へのパスはNotFoundErrorとして拒否
func (p *DirProvider) Read(ctx context.Context, uri string) (Content, error) {
	name, ok := p.nameFromURI(uri)
	if !ok {
		return Content{}, tool.NewError(tool.KindNotFound, "resource %q is not served by this provider", uri)
	}

	path := filepath.Join(p.root, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return Content{}, tool.WrapError(tool.KindNotFound, err, "resource %q not found", uri)
	}

	return Content{URI: uri, MIMEType: mimeFor(name), Text: string(data)}, nil
}

// uriFor はファイル名をfile:// URIに変換
func (p *DirProvider) uriFor(name string) string {
	abs, err := filepath.Abs(filepath.Join(p.root, name))
	if err != nil {
		return "file://" + filepath.Join(p.root, name)
	}
	return "file://" + abs
}

// nameFromURI はURIからルート配下のファイル名を取り出す
func (p *DirProvider) nameFromURI(uri string) (string, bool) {
	if !strings.HasPrefix(uri, "file://") {
		return "", false
	}
	path := strings.TrimPrefix(uri, "file://")

	absRoot, err := filepath.Abs(p.root)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(absRoot, path)
	if err != nil || strings.HasPrefix(rel, "..") || strings.Contains(rel, string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

func mimeFor(name string) string {
	if mime, ok := mimeByExtension[strings.ToLower(filepath.Ext(name))]; ok {
		return mime
	}
	return "application/octet-stream"
}
