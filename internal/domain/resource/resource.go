package resource

import (
	"context"
	"sync"

	"github.com/genbi-core/genbi-mcp/internal/domain/tool"
)

// Resource はMCP経由で公開される読み取り専用アーティファクトの記述子
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description"`
	MIMEType    string `json:"mime_type"`
}

// Content はリソースの内容
type Content struct {
	URI      string `json:"uri"`
	MIMEType string `json:"mime_type"`
	Text     string `json:"content"`
}

// Provider はリソースの裏付けストア。
// サーバーは契約のみ定義し、格納形式には関与しない
type Provider interface {
	List(ctx context.Context) ([]Resource, error)
	Read(ctx context.Context, uri string) (Content, error)
}

// StaticProvider はメモリ上の固定リソース集合
type StaticProvider struct {
	mu       sync.RWMutex
	contents map[string]Content
	order    []string // 登録順
	infos    map[string]Resource
}

// NewStaticProvider は空のStaticProviderを作成
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		contents: make(map[string]Content),
		infos:    make(map[string]Resource),
	}
}

// Register はリソースとその内容を登録する。同一URIは上書き
func (p *StaticProvider) Register(res Resource, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.infos[res.URI]; !exists {
		p.order = append(p.order, res.URI)
	}
	p.infos[res.URI] = res
	p.contents[res.URI] = Content{URI: res.URI, MIMEType: res.MIMEType, Text: text}
}

// List は登録済みリソースを登録順で返す
func (p *StaticProvider) List(ctx context.Context) ([]Resource, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]Resource, 0, len(p.order))
	for _, uri := range p.order {
		result = append(result, p.infos[uri])
	}
	return result, nil
}

// Read はURIで指定されたリソースの内容を返す
func (p *StaticProvider) Read(ctx context.Context, uri string) (Content, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	content, exists := p.contents[uri]
	if !exists {
		return Content{}, tool.NewError(tool.KindNotFound, "resource %q is not registered", uri)
	}
	return content, nil
}
