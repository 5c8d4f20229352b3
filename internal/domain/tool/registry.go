package tool

import (
	"sort"
	"strings"
	"sync"
)

// Registry は登録済みツールのプロセス全体のカタログ。
// 読み取りは並行、書き込みは直列化され、読み手が登録途中の
// ツールを観測することはない
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string // 登録順（listの決定的な出力順）
}

// NewRegistry は空のレジストリを作成
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register はツールを登録する。
// 同名ツールが既に存在する場合はDuplicateToolError
// （意図しない機能の上書きを防ぐため、置き換えではなく拒否）
func (r *Registry) Register(t Tool) error {
	if err := ValidateDefinition(t); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Name()]; exists {
		return NewError(KindDuplicateTool, "tool %q is already registered", t.Name())
	}

	r.tools[t.Name()] = t
	r.order = append(r.order, t.Name())
	return nil
}

// Unregister はツールの登録を解除する。
// 実行中の呼び出しは完了まで継続する（強制キャンセルしない）
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; !exists {
		return NewError(KindNotFound, "tool %q is not registered", name)
	}

	delete(r.tools, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get は名前でツールを取得
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, exists := r.tools[name]
	if !exists {
		return nil, NewError(KindNotFound, "tool %q is not registered", name)
	}
	return t, nil
}

// List は登録済みツールを登録順で返す。
// typeFilterを指定した場合はその分類のみ
func (r *Registry) List(typeFilter ...Type) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		if len(typeFilter) > 0 && t.Type() != typeFilter[0] {
			continue
		}
		result = append(result, t)
	}
	return result
}

// Search は名前と説明に対する大文字小文字を区別しない部分一致検索。
// 名前の完全一致を先頭に、残りは登録順
func (r *Registry) Search(query string) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q := strings.ToLower(query)

	var exact []Tool
	var partial []Tool
	for _, name := range r.order {
		t := r.tools[name]
		lowerName := strings.ToLower(t.Name())
		switch {
		case lowerName == q:
			exact = append(exact, t)
		case strings.Contains(lowerName, q) || strings.Contains(strings.ToLower(t.Description()), q):
			partial = append(partial, t)
		}
	}
	return append(exact, partial...)
}

// Statistics はレジストリの統計情報
type Statistics struct {
	Total  int          `json:"total"`
	ByType map[Type]int `json:"by_type"`
}

// Statistics は分類別のツール数と総数を返す（副作用なし）
func (r *Registry) Statistics() Statistics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Statistics{
		Total:  len(r.tools),
		ByType: make(map[Type]int, len(Types)),
	}
	for _, tt := range Types {
		stats.ByType[tt] = 0
	}
	for _, t := range r.tools {
		stats.ByType[t.Type()]++
	}
	return stats
}

// Names は登録済みツール名を辞書順で返す（ログ・デバッグ用）
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	sort.Strings(names)
	return names
}
