package tool

import (
	"context"
	"fmt"
)

// Type はツールの分類
type Type string

const (
	TypeDataAnalysis      Type = "data_analysis"
	TypeFileOperation     Type = "file_operation"
	TypeWebOperation      Type = "web_operation"
	TypeDatabaseOperation Type = "database_operation"
	TypeMCPOperation      Type = "mcp_operation"
	TypeCustom            Type = "custom"
)

// Types は定義済みのツール分類一覧（統計の出力順に使用）
var Types = []Type{
	TypeDataAnalysis,
	TypeFileOperation,
	TypeWebOperation,
	TypeDatabaseOperation,
	TypeMCPOperation,
	TypeCustom,
}

// ParamType はパラメータの型
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamNumber  ParamType = "number"
	ParamBoolean ParamType = "boolean"
	ParamObject  ParamType = "object"
	ParamArray   ParamType = "array"
	ParamEnum    ParamType = "enum"
)

// Parameter はツールパラメータの宣言
type Parameter struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
	Default     interface{}
	Enum        []string // Type == ParamEnum の場合の許容値
}

// Tool は呼び出し可能な機能の単位
type Tool interface {
	Name() string
	Description() string
	Type() Type
	Parameters() []Parameter
	Execute(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// Handler はツール実行関数の型
type Handler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// FuncTool は関数をラップしたツール実装
type FuncTool struct {
	name        string
	description string
	toolType    Type
	params      []Parameter
	handler     Handler
}

// New は新しいFuncToolを作成
func New(name, description string, toolType Type, params []Parameter, handler Handler) *FuncTool {
	return &FuncTool{
		name:        name,
		description: description,
		toolType:    toolType,
		params:      params,
		handler:     handler,
	}
}

// Name はツール名を返す
func (t *FuncTool) Name() string { return t.name }

// Description はツールの説明を返す
func (t *FuncTool) Description() string { return t.description }

// Type はツール分類を返す
func (t *FuncTool) Type() Type { return t.toolType }

// Parameters はパラメータ宣言を返す
func (t *FuncTool) Parameters() []Parameter { return t.params }

// Execute はツールを実行
func (t *FuncTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	return t.handler(ctx, args)
}

// containsString は値が候補に含まれるかを判定
func containsString(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

// validTypes は対応するパラメータ型の集合
var validTypes = map[ParamType]bool{
	ParamString:  true,
	ParamNumber:  true,
	ParamBoolean: true,
	ParamObject:  true,
	ParamArray:   true,
	ParamEnum:    true,
}

// validToolTypes は対応するツール分類の集合
var validToolTypes = map[Type]bool{
	TypeDataAnalysis:      true,
	TypeFileOperation:     true,
	TypeWebOperation:      true,
	TypeDatabaseOperation: true,
	TypeMCPOperation:      true,
	TypeCustom:            true,
}

// ValidateDefinition はツール宣言を検証する。
// 未対応の型は登録時のエラーとして扱う（スキーマ生成時ではない）
func ValidateDefinition(t Tool) error {
	if t.Name() == "" {
		return NewError(KindValidation, "tool name is required")
	}
	if !validToolTypes[t.Type()] {
		return NewError(KindUnsupportedType, "unsupported tool type %q for tool %q", t.Type(), t.Name())
	}

	seen := make(map[string]bool, len(t.Parameters()))
	for _, p := range t.Parameters() {
		if p.Name == "" {
			return NewError(KindValidation, "tool %q declares a parameter without a name", t.Name())
		}
		if seen[p.Name] {
			return NewParamError(p.Name, "tool %q declares parameter %q twice", t.Name(), p.Name)
		}
		seen[p.Name] = true

		if !validTypes[p.Type] {
			return &Error{
				Kind:    KindUnsupportedType,
				Message: fmt.Sprintf("tool %q parameter %q has unsupported type %q", t.Name(), p.Name, p.Type),
				Param:   p.Name,
			}
		}
		if p.Required && p.Default != nil {
			return NewParamError(p.Name, "tool %q parameter %q is required and must not declare a default", t.Name(), p.Name)
		}
		if p.Type == ParamEnum && len(p.Enum) == 0 {
			return NewParamError(p.Name, "tool %q parameter %q is an enum and must declare allowed values", t.Name(), p.Name)
		}
		if p.Type == ParamEnum && p.Default != nil {
			// デフォルト値も許容値の一員でなければならない
			s, ok := p.Default.(string)
			if !ok || !containsString(p.Enum, s) {
				return NewParamError(p.Name, "tool %q parameter %q declares default %v outside its allowed values", t.Name(), p.Name, p.Default)
			}
		}
	}
	return nil
}
