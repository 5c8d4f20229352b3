package tool

// Schema はMCP互換のツールスキーマ
type Schema struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	ToolType    Type        `json:"tool_type"`
	InputSchema InputSchema `json:"inputSchema"`
}

// InputSchema は入力パラメータのスキーマ
type InputSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]PropertySchema `json:"properties"`
	Required   []string                  `json:"required"`
}

// PropertySchema は単一パラメータのスキーマ
type PropertySchema struct {
	Type        string      `json:"type"`
	Description string      `json:"description,omitempty"`
	Default     interface{} `json:"default,omitempty"`
	Enum        []string    `json:"enum,omitempty"`
}

// GenerateSchema はツール宣言からスキーマ文書を生成する純粋関数。
// 同じツールからは常に同一のスキーマが得られる
// （Propertiesはマップだが、JSON化するとキーはソートされるため
// バイト単位で決定的）。未対応の型は登録時に検出済みのため
// ここではUnsupportedTypeErrorを返すのみ
func GenerateSchema(t Tool) (Schema, error) {
	input := InputSchema{
		Type:       "object",
		Properties: make(map[string]PropertySchema, len(t.Parameters())),
		Required:   []string{},
	}

	for _, p := range t.Parameters() {
		wireType, err := wireType(p.Type)
		if err != nil {
			return Schema{}, &Error{
				Kind:    KindUnsupportedType,
				Message: "tool " + t.Name() + " parameter " + p.Name + " has unsupported type " + string(p.Type),
				Param:   p.Name,
			}
		}

		prop := PropertySchema{
			Type:        wireType,
			Description: p.Description,
			Default:     p.Default,
		}
		if p.Type == ParamEnum {
			prop.Enum = p.Enum
		}
		input.Properties[p.Name] = prop

		if p.Required {
			input.Required = append(input.Required, p.Name)
		}
	}

	return Schema{
		Name:        t.Name(),
		Description: t.Description(),
		ToolType:    t.Type(),
		InputSchema: input,
	}, nil
}

// wireType はパラメータ型をJSONスキーマの型名に変換
func wireType(pt ParamType) (string, error) {
	switch pt {
	case ParamString, ParamEnum:
		return "string", nil
	case ParamNumber:
		return "number", nil
	case ParamBoolean:
		return "boolean", nil
	case ParamObject:
		return "object", nil
	case ParamArray:
		return "array", nil
	default:
		return "", NewError(KindUnsupportedType, "unsupported parameter type %q", pt)
	}
}
