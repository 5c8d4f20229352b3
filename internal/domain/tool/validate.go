package tool

import (
	"reflect"
	"strings"
)

// ValidateArguments は呼び出し引数をパラメータ宣言に対して検証し、
// 省略された任意パラメータにデフォルト値を適用した引数を返す。
// 失敗した場合はValidationError（問題のパラメータ名付き）を返し、
// ツールは一切実行されない
func ValidateArguments(params []Parameter, args map[string]interface{}) (map[string]interface{}, error) {
	declared := make(map[string]Parameter, len(params))
	for _, p := range params {
		declared[p.Name] = p
	}

	// 未知のキーは拒否
	var unknown []string
	for key := range args {
		if _, ok := declared[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		return nil, NewParamError(unknown[0], "unknown argument(s): %s", strings.Join(unknown, ", "))
	}

	applied := make(map[string]interface{}, len(params))
	for _, p := range params {
		value, present := args[p.Name]
		if !present {
			if p.Required {
				return nil, NewParamError(p.Name, "required parameter %q is missing", p.Name)
			}
			if p.Default != nil {
				applied[p.Name] = p.Default
			}
			continue
		}

		if err := checkType(p, value); err != nil {
			return nil, err
		}
		applied[p.Name] = value
	}

	return applied, nil
}

// checkType は値がパラメータ型に適合するかを検証
func checkType(p Parameter, value interface{}) error {
	switch p.Type {
	case ParamString:
		if _, ok := value.(string); !ok {
			return NewParamError(p.Name, "parameter %q must be a string, got %T", p.Name, value)
		}
	case ParamNumber:
		if !isNumber(value) {
			return NewParamError(p.Name, "parameter %q must be a number, got %T", p.Name, value)
		}
	case ParamBoolean:
		if _, ok := value.(bool); !ok {
			return NewParamError(p.Name, "parameter %q must be a boolean, got %T", p.Name, value)
		}
	case ParamObject:
		if value == nil || reflect.ValueOf(value).Kind() != reflect.Map {
			return NewParamError(p.Name, "parameter %q must be an object, got %T", p.Name, value)
		}
	case ParamArray:
		if value == nil || reflect.ValueOf(value).Kind() != reflect.Slice {
			return NewParamError(p.Name, "parameter %q must be an array, got %T", p.Name, value)
		}
	case ParamEnum:
		s, ok := value.(string)
		if !ok {
			return NewParamError(p.Name, "parameter %q must be a string, got %T", p.Name, value)
		}
		for _, allowed := range p.Enum {
			if s == allowed {
				return nil
			}
		}
		return NewParamError(p.Name, "parameter %q must be one of [%s], got %q",
			p.Name, strings.Join(p.Enum, ", "), s)
	default:
		return NewError(KindUnsupportedType, "parameter %q has unsupported type %q", p.Name, p.Type)
	}
	return nil
}

// isNumber はJSON数値として扱える型かを判定。
// JSONデコード後はfloat64だが、Go側から直接呼ばれる場合は整数型も来る
func isNumber(value interface{}) bool {
	switch value.(type) {
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	default:
		return false
	}
}
