package tool

import (
	"errors"
	"fmt"
)

// Kind はエラー種別を表す安定した識別子
type Kind string

const (
	KindDuplicateTool    Kind = "DuplicateToolError"
	KindNotFound         Kind = "NotFoundError"
	KindValidation       Kind = "ValidationError"
	KindUnsupportedType  Kind = "UnsupportedTypeError"
	KindExecutionTimeout Kind = "ExecutionTimeoutError"
	KindToolExecution    Kind = "ToolExecutionError"
	KindHandshakeTimeout Kind = "HandshakeTimeoutError"
	KindSessionClosed    Kind = "SessionClosedError"
	KindConnectionLost   Kind = "ConnectionLostError"
	KindClientTimeout    Kind = "ClientTimeoutError"
	KindProtocol         Kind = "ProtocolError"
)

// Error は種別付きエラー。呼び出し側はKindで分岐できる
type Error struct {
	Kind    Kind
	Message string
	Param   string // 問題のあったパラメータ名（ValidationErrorの場合）
	cause   error
}

// Error はエラーメッセージを返す
func (e *Error) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (parameter %q)", e.Kind, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap は元のエラーを返す
func (e *Error) Unwrap() error {
	return e.cause
}

// NewError は新しい種別付きエラーを作成
func NewError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewParamError はパラメータ名付きのValidationErrorを作成
func NewParamError(param, format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...), Param: param}
}

// WrapError は元のエラーを保持した種別付きエラーを作成
func WrapError(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// IsKind はエラーが指定された種別かを判定
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf はエラーの種別を返す。種別付きでない場合はToolExecutionError扱い
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindToolExecution
}
