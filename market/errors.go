package market

import (
	"errors"
	"strings"

	"campusmart/backend"
)

// Kind 是錯誤分類，同時可以作為 errors.Is 的比對目標
type Kind string

func (k Kind) Error() string {
	return string(k)
}

const (
	ErrValidation    Kind = "validation error"
	ErrUnauthorized  Kind = "unauthorized"
	ErrNotFound      Kind = "not found"
	ErrTransient     Kind = "transient backend error"
	ErrConfiguration Kind = "configuration error"
)

// FieldError 描述單一欄位的驗證失敗
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error 是核心操作回傳的錯誤
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString("[" + e.Op + "] ")
	}
	sb.WriteString(string(e.Kind))
	if e.Message != "" {
		sb.WriteString(": " + e.Message)
	}
	for i, f := range e.Fields {
		if i == 0 {
			sb.WriteString(": ")
		} else {
			sb.WriteString("; ")
		}
		sb.WriteString(f.Field + " " + f.Message)
	}
	if e.Err != nil {
		sb.WriteString(", err=" + e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// Field 回傳指定欄位的錯誤訊息
func (e *Error) Field(name string) (string, bool) {
	for _, f := range e.Fields {
		if f.Field == name {
			return f.Message, true
		}
	}
	return "", false
}

func newValidationError(op string, fields []FieldError) *Error {
	return &Error{Kind: ErrValidation, Op: op, Fields: fields}
}

func newUnauthorized(op, message string) *Error {
	return &Error{Kind: ErrUnauthorized, Op: op, Message: message}
}

func newNotFound(op, message string) *Error {
	return &Error{Kind: ErrNotFound, Op: op, Message: message}
}

func newTransient(op string, err error) *Error {
	return &Error{Kind: ErrTransient, Op: op, Message: "backend request failed", Err: err}
}

// NewConfigurationError 建立設定錯誤，啟動流程遇到時應直接結束
func NewConfigurationError(op, message string, err error) *Error {
	return &Error{Kind: ErrConfiguration, Op: op, Message: message, Err: err}
}

// KindOf 取得錯誤分類，無法辨識的錯誤視為 ErrTransient
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrTransient
}

// normalize 將後端錯誤轉為上述分類，並保留原始訊息
func normalize(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	switch {
	case errors.Is(err, backend.ErrNoRows):
		return &Error{Kind: ErrNotFound, Op: op, Message: "record not found", Err: err}
	case errors.Is(err, backend.ErrMissingCapability):
		return NewConfigurationError(op, "backend client is incomplete", err)
	}
	return newTransient(op, err)
}
