package model

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID はリソース・ユーザーを識別する正規化済みの識別子。
// 値型のため == でそのまま比較できる。文字列との比較は型レベルで行えない。
type ID uuid.UUID

// NilID は未設定の識別子。
var NilID ID

// NewID は新しいランダムなIDを生成する。
func NewID() ID {
	return ID(uuid.New())
}

// ParseID は文字列をIDに変換する。
// 空文字列や不正な形式の場合はエラーを返す。大文字・波括弧付きの表記も正規化される。
func ParseID(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return NilID, fmt.Errorf("empty id")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return NilID, fmt.Errorf("invalid id %q: %w", s, err)
	}
	if u == uuid.Nil {
		return NilID, fmt.Errorf("nil id is not allowed")
	}
	return ID(u), nil
}

// MustParseID はParseIDのpanic版。テストと定数定義用。
func MustParseID(s string) ID {
	id, err := ParseID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String は正規化された文字列表現（小文字・ハイフン区切り）を返す。
func (id ID) String() string {
	return uuid.UUID(id).String()
}

// IsZero はIDが未設定かどうかを返す。
func (id ID) IsZero() bool {
	return id == NilID
}

// MarshalText はencoding.TextMarshalerを実装する。
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText はencoding.TextUnmarshalerを実装する。
func (id *ID) UnmarshalText(b []byte) error {
	parsed, err := ParseID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Value はdriver.Valuerを実装する。
func (id ID) Value() (driver.Value, error) {
	if id.IsZero() {
		return nil, nil
	}
	return id.String(), nil
}

// Scan はsql.Scannerを実装する。NULLは NilID になる。
func (id *ID) Scan(src any) error {
	if src == nil {
		*id = NilID
		return nil
	}
	var u uuid.UUID
	if err := u.Scan(src); err != nil {
		return fmt.Errorf("failed to scan id: %w", err)
	}
	*id = ID(u)
	return nil
}
