// Package ownership はコンテンツ変更前の所有権検証を提供する。
//
// 変更系のリポジトリ操作は Verify が発行する Proof を引数に取るため、
// 所有権チェックを経由せずに変更を適用することはできない。
package ownership

import (
	"context"
	"errors"
	"fmt"

	"github.com/hitoshi/mediashare/internal/model"
)

// ErrInvalidProof は検証済みでない、または別種別向けの Proof が渡された場合のエラー。
var ErrInvalidProof = errors.New("ownership: invalid proof")

// Lookup はリソースの所有者を引くインターフェース。
// リソースが存在しない場合は found=false, err=nil を返す。
type Lookup interface {
	LookupOwner(ctx context.Context, resourceID model.ID) (owner model.ID, found bool, err error)
}

// LookupFunc は関数をLookupとして扱うアダプタ。
type LookupFunc func(ctx context.Context, resourceID model.ID) (model.ID, bool, error)

// LookupOwner はLookupインターフェースを実装する。
func (f LookupFunc) LookupOwner(ctx context.Context, resourceID model.ID) (model.ID, bool, error) {
	return f(ctx, resourceID)
}

// Guard は1種類のリソースについて所有権を判定する。
type Guard struct {
	kind   model.ResourceKind
	lookup Lookup
}

// NewGuard は新しいGuardを生成する。
func NewGuard(kind model.ResourceKind, lookup Lookup) *Guard {
	return &Guard{kind: kind, lookup: lookup}
}

// IsOwner はprincipalがリソースの所有者かどうかを返す。
// リソースが存在しない場合は false を返し、エラーにはしない。
// ストレージ障害はエラーとして返し、true とは報告しない。
func (g *Guard) IsOwner(ctx context.Context, resourceID, principalID model.ID) (bool, error) {
	owner, found, err := g.lookup.LookupOwner(ctx, resourceID)
	if err != nil {
		return false, fmt.Errorf("failed to lookup %s owner: %w", g.kind, err)
	}
	if !found || principalID.IsZero() {
		return false, nil
	}
	return owner == principalID, nil
}

// Verify は所有権を検証し、変更操作に必要なProofを返す。
// リソースが存在しない場合は未検出エラー、所有者でない場合は権限エラーを返す。
func (g *Guard) Verify(ctx context.Context, resourceID, principalID model.ID) (Proof, error) {
	owner, found, err := g.lookup.LookupOwner(ctx, resourceID)
	if err != nil {
		return Proof{}, fmt.Errorf("failed to lookup %s owner: %w", g.kind, err)
	}
	if !found {
		return Proof{}, model.NewContentNotFoundError(g.kind, resourceID.String())
	}
	if principalID.IsZero() || owner != principalID {
		return Proof{}, model.NewNotOwnerError(g.kind)
	}
	return Proof{kind: g.kind, resourceID: resourceID, ownerID: owner}, nil
}
