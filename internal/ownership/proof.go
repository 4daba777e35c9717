package ownership

import (
	"fmt"

	"github.com/hitoshi/mediashare/internal/model"
)

// Proof は所有権検証済みであることを示すトークン。
// フィールドは非公開で、有効な値はGuard.Verifyのみが生成する。
type Proof struct {
	kind       model.ResourceKind
	resourceID model.ID
	ownerID    model.ID
}

// Kind は検証対象のリソース種別を返す。
func (p Proof) Kind() model.ResourceKind { return p.kind }

// ResourceID は検証済みのリソースIDを返す。
func (p Proof) ResourceID() model.ID { return p.resourceID }

// OwnerID は検証済みの所有者IDを返す。
func (p Proof) OwnerID() model.ID { return p.ownerID }

// Valid はProofがVerifyによって発行されたものかどうかを返す。
func (p Proof) Valid() bool {
	return p.kind != "" && !p.resourceID.IsZero() && !p.ownerID.IsZero()
}

// Check はProofが指定種別向けに発行された有効なものかを検証する。
func (p Proof) Check(kind model.ResourceKind) error {
	if !p.Valid() {
		return ErrInvalidProof
	}
	if p.kind != kind {
		return fmt.Errorf("%w: issued for %s, used for %s", ErrInvalidProof, p.kind, kind)
	}
	return nil
}
