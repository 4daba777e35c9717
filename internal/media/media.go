// Package media はアップロードされたファイルを永続的なメディアURLに変換する。
//
// 外部メディアホスト（HTTP）とS3互換オブジェクトストレージの2種類のバックエンドを持つ。
package media

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ErrResolution はメディアの解決に失敗したことを示す。
var ErrResolution = errors.New("media resolution failed")

// Ref はサーバー上に一時保存されたアップロードファイルへの参照。
type Ref struct {
	Field       string // フォームのフィールド名（videoFile, thumbnail）
	Path        string // 一時ファイルのパス
	Filename    string // クライアントが送信した元のファイル名
	ContentType string
	Size        int64
}

// Ext は元ファイル名の拡張子を小文字で返す。
func (r Ref) Ext() string {
	return strings.ToLower(filepath.Ext(r.Filename))
}

// Resolved は解決済みのメディア。
type Resolved struct {
	URL             string
	DurationSeconds float64 // 動画以外、または取得できない場合は0
}

// Resolver はファイル参照をメディアURLに変換するインターフェース。
type Resolver interface {
	Resolve(ctx context.Context, ref Ref) (*Resolved, error)
}

// Discarder は不要になったメディアを削除するインターフェース。
type Discarder interface {
	Discard(ctx context.Context, url string) error
}

// Backend はResolverとDiscarderの両方を備えたメディアバックエンド。
type Backend interface {
	Resolver
	Discarder
	// Name はメトリクス・ログ用のバックエンド名を返す。
	Name() string
}

// ResolveAll は複数の参照を並行して解決する。
// 1件でも失敗した場合は残りの解決をキャンセルし、最初のエラーを返す。
// 戻り値のスライスは引数と同じ順序で、失敗・未完了の要素はnilになる。
// 呼び出し側は成功済みの要素を後始末に使用できる。
func ResolveAll(ctx context.Context, r Resolver, refs ...Ref) ([]*Resolved, error) {
	results := make([]*Resolved, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			res, err := r.Resolve(gctx, ref)
			if err != nil {
				return fmt.Errorf("%s: %w", ref.Field, err)
			}
			results[i] = res
			return nil
		})
	}
	err := g.Wait()
	return results, err
}
