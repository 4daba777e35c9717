// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はユーザーが投稿したテキスト（投稿本文、動画タイトル・説明）を
// 保存前にサニタイズする。bluemondayの許可リストベースのポリシーを使用する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はユーザー投稿テキストのサニタイズ機能のインターフェースを定義する。
type ContentSanitizerService interface {
	// SanitizeText は全てのHTMLタグを除去したプレーンテキストを返す。
	// 投稿本文と動画タイトルに使用する。前後の空白は除去される。
	SanitizeText(raw string) string

	// SanitizeDescription は動画説明文をサニタイズする。
	// 改行・強調・リンク等の最小限のタグのみ許可する。前後の空白は除去される。
	// 戻り値はHTML断片であり、テキスト中の & < > " ' は実体参照のまま保存される。
	// クライアントはHTMLとして描画する前提で扱う。
	SanitizeDescription(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフで、複数リクエストから共有できる。
type contentSanitizer struct {
	strict      *bluemonday.Policy
	description *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// 説明文ポリシー:
//   - 許可タグ: p, br, strong, em, ul, ol, li, a
//   - aタグ: http/httpsの絶対URLのみ、rel="nofollow noreferrer noopener"とtarget="_blank"を付与
func NewContentSanitizer() *contentSanitizer {
	d := bluemonday.NewPolicy()
	d.AllowElements("p", "br", "strong", "em", "ul", "ol", "li")
	d.AllowAttrs("href").OnElements("a")
	d.AllowURLSchemes("http", "https")
	d.AllowRelativeURLs(false)
	d.RequireNoFollowOnLinks(true)
	d.RequireNoReferrerOnLinks(true)
	d.AddTargetBlankToFullyQualifiedLinks(true)

	return &contentSanitizer{
		strict:      bluemonday.StrictPolicy(),
		description: d,
	}
}

// SanitizeText はHTMLタグを除去したプレーンテキストを返す。
// StrictPolicyはエスケープ済みの文字列を返すため、保存用に実体参照を戻す。
func (s *contentSanitizer) SanitizeText(raw string) string {
	return strings.TrimSpace(html.UnescapeString(s.strict.Sanitize(raw)))
}

// SanitizeDescription は動画説明文をHTML断片としてサニタイズする。
// SanitizeTextと異なり実体参照は戻さない。戻すと許可タグ外の < が再びマークアップになる。
func (s *contentSanitizer) SanitizeDescription(raw string) string {
	return strings.TrimSpace(s.description.Sanitize(raw))
}
