// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService は外部サービスから取得したプレイリストの説明文を
// 共有ビューで表示する前にサニタイズする。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// リンクと改行以外のタグを除去する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService は説明文のサニタイズ機能のインターフェースを定義する。
type ContentSanitizerService interface {
	// Sanitize はHTMLを含む説明文をサニタイズして安全なHTMLを返す。
	// aタグ（httpsのみ）とbrタグ以外は除去し、script等は中身ごと除去する。
	// aタグにはtarget="_blank"とrel="noopener noreferrer"が自動付与される。
	Sanitize(raw string) string

	// PlainText は全てのタグを除去し、HTMLエンティティを復元したテキストを返す。
	PlainText(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type contentSanitizer struct {
	policy *bluemonday.Policy
	strict *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
func NewContentSanitizer() ContentSanitizerService {
	p := bluemonday.NewPolicy()
	p.AllowElements("br")

	// 相対URLはSpotify上のパスになるため共有ビューでは不許可
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("https")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &contentSanitizer{
		policy: p,
		strict: bluemonday.StrictPolicy(),
	}
}

// Sanitize は説明文をサニタイズして安全なHTMLを返す。
func (s *contentSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}

// PlainText はタグを除去したテキストを返す。
func (s *contentSanitizer) PlainText(raw string) string {
	return strings.TrimSpace(html.UnescapeString(s.strict.Sanitize(raw)))
}
