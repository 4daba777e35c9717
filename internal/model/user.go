// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// コンテンツからは参照されるのみで、このサービスでは所有しない。
type User struct {
	ID        ID
	Username  string
	Email     string
	FullName  string
	Avatar    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OwnerProjection はコンテンツに埋め込む所有者の縮約ビュー。
// fullName、username、avatar のみを公開する。
type OwnerProjection struct {
	FullName string
	Username string
	Avatar   string
}

// Project はユーザーを所有者プロジェクションに変換する。
func (u *User) Project() *OwnerProjection {
	if u == nil {
		return nil
	}
	return &OwnerProjection{
		FullName: u.FullName,
		Username: u.Username,
		Avatar:   u.Avatar,
	}
}

// Session はユーザーのログインセッションを表す。
// セッションの発行は外部の認証サービスが行い、このサービスは参照のみ行う。
type Session struct {
	ID        string
	UserID    ID
	ExpiresAt time.Time
	CreatedAt time.Time
}
