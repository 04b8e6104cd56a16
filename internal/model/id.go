package model

import (
	"regexp"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var idPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// NewID はドキュメントストア互換の24桁16進数IDを生成する。
// PostgreSQLバックエンドでも同じ形式を使う。
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// IsValidID はIDが24桁の16進数かどうかを返す。
func IsValidID(id string) bool {
	return idPattern.MatchString(id)
}
