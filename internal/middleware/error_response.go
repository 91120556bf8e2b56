package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/taskman/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
type ErrorResponseBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// WriteFailureResponse は失敗分類を統一フォーマットのJSONで書き込む。
// 分類ごとのHTTPステータス: validation→400、not_found→404、
// server→502、storage→500。
func WriteFailureResponse(w http.ResponseWriter, failure *model.Failure) {
	status := http.StatusInternalServerError
	switch failure.Kind {
	case model.FailureValidation:
		status = http.StatusBadRequest
	case model.FailureNotFound:
		status = http.StatusNotFound
	case model.FailureServer:
		status = http.StatusBadGateway
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Kind:    string(failure.Kind),
		Message: failure.Message,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Kind:    "storage",
		Message: "internal server error",
	})
}
