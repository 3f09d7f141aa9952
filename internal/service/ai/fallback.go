package ai

import (
	"errors"
	"os/exec"
	"strings"

	"askbridge/internal/models"
	"askbridge/internal/service/prompt"
)

var fallbackHints = []string{
	"1. ファーストビューでは主要メッセージとCTAをスクロール前に収め、視認性を高める余白とタイポグラフィを確保する。",
	"2. セクションごとに背景トーンや見出しレベルを変え、縦長レイアウトでも情報の塊を把握しやすくする。",
	"3. ツールバーとフッターはアクセシブルなコントラストを維持し、主要な行動導線を常に提示する。",
	"4. ボタンエリアはプライマリCTAと補足リンクを整理し、必要に応じてスクロール追従表示で離脱を防ぐ。",
	"5. カラーパレットやタイポグラフィスタイルはコンポーネント化し、再利用と一貫性を促進する。",
}

const fallbackNote = "※ この回答は自動補完されたヒントであり、最終提案時には文脈に合わせてブラッシュアップしてください。"

// FailureKind classifies why a backend call failed.
type FailureKind string

const (
	FailureTimeout   FailureKind = "timeout"
	FailureAuth      FailureKind = "auth"
	FailureRateLimit FailureKind = "rate_limit"
	FailureNetwork   FailureKind = "network"
	FailureMissing   FailureKind = "missing_command"
	FailureUnknown   FailureKind = "unknown"
)

// ClassifyFailure maps an error to a FailureKind using its chain first and
// its message second.
func ClassifyFailure(err error) FailureKind {
	if err == nil {
		return FailureUnknown
	}
	if errors.Is(err, models.ErrCLITimeout) {
		return FailureTimeout
	}
	if errors.Is(err, exec.ErrNotFound) {
		return FailureMissing
	}
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "rate limit", "rate_limit", "too many requests", "429", "usage limit", "quota"):
		return FailureRateLimit
	case containsAny(msg, "unauthorized", "401", "403", "api key", "api_key", "not logged in", "login", "authenticat", "credential"):
		return FailureAuth
	case containsAny(msg, "timed out", "timeout", "deadline exceeded"):
		return FailureTimeout
	case containsAny(msg, "network", "connection refused", "connection reset", "no such host", "econnrefused", "enotfound", "dns", "tls"):
		return FailureNetwork
	case containsAny(msg, "executable file not found", "no such file or directory", "command not found"):
		return FailureMissing
	}
	return FailureUnknown
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func troubleshooting(tool models.Tool, kind FailureKind) []string {
	cmd := string(tool)
	switch kind {
	case FailureTimeout:
		return []string{
			"- 応答がタイムアウトしました。質問を短くするか、`options.timeoutMs` を延ばして再試行してください。",
			"- デザイン文脈が長すぎる場合は、選択範囲を絞ってください。",
		}
	case FailureAuth:
		if tool == models.ToolClaude {
			return []string{"- 認証に失敗しました。ターミナルで `claude` を起動しログイン状態を確認してください。"}
		}
		return []string{"- 認証に失敗しました。ターミナルで `codex login` を実行し、資格情報を更新してください。"}
	case FailureRateLimit:
		return []string{"- 利用上限またはレート制限に達しました。しばらく待ってから再試行してください。"}
	case FailureNetwork:
		return []string{"- ネットワーク接続を確認してください。プロキシ環境では環境変数の設定も確認してください。"}
	case FailureMissing:
		return []string{"- `" + cmd + "` コマンドが見つかりません。インストール状況と PATH、または設定のコマンドパスを確認してください。"}
	}
	return []string{"- サーバーログで詳細を確認し、`" + cmd + "` コマンドを手動で実行して動作を確かめてください。"}
}

// BuildFallbackAnswer produces the degraded-mode answer returned when a
// backend fails: the user's request, the observed design context, generic
// improvement hints, diagnostics and a closing note.
func BuildFallbackAnswer(tool models.Tool, messages []models.ChatMessage, cause error) string {
	var userMessage string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == models.RoleUser {
			userMessage = strings.TrimSpace(messages[i].Content)
			break
		}
	}

	var contexts []string
	for _, m := range messages {
		if m.Role == models.RoleSystem && strings.Contains(m.Content, prompt.DesignContextLabel) {
			contexts = append(contexts, strings.TrimSpace(strings.Replace(m.Content, prompt.DesignContextLabel, "", 1)))
		}
	}
	designContext := strings.Join(contexts, "\n")

	var sections []string
	if userMessage != "" {
		sections = append(sections, "**ユーザーからの要望**", userMessage, "")
	}
	if designContext != "" {
		sections = append(sections, "**観察したデザインの状況**", designContext, "")
	}
	sections = append(sections, "**改善のヒント**")
	sections = append(sections, fallbackHints...)

	if cause != nil {
		sections = append(sections, "", "**診断情報**", cause.Error(), "")
		sections = append(sections, "**トラブルシューティング**")
		sections = append(sections, troubleshooting(tool, ClassifyFailure(cause))...)
	}

	sections = append(sections, "", fallbackNote)
	return strings.Join(sections, "\n")
}
