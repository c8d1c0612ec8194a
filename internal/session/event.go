// Package session はセッション単位のイベントキューとSSE配信を提供します。
package session

import "time"

// Event はセッションのキューを流れるイベントです。
// 生成後は不変であり、キュー内の順序は送出順のまま保たれます。
type Event interface {
	// Terminal は配信後にストリームを終了すべきイベントかどうかを返します。
	Terminal() bool
}

// Emitter はイベントの送出先を表します。
type Emitter interface {
	Emit(evt Event)
}

// LogEvent はジョブ実行中のログ1件を表します。
type LogEvent struct {
	Level     string  `json:"level"`
	Message   string  `json:"message"`
	Timestamp float64 `json:"timestamp"`

	terminal bool
}

// NewLogEvent はログイベントを生成します。
func NewLogEvent(level, message string, at time.Time) LogEvent {
	return LogEvent{
		Level:     level,
		Message:   message,
		Timestamp: float64(at.UnixNano()) / float64(time.Second),
	}
}

// NewTerminalLogEvent は配信後にストリームを終了させるログイベントを生成します。
// ジョブ失敗時の終端マーカーに使用します。
func NewTerminalLogEvent(level, message string, at time.Time) LogEvent {
	evt := NewLogEvent(level, message, at)
	evt.terminal = true
	return evt
}

// Terminal は Event インターフェースを満たします。
func (e LogEvent) Terminal() bool { return e.terminal }

// MilestoneEvent はステージの開始または完了を表します。
type MilestoneEvent struct {
	Type       string `json:"type"`
	Stage      string `json:"stage"`
	Percentage int    `json:"percentage"`
	Message    string `json:"message"`
	Completed  bool   `json:"completed,omitempty"`
}

// Terminal は最終ステージの完了マイルストーンでのみ true を返します。
func (e MilestoneEvent) Terminal() bool {
	return e.Completed && e.Stage == "complete"
}

// ProgressEvent はステージ内のチャンク進捗を表します。
type ProgressEvent struct {
	Type       string `json:"type"`
	Stage      string `json:"stage"`
	Current    int    `json:"current"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
	Message    string `json:"message"`
}

// Terminal は Event インターフェースを満たします。
func (e ProgressEvent) Terminal() bool { return false }
