package session

import (
	"sync/atomic"
	"time"
)

const queueBuffer = 1024

// Queue は1セッション分のイベントをFIFOで保持します。
// 生産者はそのセッションのジョブ1つ、消費者はストリーム接続1つに限られます。
type Queue struct {
	ch      chan Event
	dropped atomic.Int64
}

func newQueue() *Queue {
	return &Queue{ch: make(chan Event, queueBuffer)}
}

// Emit はイベントをキューへ積みます。呼び出し側をブロックしないよう、
// バッファが一杯の場合はイベントを破棄します（購読者がいない場合の逃がし弁）。
func (q *Queue) Emit(evt Event) {
	select {
	case q.ch <- evt:
	default:
		q.dropped.Add(1)
	}
}

// Receive はタイムアウト付きでイベントを1件取り出します。
// タイムアウトした場合は (nil, false) を返します。
func (q *Queue) Receive(timeout time.Duration) (Event, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case evt := <-q.ch:
		return evt, true
	case <-timer.C:
		return nil, false
	}
}

// Dropped は破棄されたイベントの累計数を返します。
func (q *Queue) Dropped() int64 {
	return q.dropped.Load()
}

// Len は現在バッファに滞留しているイベント数を返します。
func (q *Queue) Len() int {
	return len(q.ch)
}
