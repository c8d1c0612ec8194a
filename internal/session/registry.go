package session

import (
	"sync"

	"github.com/google/uuid"
)

// Registry はセッションIDとイベントキューの対応を管理します。
// ロックはマップ自体にのみ掛かり、取得済みキューの操作は直列化しません。
type Registry struct {
	mu     sync.Mutex
	queues map[string]*Queue
}

// NewRegistry は空の Registry を生成します。
func NewRegistry() *Registry {
	return &Registry{queues: make(map[string]*Queue)}
}

// Create は新しいセッションIDを発行し、空のキューを割り当てます。
func (r *Registry) Create() (string, *Queue) {
	id := uuid.NewString()
	q := newQueue()

	r.mu.Lock()
	r.queues[id] = q
	r.mu.Unlock()

	return id, q
}

// Ensure は指定IDのキューを返します。存在しない場合は新規に割り当てます
// （ジョブ開始時の暗黙的なセッション生成に対応）。
func (r *Registry) Ensure(id string) *Queue {
	r.mu.Lock()
	defer r.mu.Unlock()

	if q, ok := r.queues[id]; ok {
		return q
	}
	q := newQueue()
	r.queues[id] = q
	return q
}

// Get は既存セッションのキューを返します。
func (r *Registry) Get(id string) (*Queue, bool) {
	r.mu.Lock()
	q, ok := r.queues[id]
	r.mu.Unlock()
	return q, ok
}

// Destroy はセッションを破棄します。未配信のイベントはキューごと破棄されます。
// 存在しないIDに対しては何もしません（冪等）。
func (r *Registry) Destroy(id string) {
	r.mu.Lock()
	delete(r.queues, id)
	r.mu.Unlock()
}

// Len は現在登録されているセッション数を返します。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queues)
}
