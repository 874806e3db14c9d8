package mutator

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jittakal/satbqueue/internal/markqueue"
	"github.com/jittakal/satbqueue/pkg/satb"
)

// Ensure implementation satisfies interface at compile time.
var _ markqueue.ThreadSet = (*Registry)(nil)

// Thread is a registered mutator thread and its mark queue.
type Thread struct {
	id    string
	queue *markqueue.Queue
}

// ID returns the thread identifier.
func (t *Thread) ID() string {
	return t.id
}

// Queue returns the thread's mark queue.
func (t *Thread) Queue() *markqueue.Queue {
	return t.queue
}

// WriteBarrier is the pre-write barrier: it records old, the value a
// reference slot held before being overwritten, when marking is active.
// Null values are not recorded. It reports whether old was recorded. The
// caller must be inside the safepoint.
func (t *Thread) WriteBarrier(old satb.Entry) bool {
	if !t.queue.IsActive() || old.Null() {
		return false
	}
	t.queue.Append(old)
	return true
}

// Registry tracks the live mutator threads and enumerates their queues for
// the queue set.
type Registry struct {
	safepoint *Safepoint
	logger    *zap.Logger

	mu      sync.Mutex
	threads []*Thread
}

// NewRegistry creates an empty registry.
func NewRegistry(safepoint *Safepoint, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		safepoint: safepoint,
		logger:    logger,
	}
}

// Register starts a new thread with a queue from qs. Registration happens
// inside the safepoint so the queue's activation state cannot change while
// it is being created.
func (r *Registry) Register(qs *markqueue.QueueSet) *Thread {
	r.safepoint.Enter()
	defer r.safepoint.Leave()

	id := uuid.NewString()
	t := &Thread{id: id, queue: qs.NewQueue(id)}

	r.mu.Lock()
	r.threads = append(r.threads, t)
	r.mu.Unlock()

	r.logger.Debug("Mutator thread registered", zap.String("thread_id", id))
	return t
}

// Unregister ends t. Its recorded entries are flushed to the completed
// list.
func (r *Registry) Unregister(t *Thread) {
	r.safepoint.Enter()
	defer r.safepoint.Leave()

	t.queue.Close()

	r.mu.Lock()
	for i, other := range r.threads {
		if other == t {
			r.threads = append(r.threads[:i], r.threads[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	r.logger.Debug("Mutator thread unregistered", zap.String("thread_id", t.id))
}

// Len returns the number of live threads.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.threads)
}

// ForEachQueue calls fn for the queue of every live thread.
func (r *Registry) ForEachQueue(fn func(*markqueue.Queue)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.threads {
		fn(t.queue)
	}
}
