package keylock

import "sync"

// Mutex is a set of locks addressed by key. Waiters on the same key acquire
// the lock in the order they called Lock. Unused keys hold no memory.
type Mutex struct {
	mu     sync.Mutex
	queues map[string][]chan struct{}
}

func New() *Mutex {
	return &Mutex{
		queues: make(map[string][]chan struct{}),
	}
}

// Lock blocks until the caller owns key and returns the function that releases it.
// The release function is safe to call more than once.
func (that *Mutex) Lock(key string) func() {
	ready := make(chan struct{})

	that.mu.Lock()
	queue, held := that.queues[key]
	that.queues[key] = append(queue, ready)
	if !held {
		close(ready)
	}
	that.mu.Unlock()

	<-ready

	var once sync.Once

	return func() {
		once.Do(func() { that.release(key) })
	}
}

// Do runs fn while holding key.
func (that *Mutex) Do(key string, fn func() error) error {
	unlock := that.Lock(key)
	defer unlock()

	return fn()
}

// Pending returns the number of holders and waiters for key.
func (that *Mutex) Pending(key string) int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.queues[key])
}

func (that *Mutex) release(key string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	queue := that.queues[key][1:]
	if len(queue) == 0 {
		delete(that.queues, key)
		return
	}

	that.queues[key] = queue
	close(queue[0])
}
