// Package scroll decides when a message list follows new content to the
// bottom. Scroll adjustments are queued and run after the list has been
// re-rendered, so they measure the committed content.
package scroll

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/xonecas/arona-chat/internal/constants"
	"github.com/xonecas/arona-chat/internal/core"
)

// Viewport is a scrollable region. Units are whatever the renderer uses
// (terminal rows here).
type Viewport interface {
	ScrollHeight() int
	ScrollTop() int
	ClientHeight() int
	ScrollTo(top int, smooth bool)
}

// Locator finds a viewport by its stable identifier.
type Locator interface {
	Lookup(id string) (Viewport, bool)
}

// Registry is a Locator backed by a map.
type Registry struct {
	mu        sync.RWMutex
	viewports map[string]Viewport
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{viewports: make(map[string]Viewport)}
}

// Register makes vp findable under id.
func (r *Registry) Register(id string, vp Viewport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.viewports[id] = vp
}

// Unregister removes id.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.viewports, id)
}

// Lookup implements Locator.
func (r *Registry) Lookup(id string) (Viewport, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	vp, ok := r.viewports[id]
	return vp, ok
}

// Queue holds tasks to run after the next render commit.
type Queue struct {
	mu    sync.Mutex
	tasks []func()
}

// Enqueue adds a task.
func (q *Queue) Enqueue(task func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
}

// Pending returns the number of queued tasks.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Flush runs and clears the queued tasks. Call it once the list has been
// re-rendered. Tasks enqueued while flushing wait for the next commit.
func (q *Queue) Flush() int {
	q.mu.Lock()
	tasks := q.tasks
	q.tasks = nil
	q.mu.Unlock()

	for _, task := range tasks {
		task()
	}
	return len(tasks)
}

// Controller applies the scroll contract to one viewport.
type Controller struct {
	locator   Locator
	id        string
	queue     *Queue
	threshold int
}

// NewController creates a controller for the viewport registered as id.
// A threshold below 1 uses constants.DefaultNearBottomThreshold.
func NewController(locator Locator, id string, queue *Queue, threshold int) *Controller {
	if threshold < 1 {
		threshold = constants.DefaultNearBottomThreshold
	}
	return &Controller{locator: locator, id: id, queue: queue, threshold: threshold}
}

// Threshold returns the near-bottom distance.
func (c *Controller) Threshold() int {
	return c.threshold
}

// ScrollToBottom queues a scroll to the maximum offset, measured after the
// next render commit. A missing viewport makes it a no-op.
func (c *Controller) ScrollToBottom(smooth bool) {
	c.queue.Enqueue(func() {
		vp, ok := c.locator.Lookup(c.id)
		if !ok {
			return
		}
		top := vp.ScrollHeight() - vp.ClientHeight()
		if top < 0 {
			top = 0
		}
		vp.ScrollTo(top, smooth)
	})
}

// IsNearBottom reports whether the remaining scroll distance is below the
// controller's threshold. It is true when no viewport is registered.
func (c *Controller) IsNearBottom() bool {
	return c.IsNearBottomWithin(c.threshold)
}

// IsNearBottomWithin is IsNearBottom with an explicit threshold.
func (c *Controller) IsNearBottomWithin(threshold int) bool {
	vp, ok := c.locator.Lookup(c.id)
	if !ok {
		return true
	}
	return vp.ScrollHeight()-vp.ScrollTop()-vp.ClientHeight() < threshold
}

// Follow reacts to a message event for conversationID. When messages were
// added and the view was near the bottom before they render, it queues a
// scroll to the bottom and reports true. The first page of a freshly opened
// conversation always scrolls.
func (c *Controller) Follow(e core.Event, conversationID string) bool {
	if e.Type != core.EventMessagesChanged || e.ConversationID != conversationID {
		return false
	}
	data, ok := e.Data.(core.MessagesData)
	if !ok || len(data.Added) == 0 {
		return false
	}

	firstPage := !data.Appended && data.Page == 2
	if !firstPage && !c.IsNearBottom() {
		log.Debug().Str("conversation_id", conversationID).Msg("not following new messages, viewport scrolled up")
		return false
	}
	c.ScrollToBottom(data.Appended)
	return true
}
