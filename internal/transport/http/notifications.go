package http

import (
	"sync"

	"vocab-quiz-service/internal/domain"
)

// Notifications fans streak milestones out to every open websocket.
type Notifications struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan domain.StreakState
}

func NewNotifications() *Notifications {
	return &Notifications{subs: make(map[int]chan domain.StreakState)}
}

// StreakMilestone never blocks; a subscriber that is not keeping up misses the event.
func (n *Notifications) StreakMilestone(state domain.StreakState) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- state:
		default:
		}
	}
}

// Subscribe returns a channel of milestones and a cancel func that closes it.
func (n *Notifications) Subscribe() (<-chan domain.StreakState, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	ch := make(chan domain.StreakState, 4)
	n.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
			close(ch)
		})
	}
}
