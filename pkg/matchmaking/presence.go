package matchmaking

import "github.com/anatoly-dev/go-ws-matchmaker/pkg/models"

type Counts struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	Pairs     int `json:"pairs"`
}

func (e *Engine) Counts() Counts {
	return Counts{
		Total:     e.registry.Len(),
		Available: e.queue.Len(),
		Pairs:     e.pairs.Len() / 2,
	}
}

// BroadcastCounts sends the presence snapshot to every connected client. A
// client whose connection refuses the message is skipped.
func (e *Engine) BroadcastCounts() {
	counts := e.Counts()
	e.observer.PresenceChanged(counts.Total, counts.Available, counts.Pairs)

	msg := models.NewUpdateUsers(counts.Total, counts.Available)
	e.registry.Each(func(c *Client) {
		c.send(msg)
	})
}
