// Package display publishes the decoder state (the pending signal and the
// decoded sentence) to consoles, terminals and browsers.
package display

// Update is the state pushed after every decode loop iteration.
type Update struct {
	Signal   string `json:"signal"`
	Sentence string `json:"sentence"`
}

// Sink receives decoder state. Show must not block the caller.
type Sink interface {
	Show(u Update)
}

// Multi fans an update out to several sinks.
type Multi []Sink

// Show forwards u to every sink in order.
func (m Multi) Show(u Update) {
	for _, s := range m {
		s.Show(u)
	}
}

// Nop discards updates.
type Nop struct{}

// Show does nothing.
func (Nop) Show(Update) {}

// mailbox is a single-slot, latest-value hand-off. put never blocks: a value
// the reader has not taken yet is replaced.
type mailbox struct {
	ch chan Update
}

func newMailbox() *mailbox {
	return &mailbox{ch: make(chan Update, 1)}
}

func (m *mailbox) put(u Update) {
	for {
		select {
		case m.ch <- u:
			return
		default:
		}
		// Slot taken: discard the stale value and retry.
		select {
		case <-m.ch:
		default:
		}
	}
}
