package domain

import (
	"encoding/json"
	"iter"
)

// MessageLog is the ordered, append-only history of a run.
//
// The zero value is an empty log. A MessageLog is immutable: Append returns a new
// log and leaves the receiver (and every snapshot taken from it) untouched, so
// streamed snapshots can be retained safely.
type MessageLog struct {
	entries []Message
}

// NewMessageLog creates a log holding the given messages, in order.
func NewMessageLog(msgs ...Message) MessageLog {
	return MessageLog{}.Append(msgs...)
}

// Append returns a new log with msgs added at the end.
func (l MessageLog) Append(msgs ...Message) MessageLog {
	if len(msgs) == 0 {
		return l
	}
	// Always reallocate: sharing a backing array between snapshots would let a
	// later append overwrite a slot visible through an older snapshot.
	next := make([]Message, len(l.entries), len(l.entries)+len(msgs))
	copy(next, l.entries)
	for _, m := range msgs {
		next = append(next, m.clone())
	}
	return MessageLog{entries: next}
}

// Len returns the number of messages in the log.
func (l MessageLog) Len() int {
	return len(l.entries)
}

// At returns the i-th message. It panics if i is out of range, like a slice index.
func (l MessageLog) At(i int) Message {
	return l.entries[i].clone()
}

// Last returns the most recent message, or false for an empty log.
func (l MessageLog) Last() (Message, bool) {
	if len(l.entries) == 0 {
		return Message{}, false
	}
	return l.entries[len(l.entries)-1].clone(), true
}

// Messages returns a copy of the log contents.
func (l MessageLog) Messages() []Message {
	out := make([]Message, len(l.entries))
	for i, m := range l.entries {
		out[i] = m.clone()
	}
	return out
}

// All iterates over the log in causal order.
func (l MessageLog) All() iter.Seq2[int, Message] {
	return func(yield func(int, Message) bool) {
		for i, m := range l.entries {
			if !yield(i, m.clone()) {
				return
			}
		}
	}
}

// MarshalJSON encodes the log as a JSON array of messages.
func (l MessageLog) MarshalJSON() ([]byte, error) {
	if l.entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.entries)
}

// UnmarshalJSON decodes a JSON array of messages.
func (l *MessageLog) UnmarshalJSON(data []byte) error {
	var msgs []Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return err
	}
	*l = NewMessageLog(msgs...)
	return nil
}
