package kv

import "context"

// Ports for the key-value persistence the ledger sits on.
type (
	Reader interface {
		// Read returns the values of the keys that exist. Missing keys are absent from the map.
		Read(ctx context.Context, keys ...string) (map[string]string, error)
	}

	Writer interface {
		// Write applies every set and delete in b, all or nothing.
		Write(ctx context.Context, b Batch) error
	}

	Store interface {
		Reader
		Writer
	}
)

// Batch groups writes that must land together.
type Batch struct {
	Set    map[string]string
	Delete []string
}

func NewBatch() Batch {
	return Batch{Set: map[string]string{}}
}

// Put records key=value and returns the batch for chaining.
func (b Batch) Put(key, value string) Batch {
	if b.Set == nil {
		b.Set = map[string]string{}
	}
	b.Set[key] = value
	return b
}

// Remove records a delete of key and returns the batch for chaining.
func (b Batch) Remove(key string) Batch {
	b.Delete = append(b.Delete, key)
	return b
}

func (b Batch) Empty() bool {
	return len(b.Set) == 0 && len(b.Delete) == 0
}
