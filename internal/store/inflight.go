package store

import "fmt"

type MutationKind int

const (
	MutationUpdate MutationKind = iota + 1
	MutationDelete
)

func (k MutationKind) String() string {
	switch k {
	case MutationUpdate:
		return "update"
	case MutationDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// MutationKey identifies one kind of mutation on one task. While a key is
// held no second mutation with the same key starts.
type MutationKey struct {
	Kind MutationKind
	ID   string
}

func UpdateKey(id string) MutationKey { return MutationKey{Kind: MutationUpdate, ID: id} }
func DeleteKey(id string) MutationKey { return MutationKey{Kind: MutationDelete, ID: id} }

func (k MutationKey) String() string {
	return fmt.Sprintf("%s:%s", k.Kind, k.ID)
}

// inFlight is an advisory lock set. It is not safe for concurrent use;
// Store guards it with its own mutex.
type inFlight map[MutationKey]struct{}

// acquire takes key and reports whether it was free.
func (f inFlight) acquire(key MutationKey) bool {
	if _, held := f[key]; held {
		return false
	}
	f[key] = struct{}{}
	return true
}

func (f inFlight) release(key MutationKey) {
	delete(f, key)
}

func (f inFlight) held(key MutationKey) bool {
	_, ok := f[key]
	return ok
}
