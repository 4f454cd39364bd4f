package cerr

import (
	"errors"
	"fmt"

	"github.com/kazz187/taskdeck/pkg/storage"
)

// StorageOp names the storage call that failed.
type StorageOp string

const (
	StorageRead   StorageOp = "read"
	StorageWrite  StorageOp = "write"
	StorageDelete StorageOp = "delete"
)

// WrapStorageError maps a storage failure on target to NotFound when the
// object is missing and to Internal otherwise.
func WrapStorageError(op StorageOp, target string, err error) error {
	if op != StorageWrite && errors.Is(err, storage.ErrNotFound) {
		return NewError(NotFound, fmt.Sprintf("%s not found", target), err)
	}
	return NewError(Internal, "server error", fmt.Errorf("failed to %s %s: %w", op, target, err))
}
