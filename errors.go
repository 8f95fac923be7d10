package tagcache

import (
	"errors"
	"fmt"

	"github.com/unkn0wn-root/tagcache/store"
)

// Store failure taxonomy, re-exported so callers only need errors.Is against
// this package. Connectivity and timeout conditions are the only errors a
// read path surfaces; a miss (absent, expired, undecodable) is never an error.
var (
	ErrStoreUnavailable = store.ErrUnavailable
	ErrTimeout          = store.ErrTimeout
	ErrOperationFailed  = store.ErrFailed
)

// ErrNilValue is returned by Set when the value is nil; nothing is written.
var ErrNilValue = errors.New("tagcache: nil value")

// ErrInvalidTag is returned by Set when a tag is empty or longer than the
// entry envelope can carry; nothing is written.
var ErrInvalidTag = errors.New("tagcache: invalid tag")

// RemoveError reports a partially failed removal: the entry delete, the
// key->tags cleanup, and the expiry-index cleanup run as separate steps and
// any subset can fail independently. Steps that succeeded are not rolled back.
type RemoveError struct {
	Keys      []string
	EntryErr  error
	TagsErr   error
	ExpiryErr error
}

func (e *RemoveError) Error() string {
	return fmt.Sprintf("remove %d key(s) failed: entries=%v; tags=%v; expiry=%v",
		len(e.Keys), e.EntryErr, e.TagsErr, e.ExpiryErr)
}

func (e *RemoveError) Unwrap() []error {
	errs := make([]error, 0, 3)
	if e.EntryErr != nil {
		errs = append(errs, e.EntryErr)
	}
	if e.TagsErr != nil {
		errs = append(errs, e.TagsErr)
	}
	if e.ExpiryErr != nil {
		errs = append(errs, e.ExpiryErr)
	}
	return errs
}
