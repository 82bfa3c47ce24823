package archive

import (
	"errors"
	"fmt"

	"github.com/nhle/listarchive/internal/store"
)

var (
	// ErrDuplicateMessage matches *DuplicateMessageError.
	ErrDuplicateMessage = errors.New("duplicate message")

	// ErrIntegrity wraps constraint failures; the transaction was rolled
	// back.
	ErrIntegrity = errors.New("integrity error")

	ErrSelfParent        = errors.New("an email can't be its own parent")
	ErrCrossList         = errors.New("can't attach an email to an email of another list")
	ErrArchivingDisabled = errors.New("archiving is disabled for this list")

	// ErrNotFound is the store's not-found error.
	ErrNotFound = store.ErrNotFound
)

// DuplicateMessageError reports a message the list already archived.
type DuplicateMessageError struct {
	MessageID string
	Hash      string
}

func (e *DuplicateMessageError) Error() string {
	return fmt.Sprintf("duplicate message %s", e.MessageID)
}

func (e *DuplicateMessageError) Is(target error) bool {
	return target == ErrDuplicateMessage
}

func integrity(err error) error {
	return fmt.Errorf("%w: %w", ErrIntegrity, err)
}
