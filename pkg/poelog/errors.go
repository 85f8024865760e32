package poelog

import (
	"errors"
	"fmt"

	"github.com/poelog/poelog-go/internal/logfinder"
)

var (
	// ErrWatcherClosed is returned by Watch after Close.
	ErrWatcherClosed = errors.New("watcher closed")

	// ErrAlreadyWatching is returned when Watch is called a second time.
	ErrAlreadyWatching = errors.New("already watching")

	// ErrLogFileNotFound is returned when no client log file could be located.
	ErrLogFileNotFound = logfinder.ErrLogFileNotFound
)

// WatchOp identifies the stage of the watcher that failed.
type WatchOp string

const (
	WatchOpFindLog  WatchOp = "find_log"
	WatchOpOpen     WatchOp = "open"
	WatchOpDispatch WatchOp = "dispatch"
)

// WatchError is sent on the error channel when the watcher stops abnormally.
type WatchError struct {
	Op   WatchOp
	Path string
	Err  error
}

func (e *WatchError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("watch %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("watch %s: %v", e.Op, e.Err)
}

func (e *WatchError) Unwrap() error {
	return e.Err
}
