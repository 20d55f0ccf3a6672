package queue

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// Sink receives decoded room assignment events from the consumer.
type Sink interface {
	Deliver(ev RoomAssignedEvent) error
}

// FileSink appends one line per assignment to <Dir>/notifications.log.
type FileSink struct {
	Dir string

	mu sync.Mutex
}

// NewFileSink returns a sink writing below dir ("logs" when empty).
func NewFileSink(dir string) *FileSink {
	if dir == "" {
		dir = "logs"
	}
	return &FileSink{Dir: dir}
}

// Path is the file the sink appends to.
func (s *FileSink) Path() string { return filepath.Join(s.Dir, "notifications.log") }

func (s *FileSink) Deliver(ev RoomAssignedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return errors.Wrapf(err, "mkdir %s", s.Dir)
	}
	f, err := os.OpenFile(s.Path(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "open notification log")
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] Room assigned | user_id=%s | name=%q | room=%d | queue_number=%d | entry_id=%s\n",
		ev.AssignedAt, ev.UserID, ev.DisplayName, ev.RoomNumber, ev.QueueNumber, ev.EntryID)
	if _, err := f.WriteString(line); err != nil {
		return errors.Wrap(err, "write notification log")
	}
	return nil
}
