package supervisor

import (
	"bufio"
	"io"
	"sync/atomic"

	"github.com/astrotux/astrotuxsupervisor/internal/logger"
)

// readStderr pumps the DS child's stderr into s.stderrCh, grounded on
// avorion/goroutines.go's superviseAvorionOut scanner loop. Unlike that
// loop, there is no close channel to select against here: the scanner
// naturally returns when the pipe closes at process exit, and in between
// reads it consults stderrStop (spec.md §4.10), an atomic flag Kill sets so
// a forced teardown doesn't wait on a child that may never produce another
// line.
func readStderr(s *Supervisor, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if atomic.LoadInt32(&s.stderrStop) != 0 {
			return
		}
		line := scanner.Text()
		logger.LogStderr(s, line)
		select {
		case s.stderrCh <- line:
		default:
			logger.LogDebug(s, "stderr channel full, dropping line")
		}
	}
}
