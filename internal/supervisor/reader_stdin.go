package supervisor

import (
	"bufio"
	"io"
	"strings"

	"github.com/astrotux/astrotuxsupervisor/internal/console"
	"github.com/astrotux/astrotuxsupervisor/internal/logger"
)

// RunStdinReader scans r for operator command lines and pushes parsed
// commands onto cmdQueue (spec.md §4.9). Lines arriving while stdin is
// inactive (before Start activates it, and after the DS process exits or is
// killed) are silently discarded rather than queued.
func (s *Supervisor) RunStdinReader(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		s.stdinMu.Lock()
		active := s.stdinActive
		s.stdinMu.Unlock()
		if !active {
			continue
		}

		rec, helpText, err := console.ParseCommand(line)
		if err != nil {
			logger.LogWarning(s, "command error: "+err.Error())
			continue
		}
		if helpText != "" {
			logger.LogInfo(s, helpText)
			continue
		}

		select {
		case s.cmdQueue <- rec:
		default:
			logger.LogWarning(s, "command queue full, dropping: "+line)
		}
	}
}

func (s *Supervisor) setStdinActive(active bool) {
	s.stdinMu.Lock()
	s.stdinActive = active
	s.stdinMu.Unlock()
}
