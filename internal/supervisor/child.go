package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/crypto/ssh/terminal"

	"github.com/astrotux/astrotuxsupervisor/internal/logger"
)

// launchChild starts the DS process under Wine. Setpgid is only set when
// stdout is a real terminal, grounded verbatim on avorion/server.go: under
// a non-interactive supervisor (daemonized, piped logs) putting the child
// in its own process group makes ^C-style signals from a parent shell miss
// it entirely.
func (s *Supervisor) launchChild(ctx context.Context) error {
	exe := filepath.Join(s.astroPath, dsExecutableRelPath)
	cmd := exec.CommandContext(ctx, s.wineExec, exe, "-log")
	cmd.Dir = s.astroPath
	cmd.Env = append(os.Environ(),
		"WINEPREFIX="+s.winePrefix,
		"WINEDEBUG=-all",
	)

	if terminal.IsTerminal(int(os.Stdout.Fd())) {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("supervisor: opening stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("supervisor: starting DS process: %w", err)
	}

	s.cmd = cmd
	s.launchTime = time.Now()
	s.childDone = make(chan struct{})

	go readStderr(s, stderr)
	go s.waitChild()

	logger.LogInit(s, fmt.Sprintf("launched DS process pid %d", cmd.Process.Pid))
	return nil
}

func (s *Supervisor) waitChild() {
	err := s.cmd.Wait()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			s.childExitCode = exitErr.ExitCode()
		} else {
			s.childExitCode = -1
		}
	}
	close(s.childDone)
}

// killChild force-terminates a DS process that failed to come up cleanly,
// or that must be stopped without going through RCON's DSServerShutdown.
// Grounded on dedicatedserver.py's kill(): "wineserver -k -w" first, with a
// SIGKILL to the process group as the fallback once the timeout elapses.
func (s *Supervisor) killChild(ctx context.Context) {
	if s.cmd == nil || s.cmd.Process == nil {
		return
	}

	killCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	wineserver := exec.CommandContext(killCtx, s.wineserverExec, "-k", "-w")
	wineserver.Env = append(os.Environ(), "WINEPREFIX="+s.winePrefix)
	if err := wineserver.Run(); err != nil {
		logger.LogWarning(s, "wineserver -k -w failed, falling back to SIGKILL: "+err.Error())
		_ = syscall.Kill(-s.cmd.Process.Pid, syscall.SIGKILL)
	}

	select {
	case <-s.childDone:
	case <-time.After(15 * time.Second):
		_ = syscall.Kill(-s.cmd.Process.Pid, syscall.SIGKILL)
		<-s.childDone
	}
}
