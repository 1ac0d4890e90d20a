// Package logger provides the component-scoped logging API used throughout
// the supervisor. Every loggable component implements ILogger so that log
// lines carry the emitting component's name and respect its own verbosity,
// rather than going through one global logging singleton.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/gookit/color"
)

const (
	verbosePrefix = "VERB"
	debugPrefix   = "DEBG"
	errorPrefix   = " ERR"
	warnPrefix    = "WARN"
	infoPrefix    = "INFO"
	initPrefix    = "INIT"
	soutPrefix    = "SOUT"
	serrPrefix    = "SERR"

	debugLevel   = 2
	verboseLevel = 2
	infoLevel    = 1
	errorLevel   = 0
	warnLevel    = 0
)

var (
	spf     = fmt.Sprintf
	logfile *os.File
)

// ILogger describes an object that can be logged on behalf of.
type ILogger interface {
	UUID() string
	Loglevel() int
}

func prefixColor(prefix string) func(a ...interface{}) string {
	switch prefix {
	case errorPrefix, serrPrefix:
		return color.FgRed.Render
	case warnPrefix:
		return color.FgYellow.Render
	case initPrefix:
		return color.FgCyan.Render
	case debugPrefix, verbosePrefix:
		return color.FgGray.Render
	default:
		return color.FgGreen.Render
	}
}

func line(prefix, uuid, m string) string {
	render := prefixColor(prefix)
	return spf("[%s] [%s] %s", render(prefix), uuid, m)
}

// touch opens (and creates) a file, verifying that it is writable.
func touch(file string) error {
	f, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	return nil
}

// LogOutput logs DS stdout passthrough with no level gate.
func LogOutput(l ILogger, m string, chs ...chan []byte) {
	log.Output(2, line(soutPrefix, l.UUID(), m))
	sendToChans(spf("[%s] %s", l.UUID(), m), chs)
}

// LogStderr logs DS stderr passthrough with no level gate.
func LogStderr(l ILogger, m string, chs ...chan []byte) {
	log.Output(2, line(serrPrefix, l.UUID(), m))
	sendToChans(spf("[%s] %s", l.UUID(), m), chs)
}

// LogError logs an error unconditionally.
func LogError(l ILogger, m string, chs ...chan []byte) {
	msg := line(errorPrefix, l.UUID(), m)
	log.Output(2, msg)
	sendToChans(msg, chs)
}

// LogWarning logs a warning unconditionally.
func LogWarning(l ILogger, m string, chs ...chan []byte) {
	msg := line(warnPrefix, l.UUID(), m)
	log.Output(2, msg)
	sendToChans(msg, chs)
}

// LogDebug logs a debug message when Loglevel() >= 2.
func LogDebug(l ILogger, m string, chs ...chan []byte) {
	if l.Loglevel() >= debugLevel {
		log.Output(2, line(debugPrefix, l.UUID(), m))
	}
}

// LogVerbose logs a verbose message when Loglevel() >= 2.
func LogVerbose(l ILogger, m string, chs ...chan []byte) {
	if l.Loglevel() >= verboseLevel {
		log.Output(2, line(verbosePrefix, l.UUID(), m))
	}
}

// LogInfo logs an informational message when Loglevel() >= 1.
func LogInfo(l ILogger, m string, chs ...chan []byte) {
	if l.Loglevel() >= infoLevel {
		log.Output(2, line(infoPrefix, l.UUID(), m))
	}
	sendToChans(spf("[%s] [%s] %s", infoPrefix, l.UUID(), m), chs)
}

// LogInit logs a startup/lifecycle message unconditionally.
func LogInit(l ILogger, m string, chs ...chan []byte) {
	msg := line(initPrefix, l.UUID(), m)
	log.Output(2, msg)
	sendToChans(msg, chs)
}

func sendToChans(m string, chs []chan []byte) {
	for _, ch := range chs {
		if ch == nil {
			continue
		}
		select {
		case ch <- []byte(m):
		default:
		}
	}
}

// SetFile directs subsequent logging to both stdout and the file at path,
// creating the file if necessary. The parent directory must already exist.
func SetFile(path string) error {
	if err := touch(path); err != nil {
		return err
	}

	CloseLog()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	logfile = f
	log.SetOutput(io.MultiWriter(os.Stdout, logfile))
	return nil
}

// CloseLog closes the currently open logfile handle, if any.
func CloseLog() {
	if logfile != nil {
		logfile.Close()
		logfile = nil
	}
}
