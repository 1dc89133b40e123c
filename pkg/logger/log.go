// Package logger provides leveled, named loggers for the various
// services that make up tikdrop. Each service grabs a named logger
// via Get and emits through it; output is colorised per level.
package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type LogLevel int

const (
	VERBOSE LogLevel = iota
	DEBUG
	INFO
	SUCCESS
	WARNING
	ERROR
	FATAL
)

func (level LogLevel) String() string {
	return []string{"V", "D", "I", "✓", "!", "!!", "PANIC"}[level]
}

func (level LogLevel) colorizer() *color.Color {
	return []*color.Color{
		color.New(color.FgWhite, color.Italic),
		color.New(color.FgWhite, color.Italic),
		color.New(color.FgWhite),
		color.New(color.FgHiGreen),
		color.New(color.FgYellow, color.Underline),
		color.New(color.FgHiRed, color.Bold),
		color.New(color.FgHiRed, color.Bold, color.Underline),
	}[level]
}

type Logger interface {
	Emit(LogLevel, string, ...interface{})
}

type namedLogger struct {
	name string
}

func (l *namedLogger) Emit(level LogLevel, message string, interpolations ...interface{}) {
	defaultManager.emit(level, l.name, message, interpolations...)
}

// manager serialises writes from the named loggers and pads the
// service names so the level markers line up in the output.
type manager struct {
	mu         sync.Mutex
	minLevel   LogLevel
	nameOffset int
}

var defaultManager = &manager{minLevel: INFO}

func (mgr *manager) emit(level LogLevel, name string, message string, interpolations ...interface{}) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	if level < mgr.minLevel {
		return
	}

	if len(name) > mgr.nameOffset {
		mgr.nameOffset = len(name)
	}

	padding := strings.Repeat(" ", mgr.nameOffset-len(name))
	timestamp := time.Now().Format(time.TimeOnly)
	formatted := fmt.Sprintf("%s [%s] %s(%s) %s", timestamp, name, padding, level, fmt.Sprintf(message, interpolations...))

	level.colorizer().Fprint(os.Stderr, formatted)
}

// SetMinLoggingLevel adjusts the level below which emitted
// messages are discarded. The default is INFO.
func SetMinLoggingLevel(level LogLevel) {
	defaultManager.mu.Lock()
	defer defaultManager.mu.Unlock()

	defaultManager.minLevel = level
}

// Get returns a logger bound to the provided service name.
func Get(name string) Logger {
	return &namedLogger{name: name}
}
