package devtools

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	cdplog "github.com/chromedp/cdproto/log"
	"github.com/chromedp/cdproto/runtime"

	"github.com/wanmail/world"
)

// Log levels, named as in the WebDriver logging preferences.
const (
	levelDebug   = "DEBUG"
	levelInfo    = "INFO"
	levelWarning = "WARNING"
	levelSevere  = "SEVERE"
)

var levelRanks = map[string]int{
	"ALL":        0,
	levelDebug:   1,
	levelInfo:    2,
	levelWarning: 3,
	levelSevere:  4,
	"OFF":        5,
}

// levelRank returns the rank of a ConsoleLogLevel. The empty level keeps
// everything.
func levelRank(level string) (int, error) {
	if level == "" {
		return 0, nil
	}
	r, ok := levelRanks[strings.ToUpper(level)]
	if !ok {
		return 0, fmt.Errorf("devtools: unknown console log level %q", level)
	}
	return r, nil
}

func consoleLevel(t runtime.APIType) string {
	switch t {
	case runtime.APITypeError, runtime.APITypeAssert:
		return levelSevere
	case runtime.APITypeWarning:
		return levelWarning
	case runtime.APITypeDebug, runtime.APITypeTrace:
		return levelDebug
	}
	return levelInfo
}

func entryLevel(l cdplog.Level) string {
	switch l {
	case cdplog.LevelError:
		return levelSevere
	case cdplog.LevelWarning:
		return levelWarning
	case cdplog.LevelVerbose:
		return levelDebug
	}
	return levelInfo
}

// formatArgs renders console call arguments the way the console prints them:
// strings unquoted, other values as JSON or by description.
func formatArgs(args []*runtime.RemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		switch {
		case arg.Type == runtime.TypeString:
			var s string
			if err := json.Unmarshal(arg.Value, &s); err == nil {
				parts = append(parts, s)
				continue
			}
			parts = append(parts, string(arg.Value))
		case len(arg.Value) > 0:
			parts = append(parts, string(arg.Value))
		case arg.UnserializableValue != "":
			parts = append(parts, string(arg.UnserializableValue))
		case arg.Description != "":
			parts = append(parts, arg.Description)
		default:
			parts = append(parts, string(arg.Type))
		}
	}
	return strings.Join(parts, " ")
}

func timestamp(ts *runtime.Timestamp) time.Time {
	if ts == nil {
		return time.Now()
	}
	return ts.Time()
}

// onEvent buffers console output of the tab for ConsoleLogs. It runs on the
// chromedp event loop and must not block.
func (d *Driver) onEvent(ev interface{}) {
	var entry world.LogEntry
	switch ev := ev.(type) {
	case *runtime.EventConsoleAPICalled:
		entry = world.LogEntry{
			Time:    timestamp(ev.Timestamp),
			Level:   consoleLevel(ev.Type),
			Message: formatArgs(ev.Args),
		}
	case *runtime.EventExceptionThrown:
		if ev.ExceptionDetails == nil {
			return
		}
		msg := ev.ExceptionDetails.Text
		if ev.ExceptionDetails.Exception != nil && ev.ExceptionDetails.Exception.Description != "" {
			msg += " " + ev.ExceptionDetails.Exception.Description
		}
		entry = world.LogEntry{
			Time:    timestamp(ev.Timestamp),
			Level:   levelSevere,
			Message: msg,
		}
	case *cdplog.EventEntryAdded:
		e := ev.Entry
		msg := e.Text
		if e.URL != "" {
			msg = e.URL + " - " + msg
		}
		entry = world.LogEntry{
			Time:    timestamp(e.Timestamp),
			Level:   entryLevel(e.Level),
			Message: msg,
		}
	default:
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if levelRanks[entry.Level] < d.minLevel {
		return
	}
	d.logs = append(d.logs, entry)
}
