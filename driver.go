package world

import (
	"context"
	"time"

	"github.com/wanmail/world/actions"
)

// By names a lookup strategy. The values are the WebDriver strategy names.
type By string

// Methods by which to find elements.
const (
	ByCSS   By = "css selector"
	ByXPath By = "xpath"
)

// Element is a handle to one node of the live document. Handles are not
// cached by Browser and may become stale once the document changes.
type Element interface {
	// Text returns the visible text of the element.
	Text(ctx context.Context) (string, error)
	// Click clicks on the element.
	Click(ctx context.Context) error
}

// Driver is the browser automation engine a Session talks to.
//
// FindElements reports an unparsable value with an error that matches
// ErrInvalidSelector under errors.Is. Any other error is treated as a
// failure of the engine itself.
type Driver interface {
	// Navigate loads url in the current window.
	Navigate(ctx context.Context, url string) error
	// FindElements returns the elements matching value, in document order.
	// A nil parent searches the whole document.
	FindElements(ctx context.Context, parent Element, by By, value string) ([]Element, error)
	// WaitVisible blocks until an element matching the XPath expression is
	// displayed, polling every interval. It returns an error matching
	// ErrWaitTimeout once timeout has elapsed.
	WaitVisible(ctx context.Context, xpath string, timeout, interval time.Duration) error
	// ActiveElement returns the element that currently has focus.
	ActiveElement(ctx context.Context) (Element, error)
	// Perform runs a sequence of input actions.
	Perform(ctx context.Context, seq *actions.Sequence) error
	// ConsoleLogs returns the browser console entries collected since the
	// previous call.
	ConsoleLogs(ctx context.Context) ([]LogEntry, error)
	// Close ends the browser session and releases its resources.
	Close() error
}

// Dialer creates a Driver with the given capabilities.
type Dialer func(ctx context.Context, caps Capabilities) (Driver, error)

// Capabilities configures the browser a Session starts.
type Capabilities struct {
	// Browser is the engine name, "chrome" or "firefox".
	Browser string `yaml:"browser"`
	// ConsoleLogLevel is the lowest console level captured: "ALL", "DEBUG",
	// "INFO", "WARNING", "SEVERE" or "OFF".
	ConsoleLogLevel string `yaml:"console_log_level"`
	Headless        bool   `yaml:"headless"`
	// Args are extra browser command-line arguments.
	Args []string `yaml:"args"`
	// BrowserPath overrides the browser binary.
	BrowserPath string `yaml:"browser_path"`
	// DriverPath starts a local chromedriver or geckodriver when set.
	DriverPath string `yaml:"driver_path"`
	// RemoteURL is an already running WebDriver or DevTools endpoint.
	RemoteURL string `yaml:"remote_url"`
	// FrameBuffer starts the local driver inside an Xvfb display.
	FrameBuffer bool `yaml:"frame_buffer"`
	// Proxy is a SOCKS5 host:port the browser sends its traffic through.
	Proxy string `yaml:"proxy"`
	// MinBrowserVersion rejects sessions whose browser is older.
	MinBrowserVersion string `yaml:"min_browser_version"`
}

// DefaultCapabilities requests Chrome with every console message captured.
func DefaultCapabilities() Capabilities {
	return Capabilities{
		Browser:         "chrome",
		ConsoleLogLevel: "ALL",
	}
}

// LogEntry is one browser console message.
type LogEntry struct {
	Time    time.Time
	Level   string
	Message string
}

// Point is a position in the viewport, in CSS pixels.
type Point struct {
	X, Y float64
}
