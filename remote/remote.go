// Package remote implements world.Driver on top of a WebDriver server, such as
// chromedriver, geckodriver or a Selenium hub, using
// github.com/tebeka/selenium.
// See https://www.w3.org/TR/webdriver for the protocol.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/blang/semver"
	"github.com/golang/glog"
	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
	"github.com/tebeka/selenium/firefox"
	"github.com/tebeka/selenium/log"

	"github.com/wanmail/world"
)

// Driver is a world.Driver for one WebDriver session.
type Driver struct {
	wd       selenium.WebDriver
	executor string
	service  *selenium.Service
	client   *http.Client
	browser  semver.Version
}

var _ world.Driver = (*Driver)(nil)

// Dial is a world.Dialer. It starts a local driver service when
// caps.DriverPath is set and otherwise connects to caps.RemoteURL.
func Dial(ctx context.Context, caps world.Capabilities) (world.Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sc, err := Capabilities(caps)
	if err != nil {
		return nil, err
	}

	var (
		service  *selenium.Service
		executor = caps.RemoteURL
	)
	if caps.DriverPath != "" {
		service, executor, err = startService(caps)
		if err != nil {
			return nil, err
		}
	}
	if executor == "" {
		return nil, errors.New("remote: either RemoteURL or DriverPath must be set")
	}

	glog.V(1).Infof("remote: starting %s session at %s", caps.Browser, executor)
	wd, err := selenium.NewRemote(sc, executor)
	if err != nil {
		stopService(service)
		return nil, fmt.Errorf("remote: starting session at %s: %w", executor, err)
	}
	d := &Driver{
		wd:       wd,
		executor: strings.TrimSuffix(executor, "/"),
		service:  service,
		client:   http.DefaultClient,
	}
	if err := d.checkVersion(caps.MinBrowserVersion); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// Capabilities converts caps into the capabilities sent when a session is
// created.
func Capabilities(caps world.Capabilities) (selenium.Capabilities, error) {
	browser := caps.Browser
	if browser == "" {
		browser = "chrome"
	}
	sc := selenium.Capabilities{"browserName": browser}
	switch browser {
	case "chrome":
		cc := chrome.Capabilities{
			Path: caps.BrowserPath,
			Args: append([]string(nil), caps.Args...),
			W3C:  true,
		}
		if caps.Headless {
			cc.Args = append(cc.Args, "--headless")
		}
		sc.AddChrome(cc)
	case "firefox":
		fc := firefox.Capabilities{
			Binary: caps.BrowserPath,
			Args:   append([]string(nil), caps.Args...),
		}
		if caps.Headless {
			fc.Args = append(fc.Args, "-headless")
		}
		if caps.Proxy != "" {
			// By default, Firefox explicitly does not use a proxy for
			// connections to localhost.
			fc.Prefs = map[string]interface{}{
				"network.proxy.no_proxies_on":            "",
				"network.proxy.allow_hijacking_localhost": true,
			}
		}
		sc.AddFirefox(fc)
	default:
		return nil, fmt.Errorf("remote: unsupported browser %q", browser)
	}
	if caps.Proxy != "" {
		sc.AddProxy(selenium.Proxy{
			Type:         selenium.Manual,
			SOCKS:        caps.Proxy,
			SOCKSVersion: 5,
		})
	}
	if caps.ConsoleLogLevel != "" {
		level := log.Level(strings.ToUpper(caps.ConsoleLogLevel))
		switch level {
		case log.Off, log.Severe, log.Warning, log.Info, log.Debug, log.All:
		default:
			return nil, fmt.Errorf("remote: unknown console log level %q", caps.ConsoleLogLevel)
		}
		sc.SetLogLevel(log.Browser, level)
	}
	return sc, nil
}

// checkVersion fails when the session's browser is older than min.
func (d *Driver) checkVersion(min string) error {
	sc, err := d.wd.Capabilities()
	if err != nil {
		return fmt.Errorf("remote: reading session capabilities: %w", err)
	}
	reported, _ := sc["browserVersion"].(string)
	if reported == "" {
		reported, _ = sc["version"].(string)
	}
	if v, err := parseVersion(reported); err == nil {
		d.browser = v
	}
	if min == "" {
		return nil
	}
	want, err := semver.ParseTolerant(min)
	if err != nil {
		return fmt.Errorf("remote: invalid minimum browser version %q: %w", min, err)
	}
	if d.browser.LT(want) {
		return fmt.Errorf("remote: browser version %q is older than %s", reported, want)
	}
	return nil
}

// parseVersion parses browser versions, which may have more than three
// components ("120.0.6099.109").
func parseVersion(s string) (semver.Version, error) {
	parts := strings.SplitN(s, ".", 4)
	if len(parts) > 3 {
		parts = parts[:3]
	}
	return semver.ParseTolerant(strings.Join(parts, "."))
}

// BrowserVersion returns the version the browser reported, or the zero
// version.
func (d *Driver) BrowserVersion() semver.Version {
	return d.browser
}

// WebDriver returns the underlying session for operations world.Driver does
// not cover.
func (d *Driver) WebDriver() selenium.WebDriver {
	return d.wd
}

// Navigate loads url.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.wd.Get(url)
}

// isInvalidSelector reports whether err is the server rejecting a selector.
func isInvalidSelector(err error) bool {
	var se *selenium.Error
	if errors.As(err, &se) {
		// Legacy codes 32, 19 and 51 are invalid selector, XPath lookup
		// error and invalid XPath return type.
		return se.Err == "invalid selector" || se.LegacyCode == 32 || se.LegacyCode == 19 || se.LegacyCode == 51
	}
	return strings.Contains(err.Error(), "invalid selector")
}

func strategy(by world.By) (string, error) {
	switch by {
	case world.ByCSS:
		return selenium.ByCSSSelector, nil
	case world.ByXPath:
		return selenium.ByXPATH, nil
	}
	return "", fmt.Errorf("remote: unsupported lookup strategy %q", by)
}

// FindElements looks value up below parent, or in the whole document.
func (d *Driver) FindElements(ctx context.Context, parent world.Element, by world.By, value string) ([]world.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	method, err := strategy(by)
	if err != nil {
		return nil, err
	}
	var found []selenium.WebElement
	if parent == nil {
		found, err = d.wd.FindElements(method, value)
	} else {
		p, ok := parent.(*Element)
		if !ok {
			return nil, fmt.Errorf("remote: foreign element %T", parent)
		}
		found, err = p.we.FindElements(method, value)
	}
	if err != nil {
		if isInvalidSelector(err) {
			return nil, fmt.Errorf("remote: %s %q: %v: %w", by, value, err, world.ErrInvalidSelector)
		}
		return nil, err
	}
	elems := make([]world.Element, 0, len(found))
	for _, we := range found {
		elems = append(elems, &Element{we: we})
	}
	return elems, nil
}

// WaitVisible polls until an element matching xpath is displayed.
func (d *Driver) WaitVisible(ctx context.Context, xpath string, timeout, interval time.Duration) error {
	var condErr error
	visible := func(wd selenium.WebDriver) (bool, error) {
		if err := ctx.Err(); err != nil {
			condErr = err
			return false, err
		}
		found, err := wd.FindElements(selenium.ByXPATH, xpath)
		if err != nil {
			if isInvalidSelector(err) {
				err = fmt.Errorf("remote: xpath %q: %v: %w", xpath, err, world.ErrInvalidSelector)
			}
			condErr = err
			return false, err
		}
		for _, we := range found {
			// Elements may go stale between the lookup and the check.
			if ok, err := we.IsDisplayed(); err == nil && ok {
				return true, nil
			}
		}
		return false, nil
	}
	err := d.wd.WaitWithTimeoutAndInterval(visible, timeout, interval)
	if err != nil && err != condErr {
		return fmt.Errorf("remote: %q not visible: %v: %w", xpath, err, world.ErrWaitTimeout)
	}
	return err
}

// ActiveElement returns the focused element.
func (d *Driver) ActiveElement(ctx context.Context) (world.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	we, err := d.wd.ActiveElement()
	if err != nil {
		return nil, err
	}
	return &Element{we: we}, nil
}

// ConsoleLogs returns the browser log entries the server buffered since the
// previous call.
func (d *Driver) ConsoleLogs(ctx context.Context) ([]world.LogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	msgs, err := d.wd.Log(log.Browser)
	if err != nil {
		return nil, err
	}
	entries := make([]world.LogEntry, 0, len(msgs))
	for _, m := range msgs {
		entries = append(entries, world.LogEntry{
			Time:    m.Timestamp,
			Level:   string(m.Level),
			Message: m.Message,
		})
	}
	return entries, nil
}

// Close quits the session and stops the local service, if one was started.
func (d *Driver) Close() error {
	err := d.wd.Quit()
	if err != nil {
		glog.Warningf("remote: quitting session %s: %v", d.wd.SessionID(), err)
	}
	if serr := stopService(d.service); err == nil {
		err = serr
	}
	return err
}

// Element is a world.Element backed by a WebDriver element reference.
type Element struct {
	we selenium.WebElement
}

var _ world.Element = (*Element)(nil)

// WebElement returns the underlying element reference.
func (e *Element) WebElement() selenium.WebElement {
	return e.we
}

// Text returns the rendered text of the element.
func (e *Element) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return e.we.Text()
}

// Click clicks in the middle of the element.
func (e *Element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.we.Click()
}
