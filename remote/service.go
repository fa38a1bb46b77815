package remote

import (
	"fmt"
	"net"
	"strings"

	"github.com/golang/glog"
	"github.com/tebeka/selenium"

	"github.com/wanmail/world"
)

// logWriter sends the output of a driver service to the log at V(2).
type logWriter string

func (w logWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		glog.V(2).Infof("%s: %s", string(w), line)
	}
	return len(p), nil
}

func pickUnusedPort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	port := l.Addr().(*net.TCPAddr).Port
	if err := l.Close(); err != nil {
		return 0, err
	}
	return port, nil
}

// startService starts chromedriver or geckodriver from caps.DriverPath on a
// free port and returns the service and its executor URL.
func startService(caps world.Capabilities) (*selenium.Service, string, error) {
	port, err := pickUnusedPort()
	if err != nil {
		return nil, "", fmt.Errorf("remote: picking a port for %s: %w", caps.DriverPath, err)
	}
	var opts []selenium.ServiceOption
	if caps.FrameBuffer {
		opts = append(opts, selenium.StartFrameBuffer())
	}
	if glog.V(2) {
		opts = append(opts, selenium.Output(logWriter(caps.DriverPath)))
	}

	var (
		s        *selenium.Service
		executor string
	)
	switch caps.Browser {
	case "", "chrome":
		s, err = selenium.NewChromeDriverService(caps.DriverPath, port, opts...)
		executor = fmt.Sprintf("http://127.0.0.1:%d/wd/hub", port)
	case "firefox":
		s, err = selenium.NewGeckoDriverService(caps.DriverPath, port, opts...)
		executor = fmt.Sprintf("http://127.0.0.1:%d", port)
	default:
		return nil, "", fmt.Errorf("remote: no driver service for browser %q", caps.Browser)
	}
	if err != nil {
		return nil, "", fmt.Errorf("remote: starting %s: %w", caps.DriverPath, err)
	}
	glog.V(1).Infof("remote: started %s on port %d", caps.DriverPath, port)
	return s, executor, nil
}

func stopService(s *selenium.Service) error {
	if s == nil {
		return nil
	}
	if err := s.Stop(); err != nil {
		glog.Warningf("remote: stopping driver service: %v", err)
		return err
	}
	return nil
}
