// Package remote connects driver sessions through github.com/tebeka/selenium.
package remote

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/loykin/drivr/internal/driver"
	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
)

// RequestTimeout bounds every HTTP request made to the driver.
const RequestTimeout = 60 * time.Second

// DefaultArgs are the browser switches used when Options.Args is empty.
var DefaultArgs = []string{"--start-maximized", "disable-infobars"}

var (
	reuse       = &reuseTransport{}
	installOnce sync.Once

	// selenium keeps its HTTP client in a package variable, so dials are serialized
	// while the hint is set.
	dialMu sync.Mutex
)

func install() {
	installOnce.Do(func() {
		base := http.DefaultTransport
		if selenium.HTTPClient != nil && selenium.HTTPClient.Transport != nil {
			base = selenium.HTTPClient.Transport
		}
		reuse.base = base
		selenium.HTTPClient = &http.Client{Transport: reuse, Timeout: RequestTimeout}
	})
}

type Options struct {
	Args     []string // browser switches; empty means DefaultArgs
	Headless bool
	Binary   string // browser executable; empty lets the driver find it
}

// Dialer opens sessions on a chromedriver endpoint.
type Dialer struct {
	caps selenium.Capabilities
}

func NewDialer(o Options) *Dialer {
	args := o.Args
	if len(args) == 0 {
		args = DefaultArgs
	}
	args = append([]string(nil), args...)
	if o.Headless {
		args = append(args, "--headless=new")
	}
	caps := selenium.Capabilities{"browserName": "chrome"}
	caps.AddChrome(chrome.Capabilities{Args: args, Path: o.Binary})
	return &Dialer{caps: caps}
}

// Dial connects to url. With a hint the new-session request is answered locally and the
// returned client addresses that session; nothing proves it is alive until it is used.
func (d *Dialer) Dial(ctx context.Context, url, hint string) (driver.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	install()
	dialMu.Lock()
	defer dialMu.Unlock()
	reuse.set(hint)
	defer reuse.set("")

	wd, err := selenium.NewRemote(d.caps, url)
	if err != nil {
		return nil, fmt.Errorf("new session at %s: %w", url, err)
	}
	return &client{wd: wd}, nil
}

type client struct{ wd selenium.WebDriver }

func (c *client) SessionID() string           { return c.wd.SessionID() }
func (c *client) CurrentURL() (string, error) { return c.wd.CurrentURL() }
func (c *client) Get(url string) error        { return c.wd.Get(url) }
func (c *client) AcceptAlert() error          { return c.wd.AcceptAlert() }
func (c *client) DismissAlert() error         { return c.wd.DismissAlert() }
func (c *client) Quit() error                 { return c.wd.Quit() }

func (c *client) ExecuteScript(script string, args []any) (any, error) {
	return c.wd.ExecuteScript(script, args)
}

func (c *client) FindElement(xpath string) (driver.Element, error) {
	el, err := c.wd.FindElement(selenium.ByXPATH, xpath)
	if err != nil {
		return nil, err
	}
	return element{el}, nil
}

func (c *client) FindElements(xpath string) ([]driver.Element, error) {
	els, err := c.wd.FindElements(selenium.ByXPATH, xpath)
	return wrap(els), err
}

type element struct{ el selenium.WebElement }

func (e element) Click() error                             { return e.el.Click() }
func (e element) Text() (string, error)                    { return e.el.Text() }
func (e element) GetAttribute(name string) (string, error) { return e.el.GetAttribute(name) }
func (e element) Clear() error                             { return e.el.Clear() }
func (e element) SendKeys(keys string) error               { return e.el.SendKeys(keys) }

func (e element) FindElement(xpath string) (driver.Element, error) {
	el, err := e.el.FindElement(selenium.ByXPATH, xpath)
	if err != nil {
		return nil, err
	}
	return element{el}, nil
}

func (e element) FindElements(xpath string) ([]driver.Element, error) {
	els, err := e.el.FindElements(selenium.ByXPATH, xpath)
	return wrap(els), err
}

func wrap(els []selenium.WebElement) []driver.Element {
	out := make([]driver.Element, 0, len(els))
	for _, el := range els {
		out = append(out, element{el})
	}
	return out
}
