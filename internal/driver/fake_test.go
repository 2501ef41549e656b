package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/loykin/drivr/internal/service"
)

var errInvalidSession = errors.New("invalid session id")

// fakeBrowser is an in-memory driver process with its sessions and one page.
type fakeBrowser struct {
	mu       sync.Mutex
	running  bool
	sessions map[string]bool
	next     int
	created  int
	starts   int
	stops    int
	quits    int
	location string
	gets     []string
	elements map[string]*fakeElement
	findFail int // upcoming FindElement calls that fail
	finds    int
	startErr error
	alerts   []string
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{sessions: map[string]bool{}, location: "about:blank", elements: map[string]*fakeElement{}}
}

func (b *fakeBrowser) Start(context.Context) (service.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.startErr != nil {
		return service.Handle{}, b.startErr
	}
	reused := b.running
	if !b.running {
		b.starts++
	}
	b.running = true
	return service.Handle{PID: 1000, Port: 9515, Reused: reused}, nil
}

func (b *fakeBrowser) Stop(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		b.stops++
	}
	b.running = false
	b.sessions = map[string]bool{}
	return nil
}

func (b *fakeBrowser) Dial(_ context.Context, _ string, hint string) (Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if hint != "" {
		return &fakeClient{b: b, id: hint}, nil
	}
	if !b.running {
		return nil, errors.New("connection refused")
	}
	b.next++
	b.created++
	id := fmt.Sprintf("session-%d", b.next)
	b.sessions[id] = true
	return &fakeClient{b: b, id: id}, nil
}

type fakeClient struct {
	b  *fakeBrowser
	id string
}

func (c *fakeClient) check() error {
	if !c.b.running || !c.b.sessions[c.id] {
		return errInvalidSession
	}
	return nil
}

func (c *fakeClient) SessionID() string { return c.id }

func (c *fakeClient) CurrentURL() (string, error) {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	if err := c.check(); err != nil {
		return "", err
	}
	return c.b.location, nil
}

func (c *fakeClient) Get(url string) error {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	if err := c.check(); err != nil {
		return err
	}
	c.b.location = url
	c.b.gets = append(c.b.gets, url)
	return nil
}

func (c *fakeClient) FindElement(xpath string) (Element, error) {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	if err := c.check(); err != nil {
		return nil, err
	}
	c.b.finds++
	if c.b.findFail > 0 {
		c.b.findFail--
		return nil, errors.New("no such element")
	}
	el, ok := c.b.elements[xpath]
	if !ok {
		return nil, errors.New("no such element: " + xpath)
	}
	return el, nil
}

func (c *fakeClient) FindElements(xpath string) ([]Element, error) {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	if err := c.check(); err != nil {
		return nil, err
	}
	c.b.finds++
	if el, ok := c.b.elements[xpath]; ok {
		return []Element{el}, nil
	}
	return nil, nil
}

func (c *fakeClient) ExecuteScript(script string, args []any) (any, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	return fmt.Sprintf("%s|%d", script, len(args)), nil
}

func (c *fakeClient) AcceptAlert() error {
	if err := c.check(); err != nil {
		return err
	}
	c.b.alerts = append(c.b.alerts, "accept")
	return nil
}

func (c *fakeClient) DismissAlert() error {
	if err := c.check(); err != nil {
		return err
	}
	c.b.alerts = append(c.b.alerts, "dismiss")
	return nil
}

func (c *fakeClient) Quit() error {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	if err := c.check(); err != nil {
		return err
	}
	delete(c.b.sessions, c.id)
	c.b.quits++
	return nil
}

type fakeElement struct {
	text     string
	value    string
	ignore   int // upcoming SendKeys calls that do not change the value
	sends    int
	clicks   int
	children map[string]*fakeElement
}

func (e *fakeElement) Click() error                           { e.clicks++; return nil }
func (e *fakeElement) Text() (string, error)                  { return e.text, nil }
func (e *fakeElement) Clear() error                           { e.value = ""; return nil }
func (e *fakeElement) FindElements(string) ([]Element, error) { return nil, nil }

func (e *fakeElement) GetAttribute(name string) (string, error) {
	if name == "value" {
		return e.value, nil
	}
	return "", nil
}

func (e *fakeElement) SendKeys(keys string) error {
	e.sends++
	if e.ignore > 0 {
		e.ignore--
		return nil
	}
	e.value += keys
	return nil
}

func (e *fakeElement) FindElement(xpath string) (Element, error) {
	if c, ok := e.children[xpath]; ok {
		return c, nil
	}
	return nil, errors.New("no such element: " + xpath)
}
