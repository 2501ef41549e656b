package driver

import (
	"fmt"
	"strings"

	"github.com/loykin/drivr/internal/errs"
)

// Scope resolves XPath selectors either against the whole document or below one
// element. Selectors starting with "./" need an element scope; selectors starting with
// "//" are document-wide and must not be given one.
type Scope struct {
	d    *Driver
	root Element
}

// In returns the scope below root.
func (drv *Driver) In(root Element) Scope { return Scope{d: drv, root: root} }

func (s Scope) validate(op, sel string) error {
	switch {
	case strings.HasPrefix(sel, "./") && s.root == nil:
		return errs.Selector(op, "selector %q starting with \"./\" requires a scope element", sel)
	case strings.HasPrefix(sel, "//") && s.root != nil:
		return errs.Selector(op, "selector %q starting with \"//\" must not be used with a scope element", sel)
	}
	return nil
}

func (s Scope) findOnce(op, sel string) (Element, error) {
	var (
		el  Element
		err error
	)
	if s.root != nil {
		el, err = s.root.FindElement(sel)
	} else {
		el, err = s.d.client.FindElement(sel)
	}
	return el, errs.Remote(op, err)
}

// Find returns the first element matching sel.
func (s Scope) Find(sel string) (Element, error) {
	const op = "driver.find"
	if err := s.validate(op, sel); err != nil {
		return nil, err
	}
	return do(s.d, op, func() (Element, error) { return s.findOnce(op, sel) })
}

// TryFind looks for an element that may legitimately be absent. When every attempt
// fails, ok is false and err is nil; selector failures are still returned.
func (s Scope) TryFind(sel string) (Element, bool, error) {
	const op = "driver.try_find"
	if err := s.validate(op, sel); err != nil {
		return nil, false, err
	}
	return try(s.d, op, func() (Element, error) { return s.findOnce(op, sel) })
}

// FindAll returns every element matching sel; no match is an empty result.
func (s Scope) FindAll(sel string) ([]Element, error) {
	const op = "driver.find_all"
	if err := s.validate(op, sel); err != nil {
		return nil, err
	}
	return do(s.d, op, func() ([]Element, error) {
		var (
			els []Element
			err error
		)
		if s.root != nil {
			els, err = s.root.FindElements(sel)
		} else {
			els, err = s.d.client.FindElements(sel)
		}
		return els, errs.Remote(op, err)
	})
}

// Click clicks the first element matching sel and returns it.
func (s Scope) Click(sel string) (Element, error) {
	const op = "driver.click"
	if err := s.validate(op, sel); err != nil {
		return nil, err
	}
	return do(s.d, op, func() (Element, error) {
		el, err := s.findOnce(op, sel)
		if err != nil {
			return nil, err
		}
		return el, errs.Remote(op, el.Click())
	})
}

// ReadText returns the visible text of the first element matching sel.
func (s Scope) ReadText(sel string) (string, error) {
	const op = "driver.read_text"
	if err := s.validate(op, sel); err != nil {
		return "", err
	}
	return do(s.d, op, func() (string, error) {
		el, err := s.findOnce(op, sel)
		if err != nil {
			return "", err
		}
		text, err := el.Text()
		return text, errs.Remote(op, err)
	})
}

// ReadAttribute returns attribute name of the first element matching sel.
func (s Scope) ReadAttribute(sel, name string) (string, error) {
	const op = "driver.read_attribute"
	if err := s.validate(op, sel); err != nil {
		return "", err
	}
	return do(s.d, op, func() (string, error) { return s.readAttributeOnce(op, sel, name) })
}

func (s Scope) readAttributeOnce(op, sel, name string) (string, error) {
	el, err := s.findOnce(op, sel)
	if err != nil {
		return "", err
	}
	v, err := el.GetAttribute(name)
	return v, errs.Remote(op, err)
}

// ReadValue is ReadAttribute(sel, "value").
func (s Scope) ReadValue(sel string) (string, error) {
	return s.ReadAttribute(sel, "value")
}

// WriteValue replaces the value of the first element matching sel and verifies that the
// element reports it back. A value that did not stick counts as a failed attempt.
func (s Scope) WriteValue(sel, value string) (Element, error) {
	const op = "driver.write_value"
	if err := s.validate(op, sel); err != nil {
		return nil, err
	}
	return do(s.d, op, func() (Element, error) { return s.writeOnce(op, sel, value) })
}

// AppendValue writes the element's current value followed by value.
func (s Scope) AppendValue(sel, value string) (Element, error) {
	cur, err := s.ReadValue(sel)
	if err != nil {
		return nil, err
	}
	return s.WriteValue(sel, cur+value)
}

func (s Scope) writeOnce(op, sel, value string) (Element, error) {
	el, err := s.findOnce(op, sel)
	if err != nil {
		return nil, err
	}
	if err := el.Clear(); err != nil {
		return nil, errs.Remote(op, err)
	}
	if err := el.SendKeys(value); err != nil {
		return nil, errs.Remote(op, err)
	}
	s.d.settle(s.d.deps.WriteSettle)
	got, err := el.GetAttribute("value")
	if err != nil {
		return nil, errs.Remote(op, err)
	}
	if got != value {
		return nil, errs.Remote(op, fmt.Errorf("element value %q does not match written %q", got, value))
	}
	return el, nil
}
