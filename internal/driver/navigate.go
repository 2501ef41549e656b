package driver

import (
	"github.com/loykin/drivr/internal/errs"
)

// VisitOptions controls Visit.
type VisitOptions struct {
	// Refresh loads the page even when it is already the current one, both when going
	// to the target and when returning.
	Refresh bool
	// Stay skips returning to the original location.
	Stay bool
}

// Location returns the current page URL.
func (drv *Driver) Location() (string, error) {
	const op = "driver.location"
	return do(drv, op, func() (string, error) {
		u, err := drv.client.CurrentURL()
		return u, errs.Remote(op, err)
	})
}

// Navigate loads url unless it is already the current page; refresh forces the load.
// It reports whether a page was loaded.
func (drv *Driver) Navigate(url string, refresh bool) (bool, error) {
	const op = "driver.navigate"
	loaded, err := do(drv, op, func() (bool, error) {
		cur, err := drv.client.CurrentURL()
		if err != nil {
			return false, errs.Remote(op, err)
		}
		if !refresh && cur == url {
			return false, nil
		}
		return true, errs.Remote(op, drv.client.Get(url))
	})
	if err != nil {
		return false, err
	}
	if loaded {
		drv.settle(drv.deps.PageSettle)
	}
	return loaded, nil
}

// Visit navigates to url, runs fn and then returns to the page it started from, also
// when fn fails or panics. fn's error is returned as is; a failure to return is reported
// only when fn succeeded.
func (drv *Driver) Visit(url string, opts VisitOptions, fn func() error) (err error) {
	orig, err := drv.Location()
	if err != nil {
		return err
	}
	if !opts.Stay {
		defer func() {
			if _, backErr := drv.Navigate(orig, opts.Refresh); backErr != nil {
				if err == nil {
					err = backErr
					return
				}
				drv.log.Warn("return after visit failed", "url", orig, "error", backErr)
			}
		}()
	}
	if _, err := drv.Navigate(url, opts.Refresh); err != nil {
		return err
	}
	return fn()
}

// RunScript executes script in the page and returns its result.
func (drv *Driver) RunScript(script string, args ...any) (any, error) {
	const op = "driver.run_script"
	if args == nil {
		args = []any{}
	}
	return do(drv, op, func() (any, error) {
		v, err := drv.client.ExecuteScript(script, args)
		return v, errs.Remote(op, err)
	})
}

func (drv *Driver) AcceptAlert() error {
	const op = "driver.accept_alert"
	_, err := do(drv, op, func() (struct{}, error) {
		return struct{}{}, errs.Remote(op, drv.client.AcceptAlert())
	})
	return err
}

func (drv *Driver) DismissAlert() error {
	const op = "driver.dismiss_alert"
	_, err := do(drv, op, func() (struct{}, error) {
		return struct{}{}, errs.Remote(op, drv.client.DismissAlert())
	})
	return err
}
