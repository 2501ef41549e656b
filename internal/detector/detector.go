package detector

// Detector is a strategy that determines if a driver process is running.
// It must be safe for concurrent use.
type Detector interface {
	// Alive returns true if the process is detected as running.
	Alive() (bool, error)
	// Describe returns a human-readable description of the detection method.
	Describe() string
}

// All reports whether every detector considers the process alive. The first error stops
// the check.
func All(ds ...Detector) (bool, error) {
	for _, d := range ds {
		ok, err := d.Alive()
		if err != nil || !ok {
			return false, err
		}
	}
	return len(ds) > 0, nil
}
