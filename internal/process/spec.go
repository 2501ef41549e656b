package process

import (
	"os/exec"
)

// Spec describes a process to launch.
type Spec struct {
	Name     string   `json:"name"`
	Path     string   `json:"path"`               // executable
	Args     []string `json:"args"`               // arguments after the executable
	Env      []string `json:"env"`                // full child environment; nil inherits ours
	WorkDir  string   `json:"work_dir,omitempty"` // optional working dir
	Detached bool     `json:"detached"`           // outlive the launching process
}

// BuildCommand constructs an *exec.Cmd for the spec. No shell is involved.
func (s Spec) BuildCommand() *exec.Cmd {
	// #nosec G204
	cmd := exec.Command(s.Path, s.Args...)
	if s.WorkDir != "" {
		cmd.Dir = s.WorkDir
	}
	if s.Env != nil {
		cmd.Env = s.Env
	}
	configureSysProcAttr(cmd, s)
	return cmd
}
