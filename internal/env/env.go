package env

import (
	"os"
	"sort"
	"strings"
)

type Var map[string]string

// Parse turns KEY=VALUE pairs into a map. Entries without '=' or with an empty key are
// skipped; later entries win.
func Parse(kvs []string) Var {
	m := make(Var, len(kvs))
	for _, kv := range kvs {
		if i := strings.IndexByte(kv, '='); i > 0 {
			m[kv[:i]] = kv[i+1:]
		}
	}
	return m
}

// Merge composes a child environment: the OS environment, then extra overrides.
func Merge(extra []string) []string {
	return MergeInto(os.Environ(), extra)
}

// MergeInto applies extra ("K=V") on top of base and performs ${VAR} expansion against
// the composed map (simple expansion, no recursion). The result is sorted by key.
func MergeInto(base, extra []string) []string {
	m := Parse(base)
	for k, v := range Parse(extra) {
		m[k] = v
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+expand(m[k], m))
	}
	return out
}

func expand(s string, m Var) string {
	if !strings.Contains(s, "${") {
		return s
	}
	res := s
	for k, v := range m {
		res = strings.ReplaceAll(res, "${"+k+"}", v)
	}
	return res
}
