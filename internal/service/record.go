package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Record is the persisted identity of the running driver. The pid is stored on the first
// line; the optional second line is JSON metadata used to detect pid reuse.
type Record struct {
	PID       int   `json:"-"`
	StartUnix int64 `json:"start_unix,omitempty"`
	Port      int   `json:"port,omitempty"`
}

type recordCodec struct{}

func (recordCodec) Encode(r Record) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(strconv.Itoa(r.PID))
	buf.WriteByte('\n')
	if r.StartUnix > 0 || r.Port > 0 {
		meta, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		buf.Write(meta)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func (recordCodec) Decode(b []byte) (Record, error) {
	lines := strings.Split(strings.ReplaceAll(string(b), "\r\n", "\n"), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return Record{}, fmt.Errorf("invalid pid: %w", err)
	}
	r := Record{PID: pid}
	// a bare pid is still a valid record
	if len(lines) > 1 {
		if meta := strings.TrimSpace(lines[1]); meta != "" {
			_ = json.Unmarshal([]byte(meta), &r)
		}
	}
	r.PID = pid
	return r, nil
}
