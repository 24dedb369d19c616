package model

import "time"

// ScriptSpec is one script scheduled for execution. Position is the
// stable 0-based index from the configuration; Path is absolute.
type ScriptSpec struct {
	Position int
	Path     string
	Args     []string
	Timeout  time.Duration
}

// TaskResult is the textual outcome of one ScriptSpec. Text is either
// the captured stdout or a single "# ERROR:" sentinel comment line.
// Exactly one TaskResult exists per scheduled spec.
type TaskResult struct {
	Position int
	Text     string
}
