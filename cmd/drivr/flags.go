package main

import "time"

// GlobalFlags holds persistent flags shared by every command.
type GlobalFlags struct {
	ConfigPath string
}

type StatusFlags struct {
	// Remote daemon connection
	APIUrl     string
	APITimeout time.Duration
}

type OpenFlags struct {
	URL     string
	Refresh bool
}

type TextFlags struct {
	XPath     string
	URL       string // visited before reading, then left
	Attribute string
}

type ServeFlags struct {
	Listen        string
	BasePath      string
	MetricsListen string
	Daemonize     bool
	PidFile       string
	LogFile       string
	// For tests we can set NonBlocking to return once listening
	NonBlocking bool
}
