package tui

import (
	"github.com/emcomm-tools/et-launcher/internal/process"
	"github.com/emcomm-tools/et-launcher/pkg/events"
)

type statusMsg struct {
	callsign string
	grid     string
	mode     string
	radio    string
}

type busEventMsg struct {
	event events.Event
}

type launchResultMsg struct {
	target  string
	session *process.Session
	err     error
}
