package node

import "github.com/nerrad567/ionode/internal/status"

// Telemetry receives node events for time-series export.
// influxdb.Client implements it.
type Telemetry interface {
	WriteButton(pressed bool)
	WriteLED(level int)
	WriteLinkState(state, addr string)
	WriteSessionState(state string)
}

// telemetryListener forwards tracker events to t.
func telemetryListener(t Telemetry) func(status.Event) {
	return func(ev status.Event) {
		switch data := ev.Data.(type) {
		case status.LinkStatus:
			t.WriteLinkState(data.State, data.Addr)
		case status.SessionStatus:
			if ev.Type == status.EventSessionChanged {
				t.WriteSessionState(data.State)
			}
		case status.ButtonStatus:
			t.WriteButton(data.Pressed)
		case status.LEDStatus:
			t.WriteLED(data.Level)
		}
	}
}
