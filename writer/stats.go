// File: writer/stats.go
// Author: momentics <momentics@gmail.com>
//
// Counters snapshot and publication to control.MetricsRegistry.

package writer

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/momentics/hioload-writer/api"
)

// Stats is a point-in-time view of a Source. Values may lag the loop
// goroutine by one tick.
type Stats struct {
	Name          string
	State         api.SourceState
	Closing       bool
	BytesSent     uint64
	BytesReceived uint64
	MsgsSent      uint64
	Remaining     int
	Capacity      int
}

func (st Stats) String() string {
	return fmt.Sprintf("%s state=%s closing=%t sent=%s (%d msgs) received=%s queue=%d/%d",
		st.Name, st.State, st.Closing,
		humanize.Bytes(st.BytesSent), st.MsgsSent,
		humanize.Bytes(st.BytesReceived),
		st.Remaining, st.Capacity)
}

// Stats returns the current counters. Safe from any goroutine.
func (s *Source) Stats() Stats {
	return Stats{
		Name:          s.name,
		State:         s.State(),
		Closing:       s.closing.Load(),
		BytesSent:     s.bytesSent.Load(),
		BytesReceived: s.bytesReceived.Load(),
		MsgsSent:      s.msgsSent.Load(),
		Remaining:     s.queue.Remaining(),
		Capacity:      s.queue.Capacity(),
	}
}

func (s *Source) probeName() string { return "writer." + s.name }

func (s *Source) publish() {
	if s.cfg.Metrics == nil {
		return
	}
	st := s.Stats()
	s.cfg.Metrics.SetMany(s.probeName(), map[string]any{
		"state":          st.State.String(),
		"bytes_sent":     st.BytesSent,
		"bytes_received": st.BytesReceived,
		"msgs_sent":      st.MsgsSent,
		"remaining":      st.Remaining,
	})
}
