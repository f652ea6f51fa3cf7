package dash

import (
	"fmt"
	"time"
)

// Status is the dashboard model: one snapshot of everything the
// display shows.
type Status struct {
	PeerAlive bool
	LoadPct   int
	MHz       int
	TempC     float64
	TempOK    bool
	Clock     time.Time
	Synced    bool
	TestLoad  bool
}

// Line formats the status as a single console line.
func (st Status) Line() string {
	peer := "down"
	if st.PeerAlive {
		peer = fmt.Sprintf("%3d%% @%dMHz", st.LoadPct, st.MHz)
	}
	clock := "--:--:--"
	if st.Synced {
		clock = st.Clock.Format("15:04:05")
	}
	temp := " --.-C"
	if st.TempOK {
		temp = fmt.Sprintf("%5.1fC", st.TempC)
	}
	load := ""
	if st.TestLoad {
		load = " [TESTLOAD]"
	}
	return fmt.Sprintf("%s | m4 %s | %s%s", clock, peer, temp, load)
}
