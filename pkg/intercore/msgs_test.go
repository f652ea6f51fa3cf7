package intercore

import (
	"testing"

	"github.com/stretchr/testify/require"

	fx "github.com/duetlab/dash.go/pkg/framework"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		line   string
		expect fx.Message
	}{
		{"M4:HB", &Heartbeat{}},
		{"M4:READY", &Ready{}},
		{"M4:PONG", &Pong{}},
		{"PING", &Ping{}},
		{"SYNC", &SyncRequest{}},
		{"M4,37,480", &Status{LoadPct: 37, MHz: 480}},
		{"M4,0,480", &Status{MHz: 480}},
		{"M4,100,600", &Status{LoadPct: 100, MHz: 600}},
		{"TESTLOAD,1", &TestLoad{On: true}},
		{"TESTLOAD,0", &TestLoad{}},
	}
	for _, tc := range testCases {
		t.Run(tc.line, func(t *testing.T) {
			msg, err := Parse(tc.line)
			require.NoError(t, err)
			require.Equal(t, tc.expect, msg)

			line, err := Line(msg)
			require.NoError(t, err)
			require.Equal(t, tc.line, line)
		})
	}
}

func TestParseRejects(t *testing.T) {
	lines := []string{
		"",
		"M4",
		"M4,",
		"M4,37",
		"M4,37,480,9",
		"M4,-1,480",
		"M4,101,480",
		"M4,abc,480",
		"TESTLOAD,2",
		"TESTLOAD,on",
		"M7:HB",
		"ping",
	}
	for _, line := range lines {
		t.Run(line, func(t *testing.T) {
			_, err := Parse(line)
			require.ErrorIs(t, err, ErrUnknownLine)
		})
	}
}

type bogusMsg struct{}

func (bogusMsg) NewMessage() fx.Message { return bogusMsg{} }

func TestLineRejectsForeignMessage(t *testing.T) {
	_, err := Line(bogusMsg{})
	require.Error(t, err)
}
