package dash

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
fast_addrs:
  - "192.168.7.1:123"
pool_name: time.example.org
tz_offset_minutes: 120
backlight_timeout_sec: 15
`), 0644))

	p, err := LoadProfile(path)
	require.NoError(t, err)
	require.Equal(t, []string{"192.168.7.1:123"}, p.FastAddrs)
	require.Equal(t, "time.example.org", p.PoolName)
	require.Equal(t, 2*time.Hour, p.TZOffset())
	require.Equal(t, 15*time.Second, p.BacklightTimeout())
	// Unset keys keep the built-in defaults.
	require.Equal(t, DefaultProfile().DNSServer, p.DNSServer)
	require.Equal(t, DefaultProfile().DateHosts, p.DateHosts)
}

func TestLoadProfileErrors(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fast_addrs: {{"), 0644))
	_, err = LoadProfile(path)
	require.Error(t, err)
}

func TestStatusLine(t *testing.T) {
	st := Status{
		PeerAlive: true,
		LoadPct:   42,
		MHz:       480,
		TempC:     36.5,
		TempOK:    true,
		Clock:     time.Date(2026, time.August, 24, 7, 28, 0, 0, time.UTC),
		Synced:    true,
	}
	require.Equal(t, "07:28:00 | m4  42% @480MHz |  36.5C", st.Line())

	require.Equal(t, "--:--:-- | m4 down |  --.-C", Status{}.Line())
}
