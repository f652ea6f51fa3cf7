package timesync

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"
)

// TextSource is the text-protocol fallback fetcher. It issues a
// header-only request to each host in order and derives the time from
// the single date header of the response. Any parse failure moves on
// to the next host.
type TextSource struct {
	// Hosts is the ordered list of generic well-known hosts. A host
	// may carry an explicit ":port"; port 80 otherwise.
	Hosts []string
	// DialTimeout bounds each connect. Defaults to 1500ms.
	DialTimeout time.Duration
	// ReadTimeout bounds reading the response. Defaults to 1500ms.
	ReadTimeout time.Duration

	// Dial is swappable for tests. Defaults to net.DialTimeout.
	Dial func(network, addr string, timeout time.Duration) (net.Conn, error)
}

// ErrAllHostsFailed indicates every fallback host failed to produce a
// usable date header.
var ErrAllHostsFailed = errors.New("timesync: all fallback hosts failed")

// Fetch implements TextFetcher.
func (s *TextSource) Fetch() (time.Time, error) {
	for _, host := range s.Hosts {
		t, err := s.fetchHost(host)
		if err != nil {
			glog.V(1).Infof("text fallback %s: %v", host, err)
			continue
		}
		return t, nil
	}
	return time.Time{}, ErrAllHostsFailed
}

func (s *TextSource) fetchHost(host string) (time.Time, error) {
	dial := s.Dial
	if dial == nil {
		dial = net.DialTimeout
	}
	dialTimeout := s.DialTimeout
	if dialTimeout == 0 {
		dialTimeout = 1500 * time.Millisecond
	}
	readTimeout := s.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 1500 * time.Millisecond
	}
	addr := host
	if !strings.Contains(addr, ":") {
		addr += ":80"
	}
	name := addr[:strings.IndexByte(addr, ':')]

	conn, err := dial("tcp", addr, dialTimeout)
	if err != nil {
		return time.Time{}, err
	}
	defer conn.Close()

	req := "HEAD / HTTP/1.1\r\nHost: " + name + "\r\nConnection: close\r\n\r\n"
	if _, err = conn.Write([]byte(req)); err != nil {
		return time.Time{}, err
	}
	conn.SetReadDeadline(time.Now().Add(readTimeout))

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			break
		}
		if len(line) > 5 && strings.EqualFold(line[:5], "date:") {
			return ParseDateHeader(strings.TrimSpace(line[5:]))
		}
	}
	if err = scanner.Err(); err != nil {
		return time.Time{}, err
	}
	return time.Time{}, errors.New("no date header")
}

var monthDays = map[string]int{
	"Jan": 1, "Feb": 2, "Mar": 3, "Apr": 4, "May": 5, "Jun": 6,
	"Jul": 7, "Aug": 8, "Sep": 9, "Oct": 10, "Nov": 11, "Dec": 12,
}

// ParseDateHeader parses the fixed textual layout
// "Wed, 21 Oct 2015 07:28:00 GMT" into a UTC time. The conversion
// uses an explicit proleptic-Gregorian day count; no timezone
// database is consulted and the zone token must denote UTC.
func ParseDateHeader(v string) (time.Time, error) {
	fields := strings.Fields(v)
	if len(fields) != 6 {
		return time.Time{}, fmt.Errorf("malformed date header %q", v)
	}
	if !strings.HasSuffix(fields[0], ",") {
		return time.Time{}, fmt.Errorf("malformed weekday in %q", v)
	}
	if zone := fields[5]; zone != "GMT" && zone != "UTC" {
		return time.Time{}, fmt.Errorf("unexpected zone %q", zone)
	}
	day, err := strconv.Atoi(fields[1])
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("bad day in %q", v)
	}
	month, ok := monthDays[fields[2]]
	if !ok {
		return time.Time{}, fmt.Errorf("bad month in %q", v)
	}
	year, err := strconv.Atoi(fields[3])
	if err != nil || year < 1970 {
		return time.Time{}, fmt.Errorf("bad year in %q", v)
	}
	hms := strings.Split(fields[4], ":")
	if len(hms) != 3 {
		return time.Time{}, fmt.Errorf("bad time in %q", v)
	}
	hour, err1 := strconv.Atoi(hms[0])
	min, err2 := strconv.Atoi(hms[1])
	sec, err3 := strconv.Atoi(hms[2])
	if err1 != nil || err2 != nil || err3 != nil ||
		hour > 23 || min > 59 || sec > 60 {
		return time.Time{}, fmt.Errorf("bad time in %q", v)
	}
	secs := civilDays(year, month, day)*86400 +
		int64(hour)*3600 + int64(min)*60 + int64(sec)
	return time.Unix(secs, 0).UTC(), nil
}

// civilDays counts days from 1970-01-01 to the given proleptic
// Gregorian calendar date.
func civilDays(y, m, d int) int64 {
	if m <= 2 {
		y--
	}
	era := y / 400
	yoe := y - era*400
	mp := (m + 9) % 12
	doy := (153*mp+2)/5 + d - 1
	doe := yoe*365 + yoe/4 - yoe/100 + doy
	return int64(era)*146097 + int64(doe) - 719468
}
