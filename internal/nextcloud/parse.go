package nextcloud

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var sizeUnits = map[byte]float64{
	'K': 1 << 10,
	'M': 1 << 20,
	'G': 1 << 30,
	'T': 1 << 40,
}

// ParseSize converts a df-style size string ("5.2G", "100M", "0") to bytes.
// A missing or unknown unit falls back to the raw numeric value.
func ParseSize(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	unit := s[len(s)-1]
	if unit >= 'a' && unit <= 'z' {
		unit -= 'a' - 'A'
	}
	if mult, ok := sizeUnits[unit]; ok {
		value, err := strconv.ParseFloat(s[:len(s)-1], 64)
		if err != nil {
			return 0
		}
		return int64(math.Round(value * mult))
	}
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(math.Round(value))
}

// ParseQuotaSize handles occ-style quota strings like "5 GB" or "512 MB"
// with an explicit B suffix. "none" and "unlimited" map to 0, ok=false.
func ParseQuotaSize(s string) (bytes int64, ok bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" || s == "NONE" || s == "UNLIMITED" {
		return 0, false
	}
	m := quotaPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	mult := 1.0
	if len(m[2]) > 0 {
		if u, found := sizeUnits[m[2][0]]; found {
			mult = u
		}
	}
	return int64(math.Round(value * mult)), true
}

var quotaPattern = regexp.MustCompile(`^([0-9.]+)\s*([KMGT]?B?)$`)

// DiskUsage is the parsed tail line of `df -h` for the data mount.
type DiskUsage struct {
	Total     int64
	Used      int64
	Available int64
	UsagePct  int
}

// parseDFLine splits a df output line into its columns:
// Filesystem Size Used Avail Use% Mounted.
func parseDFLine(line string) (DiskUsage, error) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) < 5 {
		return DiskUsage{}, fmt.Errorf("nextcloud: malformed df line %q", line)
	}
	pct, _ := strconv.Atoi(strings.TrimSuffix(fields[4], "%"))
	return DiskUsage{
		Total:     ParseSize(fields[1]),
		Used:      ParseSize(fields[2]),
		Available: ParseSize(fields[3]),
		UsagePct:  pct,
	}, nil
}

// parsePercent strips the trailing % from docker stats output ("12.34%").
func parsePercent(s string) (float64, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("nextcloud: malformed percentage %q", s)
	}
	return v, nil
}

// UserInfo is the subset of a remote user record the control plane tracks.
type UserInfo struct {
	QuotaBytes *int64
	UsedBytes  int64
	LastLogin  *time.Time
	Groups     []string
}

var (
	quotaLine    = regexp.MustCompile(`(?i)quota:\s*(.+)`)
	usedLine     = regexp.MustCompile(`(?i)used:\s*([0-9.]+\s*[KMGT]?B?)`)
	lastSeenLine = regexp.MustCompile(`(\d{4}-\d{2}-\d{2}[T\s]\d{2}:\d{2}:\d{2})`)
	groupsBlock  = regexp.MustCompile(`- groups:\s*\n((?:\s+-\s+.+\n?)*)`)
	groupEntry   = regexp.MustCompile(`-\s+(.+)`)
)

// parseUserInfoText extracts quota, usage and groups from the plain-text
// output of `occ user:info`.
func parseUserInfoText(output string) UserInfo {
	var info UserInfo
	if m := quotaLine.FindStringSubmatch(output); m != nil {
		if bytes, ok := ParseQuotaSize(m[1]); ok {
			info.QuotaBytes = &bytes
		}
	}
	if m := usedLine.FindStringSubmatch(output); m != nil {
		info.UsedBytes, _ = ParseQuotaSize(m[1])
	}
	if m := groupsBlock.FindStringSubmatch(output); m != nil {
		for _, g := range groupEntry.FindAllStringSubmatch(m[1], -1) {
			info.Groups = append(info.Groups, strings.TrimSpace(g[1]))
		}
	}
	return info
}

// parseLastSeenText extracts the timestamp from `occ user:lastseen` output.
// Users who never logged in yield nil.
func parseLastSeenText(output string) *time.Time {
	m := lastSeenLine.FindStringSubmatch(output)
	if m == nil {
		return nil
	}
	raw := strings.Replace(m[1], "T", " ", 1)
	ts, err := time.Parse("2006-01-02 15:04:05", raw)
	if err != nil {
		return nil
	}
	return &ts
}
