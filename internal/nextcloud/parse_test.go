package nextcloud

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"5.2G", 5583457485},
		{"100M", 104857600},
		{"1K", 1024},
		{"2T", 2199023255552},
		{"0", 0},
		{"42", 42},
		{" 10G ", 10737418240},
		{"", 0},
		{"garbage", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseSize(tt.in), "input=%q", tt.in)
	}
}

func TestParseQuotaSize(t *testing.T) {
	bytes, ok := ParseQuotaSize("5 GB")
	require.True(t, ok)
	assert.Equal(t, int64(5*1024*1024*1024), bytes)

	bytes, ok = ParseQuotaSize("512 MB")
	require.True(t, ok)
	assert.Equal(t, int64(512*1024*1024), bytes)

	_, ok = ParseQuotaSize("none")
	assert.False(t, ok)
	_, ok = ParseQuotaSize("unlimited")
	assert.False(t, ok)
	_, ok = ParseQuotaSize("")
	assert.False(t, ok)
}

func TestParseDFLine(t *testing.T) {
	line := "/dev/sda1        98G   52G   41G  57% /var/www/html/data"
	du, err := parseDFLine(line)
	require.NoError(t, err)
	assert.Equal(t, int64(98)*1024*1024*1024, du.Total)
	assert.Equal(t, int64(52)*1024*1024*1024, du.Used)
	assert.Equal(t, int64(41)*1024*1024*1024, du.Available)
	assert.Equal(t, 57, du.UsagePct)
}

func TestParseDFLine_Malformed(t *testing.T) {
	_, err := parseDFLine("not a df line")
	require.Error(t, err)
}

func TestParsePercent(t *testing.T) {
	v, err := parsePercent("12.34%")
	require.NoError(t, err)
	assert.InDelta(t, 12.34, v, 0.001)

	v, err = parsePercent("0.00%\n")
	require.NoError(t, err)
	assert.Zero(t, v)

	_, err = parsePercent("--")
	require.Error(t, err)
}

func TestParseUserInfoText(t *testing.T) {
	output := `  - user_id: maria_9f86d0
  - display_name: Maria Souza
  - email: maria@example.com
  - groups:
    - maria@example.com
    - saas-users
  - quota: 5 GB
  - storage:
    - free: 4.2 GB
    - used: 820 MB`

	info := parseUserInfoText(output)
	require.NotNil(t, info.QuotaBytes)
	assert.Equal(t, int64(5*1024*1024*1024), *info.QuotaBytes)
	assert.Equal(t, int64(820*1024*1024), info.UsedBytes)
	assert.Equal(t, []string{"maria@example.com", "saas-users"}, info.Groups)
}

func TestParseUserInfoText_UnlimitedQuota(t *testing.T) {
	info := parseUserInfoText("  - quota: unlimited\n")
	assert.Nil(t, info.QuotaBytes)
}

func TestParseLastSeenText(t *testing.T) {
	ts := parseLastSeenText("maria_9f86d0`s last login: 2026-08-14 09:31:02")
	require.NotNil(t, ts)
	assert.Equal(t, time.Date(2026, 8, 14, 9, 31, 2, 0, time.UTC), *ts)

	assert.Nil(t, parseLastSeenText("User does not exist"))
	assert.Nil(t, parseLastSeenText("maria_9f86d0 has never logged in"))
}
