package nextcloud

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testShellTransport(t *testing.T) *ShellTransport {
	t.Helper()
	return &ShellTransport{container: "nextcloud-app"}
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, `'plain'`, shellQuote("plain"))
	assert.Equal(t, `'with space'`, shellQuote("with space"))
	assert.Equal(t, `'o'\''brien'`, shellQuote("o'brien"))
	assert.Equal(t, `'$(rm -rf /)'`, shellQuote("$(rm -rf /)"))
}

func TestBuildCommand_CreateUser_PasswordViaEnv(t *testing.T) {
	tr := testShellTransport(t)
	cmd, err := tr.buildCommand(Command{
		Op:   OpCreateUser,
		Args: []string{"maria_9f86d0", "Maria Souza", "maria@example.com", "s3cret"},
	})
	require.NoError(t, err)
	assert.Equal(t,
		`docker exec -e OC_PASS='s3cret' -u 33 'nextcloud-app' php occ user:add --password-from-env --display-name='Maria Souza' --email='maria@example.com' 'maria_9f86d0'`,
		cmd)
}

func TestBuildCommand_CreateUser_WrongArity(t *testing.T) {
	tr := testShellTransport(t)
	_, err := tr.buildCommand(Command{Op: OpCreateUser, Args: []string{"only-one"}})
	require.Error(t, err)
}

func TestBuildCommand_GroupMembership_ArgOrder(t *testing.T) {
	tr := testShellTransport(t)

	// occ wants group before user even though the operation takes
	// (user, group).
	cmd, err := tr.buildCommand(Command{Op: OpAddToGroup, Args: []string{"maria_9f86d0", "maria@example.com"}})
	require.NoError(t, err)
	assert.Equal(t,
		`docker exec -u 33 'nextcloud-app' php occ group:adduser 'maria@example.com' 'maria_9f86d0'`,
		cmd)

	cmd, err = tr.buildCommand(Command{Op: OpRemoveFromGroup, Args: []string{"maria_9f86d0", "maria@example.com"}})
	require.NoError(t, err)
	assert.Equal(t,
		`docker exec -u 33 'nextcloud-app' php occ group:removeuser 'maria@example.com' 'maria_9f86d0'`,
		cmd)
}

func TestBuildCommand_SetQuota(t *testing.T) {
	tr := testShellTransport(t)
	cmd, err := tr.buildCommand(Command{Op: OpSetQuota, Args: []string{"maria_9f86d0", "5GB"}})
	require.NoError(t, err)
	assert.Equal(t,
		`docker exec -u 33 'nextcloud-app' php occ user:setting 'maria_9f86d0' 'files' 'quota' '5GB'`,
		cmd)
}

func TestBuildCommand_ListOpsRequestJSON(t *testing.T) {
	tr := testShellTransport(t)
	for _, op := range []Operation{OpListUsers, OpListGroups, OpListApps} {
		cmd, err := tr.buildCommand(Command{Op: op})
		require.NoError(t, err)
		assert.Contains(t, cmd, "--output=json", "op=%s", op)
	}
}

func TestBuildCommand_ResendWelcome(t *testing.T) {
	tr := testShellTransport(t)
	cmd, err := tr.buildCommand(Command{Op: OpResendWelcome, Args: []string{"maria_9f86d0"}})
	require.NoError(t, err)
	assert.Equal(t,
		`docker exec -u 33 'nextcloud-app' php occ user:resetpassword 'maria_9f86d0' --send-email`,
		cmd)
}

func TestBuildCommand_QuotesDashPrefixedArgs(t *testing.T) {
	tr := testShellTransport(t)

	// A caller argument that looks like an occ flag must still be quoted;
	// only the fixed flags from the command table go through verbatim.
	cmd, err := tr.buildCommand(Command{Op: OpUserInfo, Args: []string{"--help; touch /tmp/pwned"}})
	require.NoError(t, err)
	assert.Equal(t,
		`docker exec -u 33 'nextcloud-app' php occ user:info '--help; touch /tmp/pwned'`,
		cmd)

	cmd, err = tr.buildCommand(Command{Op: OpAddToGroup, Args: []string{"maria_9f86d0", "--version"}})
	require.NoError(t, err)
	assert.Equal(t,
		`docker exec -u 33 'nextcloud-app' php occ group:adduser '--version' 'maria_9f86d0'`,
		cmd)
}

func TestBuildCommand_MetricProbes(t *testing.T) {
	tr := testShellTransport(t)

	cmd, err := tr.buildCommand(Command{Op: OpDiskUsage})
	require.NoError(t, err)
	assert.Equal(t, `docker exec 'nextcloud-app' df -h /var/www/html/data | tail -1`, cmd)

	cmd, err = tr.buildCommand(Command{Op: OpCPUStats})
	require.NoError(t, err)
	assert.Equal(t, `docker stats 'nextcloud-app' --no-stream --format '{{.CPUPerc}}'`, cmd)

	cmd, err = tr.buildCommand(Command{Op: OpMemStats})
	require.NoError(t, err)
	assert.Equal(t, `docker stats 'nextcloud-app' --no-stream --format '{{.MemPerc}}'`, cmd)
}

func TestNewShellTransport_MissingKeyIsFatal(t *testing.T) {
	_, err := NewShellTransport(ShellConfig{Host: "10.0.0.5", User: "deploy"})
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, SeverityFatal, SeverityOf(err))
}

func TestNewShellTransport_GarbageKeyIsFatal(t *testing.T) {
	_, err := NewShellTransport(ShellConfig{
		Host:          "10.0.0.5",
		User:          "deploy",
		PrivateKeyPEM: "not a pem key",
	})
	require.Error(t, err)
	assert.Equal(t, SeverityFatal, SeverityOf(err))
}
