//go:build linux

package exporter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tcpHeader = "  sl  local_address rem_address   st tx_queue rx_queue tr tm->when retrnsmt   uid  timeout inode\n"

func tcpLine(local, remote string, state int) string {
	return fmt.Sprintf("   0: %s %s %02X 00000000:00000000 00:00000000 00000000  1000        0 12345 1 0000000000000000 100 0 0 10 0\n",
		local, remote, state)
}

func TestTCPCollector(t *testing.T) {
	procRoot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(procRoot, "net"), 0o755))

	// two v4 listeners, one v4 established
	write(t, filepath.Join(procRoot, "net"), "tcp",
		tcpHeader+
			tcpLine("0100007F:1F90", "00000000:0000", 10)+
			tcpLine("0100007F:2382", "00000000:0000", 10)+
			tcpLine("0100007F:1F90", "0100007F:D431", 1))
	// one real v6 listener, one IPv4-mapped established counted as v4
	write(t, filepath.Join(procRoot, "net"), "tcp6",
		tcpHeader+
			tcpLine("00000000000000000000000001000000:1F90", "00000000000000000000000000000000:0000", 10)+
			tcpLine("0000000000000000FFFF00000100007F:1F90", "0000000000000000FFFF00000100007F:D431", 1))

	c, err := NewTCPCollector(procRoot, "app", nil, discard())
	require.NoError(t, err)

	var b strings.Builder
	b.WriteString("# HELP app_tcp_connections TCP connections by state and IP version.\n")
	b.WriteString("# TYPE app_tcp_connections gauge\n")
	counts := map[string]int{
		`state="LISTEN",4`:      2,
		`state="LISTEN",6`:      1,
		`state="ESTABLISHED",4`: 2,
	}
	for _, name := range tcpStateNames {
		for _, ver := range []string{"4", "6"} {
			fmt.Fprintf(&b, "app_tcp_connections{ip_version=%q,state=%q} %d\n",
				ver, name, counts[fmt.Sprintf("state=%q,%s", name, ver)])
		}
	}
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(b.String())))
}

func TestTCPCollector_NoTCP6(t *testing.T) {
	procRoot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(procRoot, "net"), 0o755))
	write(t, filepath.Join(procRoot, "net"), "tcp", tcpHeader)

	c, err := NewTCPCollector(procRoot, "app", nil, discard())
	require.NoError(t, err)

	// the zero-filled grid is still emitted; ipv6 being absent is not fatal
	assert.Equal(t, len(tcpStateNames)*2, testutil.CollectAndCount(c))
}
