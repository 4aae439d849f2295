package main

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `---
multicast_channels:
  - name: "lab-v4"
    interface: "192.0.2.1"
    group_address: "239.2.3.4"
    port: 1234
  - name: "lab-v6"
    interface: "3"
    group_address: "ff05::99"
    port: 5678
`

func TestReadConfig(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "groups.yaml")
	require.NoError(t, os.WriteFile(filename, []byte(testConfig), 0o644))

	cfg, err := readConfig(filename)
	require.NoError(t, err)
	require.Len(t, cfg.MulticastGroups, 2)

	assert.Equal(t, MulticastGroup{
		Name:       "lab-v4",
		Iface:      "192.0.2.1",
		GrpAddress: "239.2.3.4",
		Port:       1234,
	}, cfg.MulticastGroups[0])

	assert.Equal(t, MulticastGroup{
		Name:       "lab-v6",
		Iface:      "3",
		GrpAddress: "ff05::99",
		Port:       5678,
	}, cfg.MulticastGroups[1])
}

func TestReadConfigMissingFile(t *testing.T) {
	_, err := readConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestReadConfigBadYAML(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "groups.yaml")
	require.NoError(t, os.WriteFile(filename, []byte("multicast_channels: {"), 0o644))

	_, err := readConfig(filename)
	assert.Error(t, err)
}

// Runs the full receive-and-print loop against real sockets: a
// datagram sent to the joined group is reported on the writer, one
// sent to another group on the same port is not. Relies on multicast
// loopback, skipped where the environment has none.
func TestListenPrintLoopOutput(t *testing.T) {
	listen, err := NewGroupConn(net.ParseIP("239.1.1.3"), 15004, IfaceIndex(0))
	require.NoError(t, err)
	defer listen.Close()

	talk, err := NewGroupConn(net.ParseIP("239.1.1.3"), 15004, IfaceIndex(0))
	require.NoError(t, err)
	defer talk.Close()

	// Same port, different group. Its join makes the host deliver
	// the foreign group to every wildcard-bound socket on the port.
	foreign, err := NewGroupConn(net.ParseIP("239.1.1.4"), 15004, IfaceIndex(0))
	require.NoError(t, err)
	defer foreign.Close()

	// The deadline is the loop's only exit, the receive error ends
	// it silently.
	require.NoError(t, listen.conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var out bytes.Buffer
	done := make(chan struct{})
	go func() {
		listenPrintLoop(listen, &out, nil)
		close(done)
	}()

	_, err = foreign.WriteTo([]byte("intruder"))
	require.NoError(t, err)
	_, err = talk.WriteTo([]byte("hello"))
	require.NoError(t, err)

	<-done

	if out.Len() == 0 {
		t.Skip("multicast loopback not available")
	}
	assert.Contains(t, out.String(), "Received 5 bytes from ")
	assert.True(t, strings.Contains(out.String(), ":15004\n"), "sender address includes the talker port: %q", out.String())
	assert.NotContains(t, out.String(), "Received 8 bytes", "datagram for another group must be dropped")
}

func TestPromMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPromMetrics(reg)

	r := ReceivedDatagram{
		SrcAddress: &net.UDPAddr{IP: net.ParseIP("10.0.0.1"), Port: 999},
		GrpAddress: net.ParseIP("239.1.1.1"),
		Port:       5000,
		Bytes:      42,
	}
	m.Observe(r)
	m.Observe(r)

	labels := prometheus.Labels{
		"src_address": "10.0.0.1",
		"grp_address": "239.1.1.1",
		"port":        "5000",
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.multicastPacketsReceived.With(labels)))
	assert.Equal(t, 84.0, testutil.ToFloat64(m.multicastBytesReceived.With(labels)))
}
