/*
Multikast
Multicast group listen/talk tool.
Listener logic.
*/
package main

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.yaml.in/yaml/v2"
	"golang.org/x/sync/errgroup"
)

// Receive buffer, one datagram at a time.
const recvBufSize = 1024

// Aux functions
func readConfig(filename string) (McastListenConfig, error) {
	/* Helper function to load the configuration of the listener */
	// Result
	result := McastListenConfig{}

	// Read input file
	bs, err := os.ReadFile(filename)
	if err != nil {
		return result, err
	}

	// Parse YAML
	err = yaml.Unmarshal(bs, &result)
	if err != nil {
		return result, err
	}

	// Return result
	return result, nil
}

func (sub Subscription) listenInto(gc *GroupConn, c chan<- ReceivedDatagram) {
	/* Receive datagrams for one group and report them over the
	fan-in channel. A receive error ends the loop silently, the
	socket close is the only shutdown signal. */
	defer gc.Close()

	packet := make([]byte, recvBufSize)
	for {
		n, dst, src, err := gc.ReadFrom(packet)
		if err != nil {
			return
		}

		if !gc.AcceptsDst(dst) {
			if CLI.IsDebug {
				logger.Printf("Received packet for unknown channel (%v:%v), ignoring it.", src, dst)
			}
			continue
		}

		if CLI.IsDebug && dst != nil {
			logger.Printf("Datagram for %v, %d bytes\n", dst, n)
		}

		c <- ReceivedDatagram{
			GroupName:  sub.Name,
			SrcAddress: src,
			GrpAddress: sub.GrpAddress,
			Port:       sub.Port,
			Bytes:      n,
		}
	}
}

func listenPrintLoop(gc *GroupConn, out io.Writer, promMetr *PrometheusMetrics) {
	/* Single-group receive loop for the flag-driven path. */
	packet := make([]byte, recvBufSize)
	for {
		n, dst, src, err := gc.ReadFrom(packet)
		if err != nil {
			return
		}

		if !gc.AcceptsDst(dst) {
			if CLI.IsDebug {
				logger.Printf("Received packet for unknown channel (%v:%v), ignoring it.", src, dst)
			}
			continue
		}

		if CLI.IsDebug && dst != nil {
			logger.Printf("Datagram for %v, %d bytes\n", dst, n)
		}

		fmt.Fprintf(out, "Received %d bytes from %v\n", n, src)

		if promMetr != nil {
			promMetr.Observe(ReceivedDatagram{
				SrcAddress: src,
				GrpAddress: gc.group.IP,
				Port:       uint16(gc.group.Port),
				Bytes:      n,
			})
		}
	}
}

func NewPromMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	/* Create prometheus metrics for exporting */
	// Define labels
	appLabels := []string{"src_address", "grp_address", "port"}

	// Create metrics
	m := &PrometheusMetrics{
		multicastPacketsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "multicast_packets_received",
				Help: "Number of multicast packets received since start.",
			},
			appLabels,
		),
		multicastBytesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "multicast_bytes_received",
				Help: "Amount of bytes received in multicast packets.",
			},
			appLabels,
		),
	}

	// Register metrics at registry
	reg.MustRegister(m.multicastPacketsReceived)
	reg.MustRegister(m.multicastBytesReceived)

	// Return result
	return m
}

func (m *PrometheusMetrics) Observe(r ReceivedDatagram) {
	/* Count one received datagram */
	labels := prometheus.Labels{
		"src_address": srcHost(r.SrcAddress),
		"grp_address": r.GrpAddress.String(),
		"port":        fmt.Sprint(r.Port),
	}
	m.multicastPacketsReceived.With(labels).Inc()
	m.multicastBytesReceived.With(labels).Add(float64(r.Bytes))
}

func startPrometheusServer(reg *prometheus.Registry, port uint16) {
	/* Helper process to handle Prometheus requests */
	// Expose handler
	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	logger.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", port), nil))
}

func startListener() {
	/* Main business logic for Listener */

	// Prometheus part
	var promMetr *PrometheusMetrics
	if CLI.MetricsPort != 0 {
		reg := prometheus.NewRegistry()
		promMetr = NewPromMetrics(reg)
		go startPrometheusServer(reg, CLI.MetricsPort)
	}

	// Flag-driven path: one group, one receive loop
	if CLI.ConfigFile == "" {
		gc, err := NewGroupConn(CLI.Group, CLI.Port, CLI.Iface)
		if err != nil {
			logger.Fatalf("Cannot create multicast socket. Error: %v\n", err)
		}
		defer gc.Close()

		logger.Printf("Ready to receive packets for group %v/%d\n", CLI.Group, CLI.Port)
		listenPrintLoop(gc, os.Stdout, promMetr)
		return
	}

	// Config-driven path: one receive loop per group
	appConfig, err := readConfig(CLI.ConfigFile)
	if err != nil {
		logger.Fatalf("Failed to load the configuration. Error: %v\n", err)
	}
	if len(appConfig.MulticastGroups) == 0 {
		logger.Fatalf("The configuration file %v contains no multicast channels.\n", CLI.ConfigFile)
	}

	// Resolve and join every group before receiving anything, so
	// that a bad entry fails the whole start
	type listener struct {
		sub Subscription
		gc  *GroupConn
	}
	listeners := make([]listener, 0, len(appConfig.MulticastGroups))
	for _, mgr := range appConfig.MulticastGroups {
		sub, err := mgr.Resolve()
		if err != nil {
			logger.Fatalf("Invalid multicast channel %v. Error: %v\n", mgr.Name, err)
		}
		gc, err := NewGroupConn(sub.GrpAddress, sub.Port, sub.Iface)
		if err != nil {
			logger.Fatalf("Cannot create multicast socket for channel %v. Error: %v\n", mgr.Name, err)
		}
		logger.Printf("Ready to receive packets for group %v/%d\n", sub.GrpAddress, sub.Port)
		listeners = append(listeners, listener{sub: sub, gc: gc})
	}

	// Response channel
	mcc := make(chan ReceivedDatagram)

	// Start multicast listeners
	var eg errgroup.Group
	for _, l := range listeners {
		l := l
		eg.Go(func() error {
			l.sub.listenInto(l.gc, mcc)
			return nil
		})
	}
	go func() {
		eg.Wait()
		close(mcc)
	}()

	// Receive data
	for r := range mcc {
		fmt.Printf("Received %d bytes from %v\n", r.Bytes, r.SrcAddress)

		// Update Prometheus metrics
		if promMetr != nil {
			promMetr.Observe(r)
		}
	}
}
