// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Zetta Labs

// Package metrics exposes the protocol statistics as Prometheus metrics.
// The protocol engine already tracks its own counters, so instead of
// duplicating them the collector reads a fresh snapshot at scrape time.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/zettalabs/zettascope/pkg/zetta"
)

var (
	descPacketsSent = prometheus.NewDesc(
		"zetta_packets_sent_total",
		"Frames successfully written to the transport",
		nil, nil,
	)
	descPacketsReceived = prometheus.NewDesc(
		"zetta_packets_received_total",
		"Frames that passed stop-byte and checksum validation",
		nil, nil,
	)
	descCRCErrors = prometheus.NewDesc(
		"zetta_crc_errors_total",
		"Frames discarded for a checksum mismatch",
		nil, nil,
	)
	descFrameErrors = prometheus.NewDesc(
		"zetta_frame_errors_total",
		"Frames discarded for framing violations",
		nil, nil,
	)
	descBytesReceived = prometheus.NewDesc(
		"zetta_bytes_received_total",
		"Raw bytes read from the transport",
		nil, nil,
	)
	descQueueDrops = prometheus.NewDesc(
		"zetta_queue_drops_total",
		"Packets evicted from a bounded delivery queue",
		nil, nil,
	)
	descQueueLength = prometheus.NewDesc(
		"zetta_queue_length",
		"Packets currently waiting in the delivery queue",
		nil, nil,
	)
	descUptime = prometheus.NewDesc(
		"zetta_uptime_seconds",
		"Seconds since the statistics tracker started",
		nil, nil,
	)
)

// Collector adapts a running Protocol to the Prometheus scrape model.
type Collector struct {
	proto *zetta.Protocol
}

// NewCollector wraps the given protocol instance.
func NewCollector(proto *zetta.Protocol) *Collector {
	return &Collector{proto: proto}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descPacketsSent
	ch <- descPacketsReceived
	ch <- descCRCErrors
	ch <- descFrameErrors
	ch <- descBytesReceived
	ch <- descQueueDrops
	ch <- descQueueLength
	ch <- descUptime
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.proto.Stats()

	ch <- prometheus.MustNewConstMetric(descPacketsSent,
		prometheus.CounterValue, float64(snap.PacketsSent))
	ch <- prometheus.MustNewConstMetric(descPacketsReceived,
		prometheus.CounterValue, float64(snap.PacketsReceived))
	ch <- prometheus.MustNewConstMetric(descCRCErrors,
		prometheus.CounterValue, float64(snap.CRCErrors))
	ch <- prometheus.MustNewConstMetric(descFrameErrors,
		prometheus.CounterValue, float64(snap.FrameErrors))
	ch <- prometheus.MustNewConstMetric(descBytesReceived,
		prometheus.CounterValue, float64(snap.BytesReceived))
	ch <- prometheus.MustNewConstMetric(descQueueDrops,
		prometheus.CounterValue, float64(snap.QueueDrops))
	ch <- prometheus.MustNewConstMetric(descQueueLength,
		prometheus.GaugeValue, float64(c.proto.QueueLen()))
	ch <- prometheus.MustNewConstMetric(descUptime,
		prometheus.GaugeValue, snap.Uptime.Seconds())
}

// MustRegister creates a dedicated registry holding the protocol collector
// plus the standard Go runtime collector.
func MustRegister(proto *zetta.Protocol) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollector(proto))
	reg.MustRegister(collectors.NewGoCollector())
	return reg
}
