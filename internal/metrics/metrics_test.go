// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Zetta Labs

package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/zettalabs/zettascope/pkg/zetta"
)

func TestCollectorExportsAllSeries(t *testing.T) {
	proto := zetta.New(zetta.NewMockTransport())
	c := NewCollector(proto)

	n := testutil.CollectAndCount(c)
	if n != 8 {
		t.Errorf("expected 8 metrics, collected %d", n)
	}
}

func TestCollectorTracksSends(t *testing.T) {
	proto := zetta.New(zetta.NewMockTransport())
	c := NewCollector(proto)

	if !proto.SendRaw(0x01, []byte("hi")) {
		t.Fatal("send failed")
	}
	if !proto.SendRaw(0x01, []byte("again")) {
		t.Fatal("send failed")
	}

	expected := `
# HELP zetta_packets_sent_total Frames successfully written to the transport
# TYPE zetta_packets_sent_total counter
zetta_packets_sent_total 2
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"zetta_packets_sent_total")
	if err != nil {
		t.Errorf("unexpected scrape output: %v", err)
	}
}

func TestMustRegisterGathers(t *testing.T) {
	proto := zetta.New(zetta.NewMockTransport())
	reg := MustRegister(proto)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	found := false
	for _, f := range families {
		if f.GetName() == "zetta_crc_errors_total" {
			found = true
		}
	}
	if !found {
		t.Error("registry missing zetta_crc_errors_total")
	}
}
