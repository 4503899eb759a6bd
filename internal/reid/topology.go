// Package reid re-identifies tubes across cameras: a tube entering camera X
// may be the continuation of a tube that recently left a connected camera Y.
package reid

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/watchgrid/watchgrid/internal/monitoring"
	"github.com/watchgrid/watchgrid/internal/packet"
)

// zonePair holds the entry zone in one camera and the exit zone in the
// connected camera, both in pixel coordinates.
type zonePair struct {
	entry packet.Box
	exit  packet.Box
}

// Topology declares which cameras are connected and through which frame
// regions objects transit between them.
//
// File format, one connection per line, coordinates as ratios in [0,1]:
//
//	cam_a, x0, y0, x1, y1 : cam_b, x0, y0, x1, y1
//
// The left half is the entry zone in cam_a from cam_b; the right half the
// exit zone in cam_b toward cam_a. Both directions are stored on load.
type Topology struct {
	zones map[string]map[string]zonePair
}

// LoadTopology parses the topology file, scaling ratio coordinates by the
// image shape. A missing file yields an empty topology: the pipeline
// degrades to per-camera tracking. Malformed lines are skipped with a log.
func LoadTopology(path string, imgW, imgH int) (*Topology, error) {
	t := &Topology{zones: make(map[string]map[string]zonePair)}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			monitoring.Logf("[TOPO] no topology at %s, inter-camera matching disabled", path)
			return t, nil
		}
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.Contains(line, "#") {
			continue
		}
		halves := strings.Split(line, ":")
		if len(halves) != 2 {
			monitoring.Logf("[TOPO] skip malformed line: %q", line)
			continue
		}
		camA, zoneA, okA := parseHalf(halves[0], imgW, imgH)
		camB, zoneB, okB := parseHalf(halves[1], imgW, imgH)
		if !okA || !okB {
			monitoring.Logf("[TOPO] skip malformed line: %q", line)
			continue
		}
		t.add(camA, camB, zonePair{entry: zoneA, exit: zoneB})
		t.add(camB, camA, zonePair{entry: zoneB, exit: zoneA})
	}
	return t, sc.Err()
}

func parseHalf(s string, imgW, imgH int) (cam string, zone packet.Box, ok bool) {
	fields := strings.Split(s, ",")
	if len(fields) != 5 {
		return "", packet.Box{}, false
	}
	cam = strings.TrimSpace(fields[0])
	if cam == "" {
		return "", packet.Box{}, false
	}
	vals := make([]float64, 4)
	for i := 0; i < 4; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(fields[i+1]), 64)
		if err != nil || v < 0 || v > 1 {
			return "", packet.Box{}, false
		}
		vals[i] = v
	}
	zone = packet.Box{
		int(float64(imgW) * vals[0]),
		int(float64(imgH) * vals[1]),
		int(float64(imgW) * vals[2]),
		int(float64(imgH) * vals[3]),
	}
	return cam, zone, true
}

func (t *Topology) add(from, to string, zp zonePair) {
	if t.zones[from] == nil {
		t.zones[from] = make(map[string]zonePair)
	}
	t.zones[from][to] = zp
}

// Connected reports whether the two cameras share a declared transit.
func (t *Topology) Connected(c1, c2 string) bool {
	_, ok := t.zones[c1][c2]
	return ok
}

// CanMatch reports whether a tube entering cam1 at box1 plausibly continues
// a tube that left cam2 at box2: box1 must overlap cam1's entry zone from
// cam2 and box2 must overlap cam2's exit zone toward cam1.
func (t *Topology) CanMatch(cam1 string, box1 packet.Box, cam2 string, box2 packet.Box) bool {
	zp, ok := t.zones[cam1][cam2]
	if !ok {
		return false
	}
	return box1.Overlaps(zp.entry) && box2.Overlaps(zp.exit)
}
