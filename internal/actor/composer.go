package actor

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/watchgrid/watchgrid/internal/act"
	"github.com/watchgrid/watchgrid/internal/monitoring"
	"github.com/watchgrid/watchgrid/internal/tube"
)

// MaxGraphCacheSize caps the active activity-instance set.
const MaxGraphCacheSize = 1000

// reidActHistory is how many of a tube's recent acts the continuity act
// carries.
const reidActHistory = 5

type idKey struct {
	cam  string
	tube string
}

// instance is one activated activity graph plus its identity for logs.
type instance struct {
	g  *act.Graph
	id string
}

// Composer matches incoming acts against activity definitions. Default
// graphs are immutable templates: a matching act activates a deep copy, and
// every active instance then consumes the packet's acts until it completes
// or stalls.
type Composer struct {
	defaults []*act.Graph
	active   []instance

	// idActions records each tube's matched act names, feeding the
	// continuity acts synthesized for re-identified tubes.
	idActions map[idKey][]string
}

// NewComposer creates the stage over the loaded activity definitions.
func NewComposer(defaults []*act.Graph) *Composer {
	return &Composer{
		defaults:  defaults,
		idActions: make(map[idKey][]string),
	}
}

// Reload swaps the default graph set (live definition-file reload). Active
// instances continue on the definitions they were activated from.
func (c *Composer) Reload(defaults []*act.Graph) {
	c.defaults = defaults
	monitoring.Logf("[CompAct] reloaded %d activity definitions", len(defaults))
}

// Process consumes the packet's atomic acts and replaces them with the
// completed-activity acts plus re-identification continuity acts.
//
// Before composition every act's tube references are fingerprinted with the
// camera id so instances cannot bind tubes from different cameras; completed
// acts are rewritten back afterwards.
func (c *Composer) Process(sp *tube.ServerPkt) {
	var res []act.Act
	cam := sp.CamID

	for _, a := range sp.Actions {
		a.Tube1 = cam + "|" + a.Tube1
		if a.Tube2 != "" {
			a.Tube2 = cam + "|" + a.Tube2
		}

		// Activate defaults that match this act.
		for _, g := range c.defaults {
			if !g.Match(a, true) {
				continue
			}
			inst := instance{g: g.Clone(), id: uuid.NewString()[:8]}
			inst.g.Match(a, false)
			if inst.g.Completed() {
				res = append(res, inst.g.ToAct(a.FrameID))
				monitoring.Logf("[CompAct] completed %s %s", inst.id, inst.g)
			} else {
				c.active = append(c.active, inst)
			}
		}

		// Then every active instance consumes the act.
		kept := c.active[:0]
		for _, inst := range c.active {
			inst.g.Match(a, false)
			if inst.g.Completed() {
				res = append(res, inst.g.ToAct(a.FrameID))
				monitoring.Logf("[CompAct] completed %s %s", inst.id, inst.g)
			} else {
				kept = append(kept, inst)
			}
		}
		c.active = kept
	}

	// Instances that made no progress this packet are evicted, and the
	// active set is capped, oldest first.
	kept := c.active[:0]
	for _, inst := range c.active {
		if inst.g.Advanced() {
			kept = append(kept, inst)
		}
	}
	c.active = kept
	if over := len(c.active) - MaxGraphCacheSize; over > 0 {
		c.active = append(c.active[:0], c.active[over:]...)
	}
	monitoring.Logf("[CompAct] active graph count %d", len(c.active))

	// Rewrite completed acts back to bare tube ids and record them per tube.
	for i := range res {
		res[i].Tube1 = stripCam(res[i].Tube1)
		c.record(cam, res[i].Tube1, res[i].Name)
		if res[i].Tube2 != "" {
			res[i].Tube2 = stripCam(res[i].Tube2)
			c.record(cam, res[i].Tube2, res[i].Name)
		}
	}
	sp.Actions = res

	// Synthesize a continuity act for each re-identification in the window.
	tids := make([]int, 0, len(sp.ReID))
	for tid := range sp.ReID {
		tids = append(tids, tid)
	}
	sort.Ints(tids)
	for _, tid := range tids {
		ref := sp.ReID[tid]
		monitoring.Logf("[CompAct] REID: (%s: %d) -> (%s: %d)", ref.Cam, ref.ID, cam, tid)
		sp.Actions = append(sp.Actions, c.reidAct(cam, "person", tid, ref.Cam, ref.ID))
	}
}

func (c *Composer) record(cam, tubeID, actName string) {
	key := idKey{cam, tubeID}
	c.idActions[key] = append(c.idActions[key], actName)
}

// reidAct tells the renderer where a re-identified tube came from, carrying
// the previous tube's recent acts.
func (c *Composer) reidAct(cam, label string, tubeID int, prevCam string, prevID int) act.Act {
	history := c.idActions[idKey{prevCam, strconv.Itoa(prevID)}]
	if len(history) > reidActHistory {
		history = history[len(history)-reidActHistory:]
	}
	return act.Act{
		Name:   fmt.Sprintf("From Cam-%s: %s", prevCam, strings.Join(history, ",")),
		Class1: label,
		Tube1:  strconv.Itoa(tubeID),
	}
}

func stripCam(fingerprinted string) string {
	if i := strings.IndexByte(fingerprinted, '|'); i >= 0 {
		return fingerprinted[i+1:]
	}
	return fingerprinted
}
