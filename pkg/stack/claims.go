package stack

import (
	"sync"

	"github.com/jaxxstorm/awsloadbalancercontroller/internal/state"
)

// claims maps object and cloud keys to the declared resources that want
// them during an Up. Pruning and orphan deletion leave keys held by another
// resource in place.
type claims struct {
	mu      sync.Mutex
	objects map[string]map[URN]bool
	cloud   map[string]map[URN]bool
}

func newClaims() *claims {
	return &claims{
		objects: map[string]map[URN]bool{},
		cloud:   map[string]map[URN]bool{},
	}
}

func claim(keys map[string]map[URN]bool, key string, urn URN) {
	if keys[key] == nil {
		keys[key] = map[URN]bool{}
	}
	keys[key][urn] = true
}

// addDesired claims everything in d for urn.
func (c *claims) addDesired(urn URN, d *Desired) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, obj := range d.Objects {
		claim(c.objects, ObjectRef(obj).Key(), urn)
	}
	for _, item := range d.Cloud {
		claim(c.cloud, CloudRef(item).Key(), urn)
	}
}

// addRecord claims everything rec holds for its URN.
func (c *claims) addRecord(rec *state.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ref := range rec.Objects {
		claim(c.objects, ref.Key(), URN(rec.URN))
	}
	for _, ref := range rec.Cloud {
		claim(c.cloud, ref.Key(), URN(rec.URN))
	}
}

func heldByOther(owners map[URN]bool, urn URN) bool {
	for owner := range owners {
		if owner != urn {
			return true
		}
	}
	return false
}

// splitObjects separates refs urn claims from the rest.
func (c *claims) splitObjects(urn URN, refs []state.ObjectRef) (own, stale []state.ObjectRef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ref := range refs {
		if c.objects[ref.Key()][urn] {
			own = append(own, ref)
		} else {
			stale = append(stale, ref)
		}
	}
	return own, stale
}

// splitCloud separates refs urn claims from the rest.
func (c *claims) splitCloud(urn URN, refs []state.CloudRef) (own, stale []state.CloudRef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ref := range refs {
		if c.cloud[ref.Key()][urn] {
			own = append(own, ref)
		} else {
			stale = append(stale, ref)
		}
	}
	return own, stale
}

// unclaimedObjects returns the refs no resource other than urn claims. A nil
// receiver claims nothing.
func (c *claims) unclaimedObjects(urn URN, refs []state.ObjectRef) []state.ObjectRef {
	if c == nil {
		return refs
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []state.ObjectRef
	for _, ref := range refs {
		if !heldByOther(c.objects[ref.Key()], urn) {
			out = append(out, ref)
		}
	}
	return out
}

// unclaimedCloud returns the refs no resource other than urn claims. A nil
// receiver claims nothing.
func (c *claims) unclaimedCloud(urn URN, refs []state.CloudRef) []state.CloudRef {
	if c == nil {
		return refs
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []state.CloudRef
	for _, ref := range refs {
		if !heldByOther(c.cloud[ref.Key()], urn) {
			out = append(out, ref)
		}
	}
	return out
}
