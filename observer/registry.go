package observer

// registry is the ordered set of observed elements. Membership is by identity
// and insertion order is kept so batches are deterministic.
type registry struct {
	elements []Element
}

func newRegistry() *registry {
	return &registry{elements: make([]Element, 0)}
}

func (r *registry) indexOf(e Element) int {
	for i, existing := range r.elements {
		if existing == e {
			return i
		}
	}
	return -1
}

// add appends e unless it is already present and reports whether it was added.
func (r *registry) add(e Element) bool {
	if r.indexOf(e) >= 0 {
		return false
	}
	r.elements = append(r.elements, e)
	return true
}

// remove deletes e and reports whether it was present.
func (r *registry) remove(e Element) bool {
	i := r.indexOf(e)
	if i < 0 {
		return false
	}
	r.elements = append(r.elements[:i:i], r.elements[i+1:]...)
	return true
}

func (r *registry) contains(e Element) bool {
	return r.indexOf(e) >= 0
}

func (r *registry) clear() {
	r.elements = r.elements[:0:0]
}

func (r *registry) len() int {
	return len(r.elements)
}

// snapshot returns a copy that stays valid if the registry changes while it is
// being iterated.
func (r *registry) snapshot() []Element {
	out := make([]Element, len(r.elements))
	copy(out, r.elements)
	return out
}
