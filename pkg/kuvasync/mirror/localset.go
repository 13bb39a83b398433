package mirror

import (
	"sort"

	"github.com/samber/lo"
)

// localSet is the working set of file names found in a local folder. Names
// are claimed by the listing; whatever is left unclaimed is stale.
type localSet map[string]struct{}

func newLocalSet(names []string) localSet {
	return localSet(lo.SliceToMap(names, func(n string) (string, struct{}) {
		return n, struct{}{}
	}))
}

// claim removes name from the set and reports whether it was there.
func (s localSet) claim(name string) bool {
	if _, ok := s[name]; !ok {
		return false
	}
	delete(s, name)
	return true
}

// drop removes name without reporting.
func (s localSet) drop(name string) {
	delete(s, name)
}

// remaining returns the unclaimed names in sorted order.
func (s localSet) remaining() []string {
	names := lo.Keys(s)
	sort.Strings(names)
	return names
}
