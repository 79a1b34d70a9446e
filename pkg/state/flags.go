package state

import (
	"maps"
	"slices"
)

// FlagSet holds the persistent boolean facts of a playthrough. Flags are only
// ever added; Reset clears them for a new game.
type FlagSet struct {
	flags map[string]bool
}

// NewFlagSet creates an empty flag set.
func NewFlagSet() *FlagSet {
	return &FlagSet{flags: make(map[string]bool)}
}

// Set marks a flag. Empty names are ignored.
func (f *FlagSet) Set(name string) {
	if name == "" {
		return
	}
	f.flags[name] = true
}

// Has reports whether a flag is set.
func (f *FlagSet) Has(name string) bool {
	return f.flags[name]
}

// HasAll reports whether every named flag is set.
func (f *FlagSet) HasAll(names ...string) bool {
	for _, n := range names {
		if !f.flags[n] {
			return false
		}
	}
	return true
}

// Names returns the set flags in sorted order.
func (f *FlagSet) Names() []string {
	return slices.Sorted(maps.Keys(f.flags))
}

// Export returns a copy of the flags for persistence.
func (f *FlagSet) Export() map[string]bool {
	return maps.Clone(f.flags)
}

// Restore replaces all flags. False entries are dropped.
func (f *FlagSet) Restore(flags map[string]bool) {
	f.flags = make(map[string]bool, len(flags))
	for name, v := range flags {
		if v {
			f.flags[name] = true
		}
	}
}

// Reset clears every flag.
func (f *FlagSet) Reset() {
	f.flags = make(map[string]bool)
}
