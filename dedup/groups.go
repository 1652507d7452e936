package dedup

import (
	"sort"
	"strings"

	"github.com/grailbio/base/errors"
)

// AntibodyGroups maps an antibody name to the barcodes that identify it.
// Each group gets its own cut-site output.
type AntibodyGroups map[string][]string

// ParseAntibodyGroup parses "name:bc1,bc2,..." into a group name and its
// barcodes.
func ParseAntibodyGroup(arg string) (name string, barcodes []string, err error) {
	parts := strings.Split(arg, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", nil, errors.E(errors.Invalid, "antibody group", arg, "must be name:barcode[,barcode...]")
	}
	for _, bc := range strings.Split(parts[1], ",") {
		if bc = strings.TrimSpace(bc); bc != "" {
			barcodes = append(barcodes, bc)
		}
	}
	if len(barcodes) == 0 {
		return "", nil, errors.E(errors.Invalid, "antibody group", arg, "has no barcodes")
	}
	return parts[0], barcodes, nil
}

// Set parses arg with ParseAntibodyGroup and adds its barcodes to the
// named group.
func (g AntibodyGroups) Set(arg string) error {
	name, barcodes, err := ParseAntibodyGroup(arg)
	if err != nil {
		return err
	}
	g[name] = append(g[name], barcodes...)
	return nil
}

// String implements flag.Value.
func (g AntibodyGroups) String() string {
	var parts []string
	for _, name := range g.Names() {
		parts = append(parts, name+":"+strings.Join(g[name], ","))
	}
	return strings.Join(parts, " ")
}

// Names returns the group names in sorted order.
func (g AntibodyGroups) Names() []string {
	names := make([]string, 0, len(g))
	for name := range g {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// validate checks that there is at least one group and that group names
// are usable in file names.
func (g AntibodyGroups) validate() error {
	if len(g) == 0 {
		return errors.E(errors.Invalid, "at least one antibody group is required")
	}
	for name, barcodes := range g {
		if name == "" || strings.ContainsAny(name, "/\\") {
			return errors.E(errors.Invalid, "invalid antibody group name", name)
		}
		if name == "dedup" || name == "freq" {
			return errors.E(errors.Invalid, "antibody group name", name, "clashes with an output file")
		}
		if len(barcodes) == 0 {
			return errors.E(errors.Invalid, "antibody group", name, "has no barcodes")
		}
	}
	return nil
}

// barcodeIndex maps each barcode to the sorted names of the groups that
// contain it.
type barcodeIndex map[string][]string

func (g AntibodyGroups) index() barcodeIndex {
	idx := barcodeIndex{}
	for _, name := range g.Names() {
		seen := map[string]bool{}
		for _, bc := range g[name] {
			if !seen[bc] {
				seen[bc] = true
				idx[bc] = append(idx[bc], name)
			}
		}
	}
	return idx
}
