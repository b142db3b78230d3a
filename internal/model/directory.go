package model

import (
	"fmt"
	"strings"
)

// Department maps an organizational unit to its forwarding address.
type Department struct {
	// Name is the unique department name shown to users and to the model.
	Name string `mapstructure:"name" yaml:"name"`

	// Address is the forwarding mailbox. Empty means unconfigured.
	Address string `mapstructure:"address" yaml:"address"`
}

// Directory is an ordered department list. Order is preserved for display
// and for the prompt; names are matched exactly.
type Directory []Department

// DefaultDepartments returns the stock departments, all unconfigured.
func DefaultDepartments() Directory {
	names := []string{
		"Finance", "HR", "IT Support", "Sales",
		"Marketing", "Legal", "Operations", "Executive",
	}
	dir := make(Directory, 0, len(names))
	for _, n := range names {
		dir = append(dir, Department{Name: n})
	}
	return dir
}

// NewDirectory builds a directory from name/address pairs in the given order.
func NewDirectory(pairs ...Department) (Directory, error) {
	dir := Directory(pairs)
	if err := dir.Validate(); err != nil {
		return nil, err
	}
	return dir, nil
}

// Validate checks that every name is non-empty and unique.
func (d Directory) Validate() error {
	seen := make(map[string]bool, len(d))
	for i, dep := range d {
		if strings.TrimSpace(dep.Name) == "" {
			return fmt.Errorf("department %d has an empty name", i)
		}
		if seen[dep.Name] {
			return fmt.Errorf("duplicate department %q", dep.Name)
		}
		seen[dep.Name] = true
	}
	return nil
}

// Names returns department names in directory order.
func (d Directory) Names() []string {
	names := make([]string, 0, len(d))
	for _, dep := range d {
		names = append(names, dep.Name)
	}
	return names
}

// Has reports whether name is an exact member of the directory.
func (d Directory) Has(name string) bool {
	_, ok := d.lookup(name)
	return ok
}

// Address returns the configured address for name. ok is false when the
// department is absent or its address is empty.
func (d Directory) Address(name string) (addr string, ok bool) {
	dep, found := d.lookup(name)
	if !found {
		return "", false
	}
	addr = strings.TrimSpace(dep.Address)
	return addr, addr != ""
}

// WithAddress returns a copy of the directory with name's address replaced.
// Unknown names are left untouched.
func (d Directory) WithAddress(name, addr string) Directory {
	out := make(Directory, len(d))
	copy(out, d)
	for i := range out {
		if out[i].Name == name {
			out[i].Address = addr
		}
	}
	return out
}

// Unconfigured lists departments that have no forwarding address.
func (d Directory) Unconfigured() []string {
	var names []string
	for _, dep := range d {
		if strings.TrimSpace(dep.Address) == "" {
			names = append(names, dep.Name)
		}
	}
	return names
}

func (d Directory) lookup(name string) (Department, bool) {
	for _, dep := range d {
		if dep.Name == name {
			return dep, true
		}
	}
	return Department{}, false
}
