// Package hid provides just enough raw HID access for one accessory:
// a hot-plug stream of attached devices and report-level I/O on an opened
// device. The Source interface exists so protocol code can run against an
// in-memory fake in tests.
package hid

import (
	"fmt"
	"io"
)

type Info struct {
	Path      string
	VendorID  uint16
	ProductID uint16
	Name      string
}

func (i Info) String() string {
	return fmt.Sprintf("%04x:%04x %s path=%s", i.VendorID, i.ProductID, i.Name, i.Path)
}

// Device reads input reports and writes output reports, one per call.
type Device interface {
	io.ReadWriteCloser
}

type Source interface {
	// Attached yields devices discovered after the source was created.
	// The channel is never closed while the source is open.
	Attached() <-chan Info
	Open(Info) (Device, error)
	Close() error
}
