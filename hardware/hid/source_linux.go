//go:build linux
// +build linux

package hid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"

	"github.com/flexring/ringbridge/log2"
)

const sysClassHidraw = "/sys/class/hidraw"

// sysfsSource polls /sys/class/hidraw for new nodes. hidraw has no
// subscription API short of a netlink uevent socket; a 1 second scan is
// plenty for a device a human just paired.
type sysfsSource struct {
	log      *log2.Log
	alive    *alive.Alive
	ch       chan Info
	interval time.Duration
}

func NewSource(log *log2.Log) (Source, error) {
	if _, err := os.Stat(sysClassHidraw); err != nil {
		return nil, errors.Annotate(err, "hidraw sysfs")
	}
	self := &sysfsSource{
		log:      log,
		alive:    alive.NewAlive(),
		ch:       make(chan Info, 16),
		interval: 1 * time.Second,
	}
	if !self.alive.Add(1) {
		panic("code error hid source alive")
	}
	go self.scanLoop()
	return self, nil
}

func (self *sysfsSource) Attached() <-chan Info { return self.ch }

func (self *sysfsSource) Open(info Info) (Device, error) {
	f, err := os.OpenFile(info.Path, os.O_RDWR, 0)
	return f, errors.Annotatef(err, "hid open %s", info.Path)
}

func (self *sysfsSource) Close() error {
	self.alive.Stop()
	self.alive.Wait()
	return nil
}

func (self *sysfsSource) scanLoop() {
	defer self.alive.Done()
	seen := make(map[string]struct{})
	stopch := self.alive.StopChan()
	for {
		current, err := filepath.Glob(filepath.Join(sysClassHidraw, "hidraw*"))
		if err != nil {
			self.log.Errorf("hid scan err=%v", err)
		}
		now := make(map[string]struct{}, len(current))
		for _, sysPath := range current {
			name := filepath.Base(sysPath)
			now[name] = struct{}{}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			info, err := readInfo(sysPath)
			if err != nil {
				self.log.Debugf("hid scan %s err=%v", name, err)
				continue
			}
			select {
			case self.ch <- info:
				self.log.Debugf("hid attached %s", info.String())
			default:
				self.log.Errorf("hid attach overflow drop %s", info.String())
			}
		}
		// forget detached nodes so a re-pair is discovered again
		for name := range seen {
			if _, ok := now[name]; !ok {
				delete(seen, name)
			}
		}

		select {
		case <-stopch:
			return
		case <-time.After(self.interval):
		}
	}
}

// readInfo parses HID_NAME and HID_ID ("bus:vendor:product" in hex) from
// the node's uevent file.
func readInfo(sysPath string) (Info, error) {
	info := Info{Path: "/dev/" + filepath.Base(sysPath)}
	bs, err := os.ReadFile(filepath.Join(sysPath, "device", "uevent"))
	if err != nil {
		return info, errors.Trace(err)
	}
	for _, line := range strings.Split(string(bs), "\n") {
		switch {
		case strings.HasPrefix(line, "HID_NAME="):
			info.Name = strings.TrimPrefix(line, "HID_NAME=")
		case strings.HasPrefix(line, "HID_ID="):
			parts := strings.Split(strings.TrimPrefix(line, "HID_ID="), ":")
			if len(parts) != 3 {
				return info, errors.NotValidf("uevent HID_ID=%s", line)
			}
			vendor, err := strconv.ParseUint(parts[1], 16, 32)
			if err != nil {
				return info, errors.Trace(err)
			}
			product, err := strconv.ParseUint(parts[2], 16, 32)
			if err != nil {
				return info, errors.Trace(err)
			}
			info.VendorID = uint16(vendor)
			info.ProductID = uint16(product)
		}
	}
	if info.VendorID == 0 && info.ProductID == 0 {
		return info, errors.NotFoundf("uevent HID_ID")
	}
	return info, nil
}
