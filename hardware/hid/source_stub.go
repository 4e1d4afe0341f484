//go:build !linux
// +build !linux

package hid

import (
	"github.com/juju/errors"

	"github.com/flexring/ringbridge/log2"
)

func NewSource(log *log2.Log) (Source, error) {
	return nil, errors.NotImplementedf("hid source on this platform")
}
