// Package msg defines the two values that cross the supervisor/worker
// process boundary: Configuration flows down, Status flows up.
package msg

import "fmt"

// Configuration is recreated in full by the owner on every settings change.
// It is a plain value; the supervisor keeps the last one sent so it can be
// replayed to a fresh worker after a restart.
type Configuration struct {
	// UDPAddress is the host:port the encoded telemetry is sent to.
	UDPAddress string `json:"udp_address"`
	// OSCAddress is the destination path embedded in every packet.
	OSCAddress string `json:"osc_address"`

	// InMin..InMax is the expected inclusive domain of raw sensor
	// readings. InCenter is the neutral point; values outside the range
	// are not rejected, they only skew the slope computation.
	InMin    byte `json:"in_min"`
	InMax    byte `json:"in_max"`
	InCenter byte `json:"in_center"`

	// OutMin..OutMax may arrive with either endpoint larger; the encoder
	// normalizes before clamping. OutIdle is emitted for a raw zero
	// reading ("no physical contact").
	OutMin  float32 `json:"out_min"`
	OutMax  float32 `json:"out_max"`
	OutIdle float32 `json:"out_idle"`
}

func (c Configuration) String() string {
	return fmt.Sprintf("udp=%s osc=%s in=%d..%d/%d out=%g..%g idle=%g",
		c.UDPAddress, c.OSCAddress, c.InMin, c.InMax, c.InCenter, c.OutMin, c.OutMax, c.OutIdle)
}

// InitStep numbering is a frozen contract with status consumers: a progress
// display divides by StepCount. Declaration order deliberately differs from
// the order the handshake executes in.
type InitStep uint8

const (
	StepConfiguring InitStep = iota
	StepMcuState
	StepMcuConfiguration0
	StepMcuConfiguration1
	Step4
	Step5
	Step6
	Step7

	StepCount = 8
)

func (s InitStep) String() string {
	switch s {
	case StepConfiguring:
		return "configuring"
	case StepMcuState:
		return "mcu-state"
	case StepMcuConfiguration0:
		return "mcu-config-0"
	case StepMcuConfiguration1:
		return "mcu-config-1"
	case Step4:
		return "step4"
	case Step5:
		return "step5"
	case Step6:
		return "step6"
	case Step7:
		return "step7"
	}
	return fmt.Sprintf("InitStep(%d)", uint8(s))
}

type StatusKind uint8

const (
	StatusNotConnected StatusKind = iota
	StatusInitializing
	StatusNoRingCon
	StatusActive
	StatusDisconnected
)

// Status is produced only by the worker. Variants are mutually exclusive;
// Step is meaningful only for StatusInitializing, Flex only for StatusActive.
type Status struct {
	Kind StatusKind `json:"kind"`
	Step InitStep   `json:"step,omitempty"`
	Flex byte       `json:"flex,omitempty"`
}

func NotConnected() Status           { return Status{Kind: StatusNotConnected} }
func Initializing(s InitStep) Status { return Status{Kind: StatusInitializing, Step: s} }
func NoRingCon() Status              { return Status{Kind: StatusNoRingCon} }
func Active(flex byte) Status        { return Status{Kind: StatusActive, Flex: flex} }
func Disconnected() Status           { return Status{Kind: StatusDisconnected} }

func (s Status) String() string {
	switch s.Kind {
	case StatusNotConnected:
		return "not-connected"
	case StatusInitializing:
		return fmt.Sprintf("initializing %d/%d (%s)", uint8(s.Step), StepCount, s.Step.String())
	case StatusNoRingCon:
		return "no-ringcon"
	case StatusActive:
		return fmt.Sprintf("active flex=%d", s.Flex)
	case StatusDisconnected:
		return "disconnected"
	}
	return fmt.Sprintf("Status(%d)", uint8(s.Kind))
}
