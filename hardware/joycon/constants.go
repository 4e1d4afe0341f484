package joycon

import "github.com/flexring/ringbridge/helpers"

// Interop constants. The initialization payloads and reply predicates are a
// frozen contract with the accessory firmware; they were captured from a
// working driver and must not be "cleaned up".

const (
	VendorNintendo = 0x057e
	ProductJoyConL = 0x2006
	ProductJoyConR = 0x2007
	ProductProCon  = 0x2009
)

const (
	// every output command report carries this tag and 8 neutral rumble bytes
	outputReportCommand = 0x01

	// input report tags
	reportTagReply  = 0x21 // sub-command reply
	reportTagSensor = 0x30 // standard full report with flex data

	// InputReportLength is the fixed read buffer size; shorter reads are
	// zero-padded so reply predicates can index anywhere inside.
	InputReportLength = 362

	// sub-command reply layout
	ackOffset     = 13 // high bit set = acknowledged
	replyIDOffset = 14 // echoes the sub-command code

	// sensor frame layout
	flexOffset = 40
)

const (
	subSetInputReportMode = 0x03
	subSetPlayerLights    = 0x30
	subEnableIMU          = 0x40
	subEnableVibration    = 0x48

	subSetMCUConfig = 0x21
	subSetMCUState  = 0x22

	// ringcon-specific vendor commands, codes only known from captures
	subRingLast   = 0x58
	subRingPoll   = 0x59
	subRingEnable = 0x5a
	subRingData   = 0x5c
)

// player light argument: LED0 steady plus LED0 flash bit
const lightsSteady = 0x11

var rumbleNeutral = [8]byte{0x00, 0x01, 0x40, 0x40, 0x00, 0x01, 0x40, 0x40}

var mcuConfig1Payload = []byte{
	0x21, 0x00, 0x03, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0xfa,
}

var mcuStatePayload = []byte{
	0x21, 0x01, 0x01, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0xf3,
}

// opaque blob straight from a capture, see MustHex to compare with new dumps
var ringDataPayload = helpers.MustHex("06032506000000001c16ed34360000000a640be6a9220000040000000000000090a8e13436")

var ringEnablePayload = []byte{0x04, 0x01, 0x01, 0x02}
var ringLastPayload = []byte{0x04, 0x04, 0x12, 0x02}
