package main

// Linux input event types and codes (from <linux/input.h>)
const (
	EV_SYN = 0x00
	EV_KEY = 0x01
	EV_ABS = 0x03

	// Gamepad buttons
	BTN_SOUTH  = 0x130
	BTN_EAST   = 0x131
	BTN_C      = 0x132
	BTN_NORTH  = 0x133
	BTN_WEST   = 0x134
	BTN_Z      = 0x135
	BTN_TL     = 0x136
	BTN_TR     = 0x137
	BTN_TL2    = 0x138
	BTN_TR2    = 0x139
	BTN_SELECT = 0x13a
	BTN_START  = 0x13b
	BTN_MODE   = 0x13c

	BTN_DPAD_UP    = 0x220
	BTN_DPAD_DOWN  = 0x221
	BTN_DPAD_LEFT  = 0x222
	BTN_DPAD_RIGHT = 0x223

	// Absolute axes
	ABS_X     = 0x00
	ABS_Y     = 0x01
	ABS_RX    = 0x03
	ABS_RY    = 0x04
	ABS_HAT0X = 0x10
	ABS_HAT0Y = 0x11
)

// Input event value constants
const (
	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

// Poll loop configuration
const (
	defaultPollHz      = 60 // Controller poll frequency (Hz), one decode per tick
	maxPollHz          = 1000
	defaultIPCSocket   = "/tmp/osdbrainz.sock"
	defaultHTTPPort    = 3011
	defaultInputDevice = "/dev/input/event0"

	// Analog stick values from evdev are clamped into the controller's int8 range.
	axisMin = -128
	axisMax = 127

	// How long an IPC get_status waits for the daemon loop.
	statusReplyTimeoutMS = 1000
)
