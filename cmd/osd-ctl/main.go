package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"osdbrainz/internal/ctrl"
	"osdbrainz/internal/ipcclient"
)

// ============================================================================
// osd-ctl - Command-line IPC Client
// ============================================================================
// This tool drives the osdbrainz pad over IPC, so combos can be exercised
// without a controller attached.
//
// Usage:
//   osd-ctl press l
//   osd-ctl release l
//   osd-ctl tap l r d_right
//   osd-ctl snapshot 0x00310000
//   osd-ctl status
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/osdbrainz.sock)
//   -hold DURATION  How long tap holds the combo (default: 150ms)
// ============================================================================

const (
	defaultSocket = "/tmp/osdbrainz.sock"
	defaultHold   = 150 * time.Millisecond
)

// Request payloads (duplicated from the daemon package for a standalone binary)
type padButton struct {
	Line    ctrl.Line `json:"line"`
	Pressed bool      `json:"pressed"`
}

type padAxis struct {
	Axis  string `json:"axis"`
	Value int8   `json:"value"`
}

type setSnapshot struct {
	Raw ctrl.Snapshot `json:"raw"`
}

type request = ipcclient.Request

// step is a request followed by an optional pause before the next one.
type step struct {
	req   request
	pause time.Duration
}

type options struct {
	socket string
	hold   time.Duration
}

func main() {
	opts, args, err := parseOptions(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printUsage()
		os.Exit(0)
	}

	steps, err := buildSteps(args, opts.hold)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		printUsage()
		os.Exit(1)
	}

	for _, s := range steps {
		data, err := ipcclient.Send(opts.socket, s.req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if len(data) > 0 {
			var out bytes.Buffer
			if err := json.Indent(&out, data, "", "  "); err != nil {
				out.Reset()
				out.Write(data)
			}
			fmt.Println(out.String())
		}
		if s.pause > 0 {
			time.Sleep(s.pause)
		}
	}

	if steps[len(steps)-1].req.Type != "get_status" {
		fmt.Println("ok")
	}
}

// parseOptions consumes leading -socket and -hold options.
func parseOptions(args []string) (options, []string, error) {
	opts := options{socket: defaultSocket, hold: defaultHold}
	for len(args) > 0 {
		switch args[0] {
		case "-socket", "--socket":
			if len(args) < 2 {
				return opts, nil, fmt.Errorf("-socket requires an argument")
			}
			opts.socket = args[1]
			args = args[2:]

		case "-hold", "--hold":
			if len(args) < 2 {
				return opts, nil, fmt.Errorf("-hold requires an argument")
			}
			d, err := time.ParseDuration(args[1])
			if err != nil || d <= 0 {
				return opts, nil, fmt.Errorf("invalid -hold duration: %q", args[1])
			}
			opts.hold = d
			args = args[2:]

		default:
			return opts, args, nil
		}
	}
	return opts, args, nil
}

// buildSteps turns a command line into the IPC requests to send.
func buildSteps(args []string, hold time.Duration) ([]step, error) {
	cmd, rest := args[0], args[1:]

	one := func(r request) []step { return []step{{req: r}} }

	switch cmd {
	case "press", "release":
		if len(rest) != 1 {
			return nil, fmt.Errorf("%s requires one line name", cmd)
		}
		line, err := ctrl.ParseLine(rest[0])
		if err != nil {
			return nil, err
		}
		return one(request{Type: "pad_button", Data: padButton{Line: line, Pressed: cmd == "press"}}), nil

	case "tap", "combo":
		if len(rest) == 0 {
			return nil, fmt.Errorf("%s requires at least one line name", cmd)
		}
		lines := make([]ctrl.Line, 0, len(rest))
		for _, name := range rest {
			line, err := ctrl.ParseLine(name)
			if err != nil {
				return nil, err
			}
			lines = append(lines, line)
		}
		// The whole combo lands in one snapshot so no partial chord is sampled.
		return []step{
			{req: request{Type: "set_snapshot", Data: setSnapshot{Raw: ctrl.Combo(lines...)}}, pause: hold},
			{req: request{Type: "release_all"}},
		}, nil

	case "axis":
		if len(rest) != 2 || (rest[0] != "x" && rest[0] != "y") {
			return nil, fmt.Errorf("axis requires x|y and a value")
		}
		v, err := strconv.ParseInt(rest[1], 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid axis value: %v", err)
		}
		return one(request{Type: "pad_axis", Data: padAxis{Axis: rest[0], Value: int8(v)}}), nil

	case "snapshot", "set":
		if len(rest) != 1 {
			return nil, fmt.Errorf("snapshot requires a 32-bit value")
		}
		v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(rest[0]), "0x"), 16, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid snapshot value: %v", err)
		}
		return one(request{Type: "set_snapshot", Data: setSnapshot{Raw: ctrl.Snapshot(v)}}), nil

	case "release-all", "reset":
		return one(request{Type: "release_all"}), nil

	case "status":
		return one(request{Type: "get_status"}), nil

	default:
		return nil, fmt.Errorf("unknown command: %s", cmd)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `osd-ctl - Drive the osdbrainz pad via IPC

Usage:
  osd-ctl [options] <command> [args]

Options:
  -socket PATH      Unix domain socket path (default: %s)
  -hold DURATION    How long tap holds the combo (default: %s)

Commands:
  press <line>            Press one controller line
  release <line>          Release one controller line
  tap, combo <line>...    Hold lines together for -hold, then release all
  axis <x|y> <value>      Set an analog stick axis (-128..127)
  snapshot, set <hex>     Replace the whole controller word
  release-all, reset      Release every line and centre the stick
  status                  Print decoder and OSD status
  help, -h, --help        Show this help message

Lines:
  %s

Examples:
  osd-ctl tap l r d_right          # open_menu
  osd-ctl tap z start r c_right    # deblur_quick_on
  osd-ctl snapshot 0x20200000      # hold L+Z (mute_menu)
  osd-ctl status
`, defaultSocket, defaultHold, strings.Join(ctrl.LineNames(), ", "))
}
