package ctrl

import (
	"encoding/json"
	"fmt"
)

// Command is a decoded OSD event.
type Command uint8

// List of decoded commands. None is the zero value.
const (
	None Command = iota
	OpenMenu
	CloseMenu
	MuteMenu
	UnmuteMenu
	DeblurQuickOn
	DeblurQuickOff
	Bit15QuickOn
	Bit15QuickOff
	MenuEnter
	MenuBack
	MenuUp
	MenuDown
	MenuLeft
	MenuRight

	numCommands
)

var commandNames = [numCommands]string{
	None:           "none",
	OpenMenu:       "open_menu",
	CloseMenu:      "close_menu",
	MuteMenu:       "mute_menu",
	UnmuteMenu:     "unmute_menu",
	DeblurQuickOn:  "deblur_quick_on",
	DeblurQuickOff: "deblur_quick_off",
	Bit15QuickOn:   "15bit_quick_on",
	Bit15QuickOff:  "15bit_quick_off",
	MenuEnter:      "menu_enter",
	MenuBack:       "menu_back",
	MenuUp:         "menu_up",
	MenuDown:       "menu_down",
	MenuLeft:       "menu_left",
	MenuRight:      "menu_right",
}

// Commands returns every command including None.
func Commands() []Command {
	cmds := make([]Command, 0, numCommands)
	for c := None; c < numCommands; c++ {
		cmds = append(cmds, c)
	}
	return cmds
}

func (c Command) String() string {
	if c < numCommands {
		return commandNames[c]
	}
	return fmt.Sprintf("command(%d)", uint8(c))
}

// ParseCommand resolves a wire name such as "menu_up".
func ParseCommand(name string) (Command, error) {
	for c, n := range commandNames {
		if n == name {
			return Command(c), nil
		}
	}
	return None, fmt.Errorf("unknown command: %q", name)
}

// IsNavigation reports whether c is one of the directional menu commands.
func (c Command) IsNavigation() bool {
	return c >= MenuUp && c <= MenuRight
}

// MarshalJSON encodes the command by wire name.
func (c Command) MarshalJSON() ([]byte, error) {
	if c >= numCommands {
		return nil, fmt.Errorf("marshal command: invalid value %d", uint8(c))
	}
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes a wire name.
func (c *Command) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("unmarshal command: %w", err)
	}
	parsed, err := ParseCommand(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
