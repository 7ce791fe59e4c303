package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandRun      Command = "run"
	CommandModels   Command = "models"
	CommandDownload Command = "download"
	CommandDelete   Command = "delete"
	CommandUse      Command = "use"
	CommandDevices  Command = "devices"
	CommandStatus   Command = "status"
	CommandCancel   Command = "cancel"
	CommandReset    Command = "reset"
	CommandDoctor   Command = "doctor"
	CommandVersion  Command = "version"
	CommandHelp     Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandRun:      {},
	CommandModels:   {},
	CommandDownload: {},
	CommandDelete:   {},
	CommandUse:      {},
	CommandDevices:  {},
	CommandStatus:   {},
	CommandCancel:   {},
	CommandReset:    {},
	CommandDoctor:   {},
	CommandVersion:  {},
	CommandHelp:     {},
}

// commandsWithArg take exactly one positional model id argument.
var commandsWithArg = map[Command]struct{}{
	CommandDownload: {},
	CommandDelete:   {},
	CommandUse:      {},
}

type Parsed struct {
	Command    Command
	ModelID    string
	ConfigPath string
	ShowHelp   bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp

			rest := args[i+1:]
			if _, needsArg := commandsWithArg[cmd]; needsArg {
				if len(rest) != 1 {
					return Parsed{}, fmt.Errorf("command %q requires exactly one model id", arg)
				}
				parsed.ModelID = rest[0]
				return parsed, nil
			}
			if len(rest) != 0 {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
			}
		}
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command>

Commands:
  run            Run the dictation daemon (hold the hotkey to dictate)
  models         List models and their download status
  download ID    Download a model (tiny, base, small, medium, large)
  delete ID      Delete a downloaded model
  use ID         Switch the active model
  devices        List available input devices
  status         Print daemon state
  cancel         Discard the in-flight recording
  reset          Clear a stuck error state
  doctor         Run configuration and environment checks
  version        Print version information
  help           Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/murmur/config.conf)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
