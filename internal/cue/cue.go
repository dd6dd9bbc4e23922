// Package cue plays short notification sounds.
package cue

import (
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// Player plays the "message sent" cue. Play must not block.
type Player interface {
	Play()
}

// Nop plays nothing.
type Nop struct{}

func (Nop) Play() {}

// CommandPlayer runs a shell-style command such as "paplay ~/.springs/sent.wav".
type CommandPlayer struct {
	argv   []string
	logger *zap.Logger
	run    func(argv []string) error
}

// NewCommandPlayer returns a player for command, or Nop when command is blank.
func NewCommandPlayer(command string, logger *zap.Logger) Player {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandPlayer{argv: argv, logger: logger, run: runCommand}
}

// Play starts the command in the background. Failures are only logged.
func (p *CommandPlayer) Play() {
	go func() {
		if err := p.run(p.argv); err != nil {
			p.logger.Debug("sent cue failed", zap.Strings("argv", p.argv), zap.Error(err))
		}
	}()
}

func runCommand(argv []string) error {
	return exec.Command(argv[0], argv[1:]...).Run()
}
