package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Stream is an open microphone. Close releases the device.
type Stream = io.ReadCloser

// Device opens microphone streams encoded in a given MIME type.
type Device interface {
	Supports(mime string) bool
	Open(ctx context.Context, mime string) (Stream, error)
}

// ErrUnsupported is returned by Open for a MIME type the device cannot produce.
var ErrUnsupported = errors.New("unsupported recording format")

// CommandDevice records by running an external encoder (ffmpeg, arecord,
// parec...) that writes the encoded stream to stdout. Commands maps a MIME
// type to a shell-style argv, e.g. "ffmpeg -f pulse -i default -f webm -".
type CommandDevice struct {
	Commands map[string]string
	// Grace is how long Close waits after SIGINT before killing the recorder.
	Grace time.Duration
}

// Supports reports whether a command is configured for mime.
func (d *CommandDevice) Supports(mime string) bool {
	_, ok := d.Commands[mime]
	return ok
}

// Open starts the recorder. The process is not tied to ctx; it runs until the
// stream is closed.
func (d *CommandDevice) Open(ctx context.Context, mime string) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	argv := strings.Fields(d.Commands[mime])
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, mime)
	}

	pr, pw := io.Pipe()
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = pw
	if err := cmd.Start(); err != nil {
		pw.Close()
		return nil, fmt.Errorf("start recorder %s: %w", argv[0], err)
	}

	grace := d.Grace
	if grace <= 0 {
		grace = 2 * time.Second
	}
	return &commandStream{cmd: cmd, r: pr, w: pw, grace: grace}, nil
}

type commandStream struct {
	cmd   *exec.Cmd
	r     *io.PipeReader
	w     *io.PipeWriter
	grace time.Duration
}

func (s *commandStream) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

// Close interrupts the recorder so it can flush its container trailer, and
// kills it if it does not exit in time.
func (s *commandStream) Close() error {
	exited := make(chan error, 1)
	go func() { exited <- s.cmd.Wait() }()

	_ = s.cmd.Process.Signal(os.Interrupt)
	select {
	case <-exited:
	case <-time.After(s.grace):
		_ = s.cmd.Process.Kill()
		<-exited
	}
	return s.w.Close()
}
