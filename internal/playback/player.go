package playback

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/ManuGH/xg2g/internal/log"
	"github.com/ManuGH/xg2g/internal/procgroup"
)

// playerBinary resolves the platform audio player: afplay on Darwin, aplay
// elsewhere on POSIX systems. Overridable in tests.
var playerBinary = func() string {
	if runtime.GOOS == "darwin" {
		return "afplay"
	}
	return "aplay"
}

// killGrace and killTimeout bound how long Play waits for the player
// subprocess to exit after a termination signal before giving up.
const (
	killGrace   = 3 * time.Second
	killTimeout = 2 * time.Second
)

// SetPlayerBinaryForTest overrides the resolved player binary for the
// duration of a test and returns a function that restores the previous
// resolver. Intended for use by other packages' tests that exercise Play
// indirectly and need a deterministic stand-in binary.
func SetPlayerBinaryForTest(binary func() string) (restore func()) {
	previous := playerBinary
	playerBinary = binary
	return func() { playerBinary = previous }
}

// Play invokes the platform audio player on wavPath and blocks until it
// exits. Failure of the player subprocess is reported to the caller but is
// never propagated to the RPC client: per the error taxonomy, a playback
// failure is logged and treated as end-of-request.
func Play(ctx context.Context, wavPath string) error {
	logger := log.WithComponent("playback")

	cmd := exec.CommandContext(ctx, playerBinary(), wavPath)
	procgroup.Set(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start player subprocess: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	select {
	case err := <-waitErr:
		if err != nil {
			return fmt.Errorf("player subprocess exited with error: %w", err)
		}
		return nil
	case <-ctx.Done():
		if cmd.Process != nil {
			if err := procgroup.KillGroup(cmd.Process.Pid, killGrace, killTimeout); err != nil {
				logger.Warn().Err(err).Msg("failed to kill player process group on cancellation")
			}
		}
		<-waitErr
		return ctx.Err()
	}
}
