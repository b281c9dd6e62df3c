package indicator

import (
	"context"
	"log/slog"
	"time"

	"vejrstation-node/internal/clock"
)

const (
	WarningFlashes   = 5
	WarningFlashTime = 200 * time.Millisecond
	FaultHalfPeriod  = 1000 * time.Millisecond
)

// Indicator sequences frames on a Display. It blocks the caller for the
// duration of an animation.
type Indicator struct {
	display Display
	sleeper clock.Sleeper
	logger  *slog.Logger
}

func New(display Display, sleeper clock.Sleeper, logger *slog.Logger) *Indicator {
	if display == nil {
		display = Nop{}
	}
	if sleeper == nil {
		sleeper = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indicator{display: display, sleeper: sleeper, logger: logger}
}

func (i *Indicator) Show(f Frame) {
	if err := i.display.Show(f); err != nil {
		i.logger.Warn("indicator: show failed", "frame", f.String(), "error", err)
	}
}

func (i *Indicator) Clear() {
	if err := i.display.Clear(); err != nil {
		i.logger.Warn("indicator: clear failed", "error", err)
	}
}

// Warn plays the warning animation: five flashes of the warning glyph, then clear.
func (i *Indicator) Warn(ctx context.Context) error {
	defer i.Clear()
	for n := 0; n < WarningFlashes; n++ {
		i.Show(Warning)
		if err := i.sleeper.Sleep(ctx, WarningFlashTime); err != nil {
			return err
		}
		i.Show(Blank)
		if err := i.sleeper.Sleep(ctx, WarningFlashTime); err != nil {
			return err
		}
	}
	return nil
}

// Fault alternates the warning glyph and the blank frame at 1 Hz until ctx ends.
func (i *Indicator) Fault(ctx context.Context) error {
	for {
		i.Show(Warning)
		if err := i.sleeper.Sleep(ctx, FaultHalfPeriod); err != nil {
			return err
		}
		i.Show(Blank)
		if err := i.sleeper.Sleep(ctx, FaultHalfPeriod); err != nil {
			return err
		}
	}
}
