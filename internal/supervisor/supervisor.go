// Package supervisor runs the sensor-health state machine of the node: it
// brings the BME280 up, measures on a fixed cadence, rejects implausible or
// stuck readings, recovers the sensor and hands valid samples to the publisher.
//
// The supervisor is single-threaded. Every wait is a blocking sleep, and the
// only way out of Run is the end of the process context.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"vejrstation-node/internal/clock"
	"vejrstation-node/internal/sensor"
	"vejrstation-node/internal/types"
	"vejrstation-node/internal/utils"
)

// ErrBringUp is returned by Run once the fault loop ends after a failed bring-up.
var ErrBringUp = errors.New("sensor bring-up failed")

type State int

const (
	StateInit State = iota
	StateRunning
	StateRecover
	StateFault
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateRunning:
		return "RUNNING"
	case StateRecover:
		return "RECOVER"
	case StateFault:
		return "FAULT"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Publisher is the outbound side of a cycle.
type Publisher interface {
	// EnsureConnected blocks until a broker session exists.
	EnsureConnected(ctx context.Context) error
	Publish(s types.Sample) error
}

// Indicator is the local status display.
type Indicator interface {
	Warn(ctx context.Context) error
	// Fault shows the fault pattern until ctx ends.
	Fault(ctx context.Context) error
}

type Options struct {
	Cadence          time.Duration
	ConversionWait   time.Duration
	ProbeAttempts    int
	ProbeBackoff     time.Duration
	BusSettle        time.Duration
	RecoverySettle   time.Duration
	RecoveryBackoff  time.Duration
	MaxStuckReadings int
	StuckEpsilon     float64
	// Addresses are probed in order on every attempt.
	Addresses []uint16
	Profile   sensor.Profile
}

func DefaultOptions() Options {
	return Options{
		Cadence:          5000 * time.Millisecond,
		ConversionWait:   100 * time.Millisecond,
		ProbeAttempts:    5,
		ProbeBackoff:     1000 * time.Millisecond,
		BusSettle:        500 * time.Millisecond,
		RecoverySettle:   2000 * time.Millisecond,
		RecoveryBackoff:  10000 * time.Millisecond,
		MaxStuckReadings: 3,
		StuckEpsilon:     0.01,
		Addresses:        []uint16{sensor.PrimaryAddr, sensor.SecondaryAddr},
		Profile:          sensor.WeatherProfile,
	}
}

type Supervisor struct {
	driver    sensor.Driver
	bus       sensor.Resetter
	publisher Publisher
	indicator Indicator
	sleeper   clock.Sleeper
	opts      Options
	logger    *slog.Logger

	state State
	// last is the most recently accepted reading, compared against for stuck detection.
	last  sensor.Reading
	stuck int
	cycle int
	addr  uint16
}

func New(
	driver sensor.Driver,
	bus sensor.Resetter,
	publisher Publisher,
	indicator Indicator,
	sleeper clock.Sleeper,
	opts Options,
	logger *slog.Logger,
) *Supervisor {
	if sleeper == nil {
		sleeper = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		driver:    driver,
		bus:       bus,
		publisher: publisher,
		indicator: indicator,
		sleeper:   sleeper,
		opts:      opts,
		logger:    logger,
		state:     StateInit,
	}
}

func (s *Supervisor) State() State         { return s.state }
func (s *Supervisor) StuckCount() int      { return s.stuck }
func (s *Supervisor) Cycle() int           { return s.cycle }
func (s *Supervisor) Last() sensor.Reading { return s.last }
func (s *Supervisor) Address() uint16      { return s.addr }

// Run drives the state machine until ctx ends.
func (s *Supervisor) Run(ctx context.Context) error {
	s.logger.Info("supervisor: starting",
		"cadence", s.opts.Cadence,
		"stuck_threshold", s.opts.MaxStuckReadings,
		"probe_attempts", s.opts.ProbeAttempts,
	)
	for {
		if err := s.Tick(ctx); err != nil {
			return err
		}
	}
}

// Tick performs one step for the current state: bring-up, one measurement
// cycle, one recovery or the fault loop. It returns an error only when ctx
// ends (wrapped with ErrBringUp in FAULT).
func (s *Supervisor) Tick(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch s.state {
	case StateInit:
		return s.bringUp(ctx)
	case StateRunning:
		return s.runCycle(ctx)
	case StateRecover:
		return s.recover(ctx)
	case StateFault:
		return s.fault(ctx)
	default:
		return fmt.Errorf("supervisor: unknown state %s", s.state)
	}
}

func (s *Supervisor) bringUp(ctx context.Context) error {
	s.logger.Info("supervisor: sensor bring-up")
	ok, err := s.probe(ctx)
	if err != nil {
		return err
	}
	if !ok {
		s.logger.Error("supervisor: bring-up failed, entering fault state",
			"attempts", s.opts.ProbeAttempts,
		)
		s.setState(StateFault)
		return nil
	}
	s.setState(StateRunning)
	return nil
}

func (s *Supervisor) recover(ctx context.Context) error {
	s.logger.Warn("supervisor: recovering sensor")
	ok, err := s.probe(ctx)
	if err != nil {
		return err
	}
	if !ok {
		s.logger.Error("supervisor: recovery failed",
			"attempts", s.opts.ProbeAttempts,
			"retry_in", s.opts.RecoveryBackoff,
		)
		if err := s.sleeper.Sleep(ctx, s.opts.RecoveryBackoff); err != nil {
			return err
		}
		// The next cycle fails to read and comes back here.
		s.setState(StateRunning)
		return nil
	}

	s.stuck = 0
	s.logger.Info("supervisor: recovery succeeded",
		"addr", utils.Addr(s.addr),
		"settle", s.opts.RecoverySettle,
	)
	if err := s.sleeper.Sleep(ctx, s.opts.RecoverySettle); err != nil {
		return err
	}
	s.setState(StateRunning)
	return nil
}

func (s *Supervisor) fault(ctx context.Context) error {
	err := s.indicator.Fault(ctx)
	if err == nil {
		err = ctx.Err()
	}
	return fmt.Errorf("%w: %w", ErrBringUp, err)
}

// probe tries every address per attempt, backing off and resetting the bus
// between attempts. A false result with nil error means the budget is spent.
func (s *Supervisor) probe(ctx context.Context) (bool, error) {
	for attempt := 1; attempt <= s.opts.ProbeAttempts; attempt++ {
		for _, addr := range s.opts.Addresses {
			s.logger.Info("supervisor: probing sensor",
				"attempt", attempt,
				"addr", utils.Addr(addr),
			)
			if !s.driver.Probe(addr) {
				continue
			}
			if err := s.driver.Configure(s.opts.Profile); err != nil {
				s.logger.Warn("supervisor: sensor found but configure failed",
					"addr", utils.Addr(addr),
					"error", err,
				)
				continue
			}
			s.addr = addr
			s.logger.Info("supervisor: sensor ready",
				"addr", utils.Addr(addr),
				"attempt", attempt,
			)
			return true, nil
		}

		s.logger.Warn("supervisor: no sensor answered", "attempt", attempt)
		if attempt == s.opts.ProbeAttempts {
			break
		}
		if err := s.sleeper.Sleep(ctx, s.opts.ProbeBackoff); err != nil {
			return false, err
		}
		if err := s.bus.Reset(ctx); err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			s.logger.Warn("supervisor: bus reset failed", "error", err)
		}
		if err := s.sleeper.Sleep(ctx, s.opts.BusSettle); err != nil {
			return false, err
		}
	}
	return false, nil
}

func (s *Supervisor) runCycle(ctx context.Context) error {
	s.cycle++

	if err := s.publisher.EnsureConnected(ctx); err != nil {
		return err
	}

	r, readErr := s.measure(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}
	if readErr != nil {
		s.logger.Warn("supervisor: reading rejected", "cycle", s.cycle, "reason", readErr.Error())
		return s.enterRecover(ctx)
	}

	if err := Validate(r); err != nil {
		s.logger.Warn("supervisor: reading rejected",
			"cycle", s.cycle,
			"reason", err.Error(),
			"T", r.Temperature, "H", r.Humidity, "P", r.Pressure,
		)
		return s.enterRecover(ctx)
	}

	if within(r, s.last, s.opts.StuckEpsilon) {
		s.stuck++
		s.logger.Info("supervisor: reading unchanged",
			"cycle", s.cycle,
			"stuck_count", s.stuck,
			"threshold", s.opts.MaxStuckReadings,
		)
		if s.stuck >= s.opts.MaxStuckReadings {
			s.logger.Warn("supervisor: sensor stuck",
				"cycle", s.cycle,
				"T", r.Temperature, "H", r.Humidity, "P", r.Pressure,
			)
			return s.enterRecover(ctx)
		}
	} else {
		s.stuck = 0
		s.last = r
	}

	if Alarming(r) {
		s.logger.Warn("supervisor: alarm threshold crossed",
			"cycle", s.cycle,
			"T", r.Temperature,
			"P", r.Pressure,
		)
		if err := s.indicator.Warn(ctx); err != nil {
			return err
		}
	}

	sample := types.Sample{
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		Pressure:    r.Pressure,
		WallCycle:   s.cycle,
	}
	if err := s.publisher.Publish(sample); err != nil {
		s.logger.Warn("supervisor: publish failed", "cycle", s.cycle, "error", err)
	}

	return s.sleeper.Sleep(ctx, s.opts.Cadence)
}

// measure runs one forced conversion.
func (s *Supervisor) measure(ctx context.Context) (sensor.Reading, error) {
	if err := s.driver.TriggerForced(); err != nil {
		return sensor.Reading{}, fmt.Errorf("read error: %w", err)
	}
	if err := s.sleeper.Sleep(ctx, s.opts.ConversionWait); err != nil {
		return sensor.Reading{}, err
	}
	r, err := s.driver.Read()
	if err != nil {
		return sensor.Reading{}, fmt.Errorf("read error: %w", err)
	}
	return r, nil
}

// enterRecover plays the warning and hands the next tick to recovery. The
// triggering cycle is never published.
func (s *Supervisor) enterRecover(ctx context.Context) error {
	s.stuck = 0
	s.setState(StateRecover)
	return s.indicator.Warn(ctx)
}

func (s *Supervisor) setState(next State) {
	if next == s.state {
		return
	}
	s.logger.Info("supervisor: state change", "from", s.state.String(), "to", next.String())
	s.state = next
}
