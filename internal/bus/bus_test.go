package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"

	"vejrstation-node/internal/clock"
)

type fakeBus struct {
	id     int
	speed  physic.Frequency
	closed bool
	txs    []uint16
}

func (f *fakeBus) String() string { return "fake" }

func (f *fakeBus) Tx(addr uint16, w, r []byte) error {
	if f.closed {
		return errors.New("closed")
	}
	f.txs = append(f.txs, addr)
	return nil
}

func (f *fakeBus) SetSpeed(s physic.Frequency) error {
	f.speed = s
	return nil
}

func (f *fakeBus) Close() error {
	f.closed = true
	return nil
}

type opener struct {
	opened []*fakeBus
	fail   bool
}

func (o *opener) open(name string) (i2c.BusCloser, error) {
	if o.fail {
		return nil, errors.New("no such bus")
	}
	b := &fakeBus{id: len(o.opened)}
	o.opened = append(o.opened, b)
	return b, nil
}

func TestNew(t *testing.T) {
	t.Run("opens at 100kHz", func(t *testing.T) {
		o := &opener{}
		b, err := New("", o.open, clock.Real{}, nil)
		if err != nil {
			t.Fatalf("New() err = %v", err)
		}
		if len(o.opened) != 1 {
			t.Fatalf("opened = %d; want 1", len(o.opened))
		}
		if o.opened[0].speed != 100*physic.KiloHertz {
			t.Errorf("speed = %v; want 100kHz", o.opened[0].speed)
		}
		if b.String() != "i2c(default)" {
			t.Errorf("String() = %q", b.String())
		}
	})

	t.Run("open failure", func(t *testing.T) {
		o := &opener{fail: true}
		if _, err := New("/dev/i2c-9", o.open, clock.Real{}, nil); err == nil {
			t.Fatal("New() err = nil; want non-nil")
		}
	})
}

func TestI2C_Reset(t *testing.T) {
	o := &opener{}
	var waits []time.Duration
	sleeper := clock.SleeperFunc(func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	})
	b, err := New("1", o.open, sleeper, nil)
	if err != nil {
		t.Fatalf("New() err = %v", err)
	}

	if err := b.Tx(0x76, []byte{0xD0}, make([]byte, 1)); err != nil {
		t.Fatalf("Tx() err = %v", err)
	}
	if err := b.Reset(context.Background()); err != nil {
		t.Fatalf("Reset() err = %v", err)
	}

	if len(o.opened) != 2 {
		t.Fatalf("opened = %d; want 2", len(o.opened))
	}
	if !o.opened[0].closed {
		t.Error("first bus not closed by Reset")
	}
	if len(waits) != 1 || waits[0] != ResetSettle {
		t.Errorf("waits = %v; want [%v]", waits, ResetSettle)
	}

	if err := b.Tx(0x77, []byte{0xD0}, make([]byte, 1)); err != nil {
		t.Fatalf("Tx() after reset err = %v", err)
	}
	if got := o.opened[1].txs; len(got) != 1 || got[0] != 0x77 {
		t.Errorf("txs on new bus = %v; want [0x77]", got)
	}
}

func TestI2C_Close(t *testing.T) {
	o := &opener{}
	b, err := New("", o.open, clock.Real{}, nil)
	if err != nil {
		t.Fatalf("New() err = %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close() err = %v", err)
	}
	if err := b.Tx(0x76, nil, nil); err == nil {
		t.Error("Tx() after Close err = nil; want non-nil")
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close() err = %v; want nil", err)
	}
}

func TestI2C_ResetCanceled(t *testing.T) {
	o := &opener{}
	b, err := New("1", o.open, clock.Real{}, nil)
	if err != nil {
		t.Fatalf("New() err = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := b.Reset(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Reset() err = %v; want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed >= ResetSettle {
		t.Errorf("elapsed = %v; want the settle cut short", elapsed)
	}
	if len(o.opened) != 1 || !o.opened[0].closed {
		t.Errorf("opened = %d, first closed = %v; want the bus closed and not reopened", len(o.opened), o.opened[0].closed)
	}
}
