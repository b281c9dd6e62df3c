package sensor

import (
	"context"
	"errors"
	"math"
	"testing"

	"gobot.io/x/gobot/v2/drivers/i2c"
)

type fakeAdaptor struct {
	i2c.Connector
	connects  int
	finalizes int
}

func (a *fakeAdaptor) Connect() error {
	a.connects++
	return nil
}

func (a *fakeAdaptor) Finalize() error {
	a.finalizes++
	return nil
}

type fakeDevice struct {
	addr    uint16
	profile Profile
	present bool
	halted  bool
	t, p, h float32
	err     error
}

func (d *fakeDevice) Start() error {
	if !d.present {
		return errors.New("no ack")
	}
	return nil
}

func (d *fakeDevice) Halt() error {
	d.halted = true
	return nil
}

func (d *fakeDevice) Temperature() (float32, error) { return d.t, d.err }
func (d *fakeDevice) Pressure() (float32, error)    { return d.p, d.err }
func (d *fakeDevice) Humidity() (float32, error)    { return d.h, d.err }

func TestGobotBME280(t *testing.T) {
	adaptor := &fakeAdaptor{}
	var bound []*fakeDevice
	bind := func(_ i2c.Connector, bus int, addr uint16, p Profile) GobotDevice {
		if bus != 1 {
			t.Errorf("bus = %d; want 1", bus)
		}
		d := &fakeDevice{addr: addr, profile: p, present: addr == SecondaryAddr, t: 21.5, p: 101325, h: 40}
		bound = append(bound, d)
		return d
	}

	g, err := NewGobot(adaptor, bind, 1, nil)
	if err != nil {
		t.Fatalf("NewGobot() err = %v", err)
	}
	if adaptor.connects != 1 {
		t.Fatalf("connects = %d; want 1", adaptor.connects)
	}

	if _, err := g.Read(); !errors.Is(err, errNotBound) {
		t.Errorf("Read() before probe err = %v; want errNotBound", err)
	}

	if g.Probe(PrimaryAddr) {
		t.Fatal("Probe(0x76) = true; want false")
	}
	if !g.Probe(SecondaryAddr) {
		t.Fatal("Probe(0x77) = false; want true")
	}
	if err := g.Configure(WeatherProfile); err != nil {
		t.Fatalf("Configure() err = %v", err)
	}

	if _, err := g.Read(); err == nil {
		t.Error("Read() without trigger err = nil; want non-nil")
	}
	if err := g.TriggerForced(); err != nil {
		t.Fatalf("TriggerForced() err = %v", err)
	}
	r, err := g.Read()
	if err != nil {
		t.Fatalf("Read() err = %v", err)
	}
	if r.Temperature != 21.5 || r.Humidity != 40 || math.Abs(r.Pressure-1013.25) > 1e-9 {
		t.Errorf("Read() = %+v; want {21.5 40 1013.25}", r)
	}

	if err := g.Reset(context.Background()); err != nil {
		t.Fatalf("Reset() err = %v", err)
	}
	if !bound[2].halted {
		t.Error("device not halted by Reset")
	}
	if adaptor.finalizes != 1 || adaptor.connects != 2 {
		t.Errorf("finalizes=%d connects=%d; want 1 and 2", adaptor.finalizes, adaptor.connects)
	}
	if err := g.TriggerForced(); !errors.Is(err, errNotBound) {
		t.Errorf("TriggerForced() after reset err = %v; want errNotBound", err)
	}
}

func TestGobotBME280_ReadError(t *testing.T) {
	bind := func(_ i2c.Connector, _ int, addr uint16, _ Profile) GobotDevice {
		return &fakeDevice{addr: addr, present: true, err: errors.New("bus error")}
	}
	g, err := NewGobot(&fakeAdaptor{}, bind, 1, nil)
	if err != nil {
		t.Fatalf("NewGobot() err = %v", err)
	}
	if !g.Probe(PrimaryAddr) {
		t.Fatal("Probe() = false; want true")
	}
	if err := g.TriggerForced(); err == nil {
		t.Fatal("TriggerForced() err = nil; want non-nil")
	}
	if _, err := g.Read(); err == nil {
		t.Error("Read() after failed trigger err = nil; want non-nil")
	}
}

func TestGobotBME280_ConfigureRebindsWithProfile(t *testing.T) {
	var bound []*fakeDevice
	bind := func(_ i2c.Connector, _ int, addr uint16, p Profile) GobotDevice {
		d := &fakeDevice{addr: addr, profile: p, present: true}
		bound = append(bound, d)
		return d
	}
	g, err := NewGobot(&fakeAdaptor{}, bind, 1, nil)
	if err != nil {
		t.Fatalf("NewGobot() err = %v", err)
	}
	if !g.Probe(PrimaryAddr) {
		t.Fatal("Probe() = false; want true")
	}

	p := WeatherProfile
	p.PressureOversample = 4
	p.Filter = 2
	if err := g.Configure(p); err != nil {
		t.Fatalf("Configure() err = %v", err)
	}

	if len(bound) != 2 {
		t.Fatalf("binds = %d; want 2 (probe, configure)", len(bound))
	}
	if bound[0].profile != WeatherProfile {
		t.Errorf("probe profile = %+v; want WeatherProfile", bound[0].profile)
	}
	if !bound[0].halted {
		t.Error("probe-time device not halted before rebinding")
	}
	if bound[1].addr != PrimaryAddr || bound[1].profile != p {
		t.Errorf("configure bound addr %#x profile %+v; want 0x76 %+v", bound[1].addr, bound[1].profile, p)
	}

	// A later probe keeps the configured profile.
	if !g.Probe(PrimaryAddr) {
		t.Fatal("Probe() = false; want true")
	}
	if bound[2].profile != p {
		t.Errorf("re-probe profile = %+v; want %+v", bound[2].profile, p)
	}
}

func TestGobotBME280_ConfigureUnbound(t *testing.T) {
	bind := func(i2c.Connector, int, uint16, Profile) GobotDevice {
		t.Fatal("bind called without a probed device")
		return nil
	}
	g, err := NewGobot(&fakeAdaptor{}, bind, 1, nil)
	if err != nil {
		t.Fatalf("NewGobot() err = %v", err)
	}
	if err := g.Configure(WeatherProfile); !errors.Is(err, errNotBound) {
		t.Errorf("Configure() err = %v; want errNotBound", err)
	}
}

func TestRegisterCodes(t *testing.T) {
	osrs := map[int]uint8{0: 0, 1: 1, 2: 2, 3: 3, 4: 3, 8: 4, 16: 5, 32: 5}
	for n, want := range osrs {
		if got := oversamplingCode(n); got != want {
			t.Errorf("oversamplingCode(%d) = %d; want %d", n, got, want)
		}
	}
	filters := map[int]uint8{0: 0, 1: 0, 2: 1, 4: 2, 8: 3, 16: 4}
	for n, want := range filters {
		if got := filterCode(n); got != want {
			t.Errorf("filterCode(%d) = %d; want %d", n, got, want)
		}
	}
	// gobot's option types share the datasheet encoding.
	if got := i2c.BMP280IIRFilter(filterCode(16)); got != i2c.BMP280ConfFilter16 {
		t.Errorf("filter 16 = %d; want BMP280ConfFilter16", got)
	}
	if got := i2c.BMP280PressureOversampling(oversamplingCode(16)); got != i2c.BMP280CtrlPressOversampling16 {
		t.Errorf("pressure x16 = %d; want BMP280CtrlPressOversampling16", got)
	}
	if got := i2c.BME280HumidityOversampling(oversamplingCode(1)); got != i2c.BME280CtrlHumidityOversampling1 {
		t.Errorf("humidity x1 = %d; want BME280CtrlHumidityOversampling1", got)
	}
}
