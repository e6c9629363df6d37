// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"log"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/tremor_recorder/internal/config"
	"github.com/relabs-tech/tremor_recorder/internal/imu"
)

// MPU6050 registers.
const (
	regSmplrtDiv   = 0x19
	regConfig      = 0x1A // DLPF_CFG in bits 2:0
	regGyroConfig  = 0x1B // GYRO_FS_SEL in bits 4:3
	regAccelConfig = 0x1C // ACCEL_FS_SEL in bits 4:3
	regAccelXOutH  = 0x3B // start of the 14-byte accel/temp/gyro burst
	regPwrMgmt1    = 0x6B
	regWhoAmI      = 0x75

	mpu6050DevID = 0x68
	gravity      = 9.80665
)

// accelLSBPerG and gyroLSBPerDPS are full-scale sensitivities indexed by
// the range selector (datasheet table).
var (
	accelLSBPerG  = [4]float64{16384, 8192, 4096, 2048}
	gyroLSBPerDPS = [4]float64{131, 65.5, 32.8, 16.4}
)

// MPU6050 reads a 6-axis MPU-6050 over I2C and converts raw counts to
// physical units with the injected calibration offsets applied.
type MPU6050 struct {
	busName string
	addr    uint16

	accelRange byte
	gyroRange  byte
	dlpf       byte
	cal        imu.Calibration

	bus i2c.BusCloser
	dev *i2c.Dev
}

// NewMPU6050 opens and configures the sensor per the loaded config.
func NewMPU6050() (*MPU6050, error) {
	cfg := config.Get()
	m := &MPU6050{
		busName:    cfg.I2CBus,
		addr:       cfg.IMUI2CAddr,
		accelRange: cfg.IMUAccelRange,
		gyroRange:  cfg.IMUGyroRange,
		dlpf:       cfg.IMUDLPFConfig,
		cal: imu.Calibration{
			AccelX: cfg.CalAccelX,
			AccelY: cfg.CalAccelY,
			AccelZ: cfg.CalAccelZ,
			GyroX:  cfg.CalGyroX,
			GyroY:  cfg.CalGyroY,
			GyroZ:  cfg.CalGyroZ,
		},
	}
	if err := m.open(); err != nil {
		return nil, err
	}
	return m, nil
}

// open brings up the I2C transport and applies the fixed configuration.
func (m *MPU6050) open() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("imu: periph host init: %w", err)
	}

	bus, err := i2creg.Open(m.busName)
	if err != nil {
		return fmt.Errorf("imu: open I2C bus %q: %w", m.busName, err)
	}
	m.bus = bus
	m.dev = &i2c.Dev{Addr: m.addr, Bus: bus}

	if err := m.configure(); err != nil {
		m.Close()
		return err
	}
	return nil
}

// configure wakes the device and applies range and filter settings.
func (m *MPU6050) configure() error {
	id, err := m.readReg(regWhoAmI)
	if err != nil {
		return fmt.Errorf("imu: read WHO_AM_I: %w", err)
	}
	if id != mpu6050DevID {
		return fmt.Errorf("imu: unexpected WHO_AM_I 0x%02X (want 0x%02X)", id, mpu6050DevID)
	}

	// Wake from sleep, clock from gyro X PLL
	if err := m.writeReg(regPwrMgmt1, 0x01); err != nil {
		return fmt.Errorf("imu: wake device: %w", err)
	}
	if err := m.writeReg(regAccelConfig, m.accelRange<<3); err != nil {
		return fmt.Errorf("imu: set accel range: %w", err)
	}
	log.Printf("imu: accelerometer range set to %d (±%dg)", m.accelRange, []int{2, 4, 8, 16}[m.accelRange])

	if err := m.writeReg(regGyroConfig, m.gyroRange<<3); err != nil {
		return fmt.Errorf("imu: set gyro range: %w", err)
	}
	log.Printf("imu: gyroscope range set to %d (±%d°/s)", m.gyroRange, []int{250, 500, 1000, 2000}[m.gyroRange])

	if err := m.writeReg(regConfig, m.dlpf); err != nil {
		return fmt.Errorf("imu: set DLPF config: %w", err)
	}
	// Internal rate is 1kHz with the DLPF enabled; no divider, the
	// engine's sampling interval paces the reads.
	if err := m.writeReg(regSmplrtDiv, 0x00); err != nil {
		return fmt.Errorf("imu: set sample rate divider: %w", err)
	}
	log.Printf("imu: DLPF config set to %d", m.dlpf)

	return nil
}

// Read performs a single 14-byte burst read and scales to physical units.
func (m *MPU6050) Read() (imu.Sample, error) {
	if m.dev == nil {
		return imu.Sample{}, fmt.Errorf("imu: transport not open")
	}

	var buf [14]byte
	if err := m.dev.Tx([]byte{regAccelXOutH}, buf[:]); err != nil {
		return imu.Sample{}, fmt.Errorf("imu: burst read: %w", err)
	}

	aScale := accelLSBPerG[m.accelRange]
	gScale := gyroLSBPerDPS[m.gyroRange]

	raw := func(hi, lo byte) float64 {
		return float64(int16(uint16(hi)<<8 | uint16(lo)))
	}

	s := imu.Sample{
		Ax: raw(buf[0], buf[1]) / aScale * gravity,
		Ay: raw(buf[2], buf[3]) / aScale * gravity,
		Az: raw(buf[4], buf[5]) / aScale * gravity,
		// buf[6:8] is die temperature, unused
		Gx: raw(buf[8], buf[9]) / gScale,
		Gy: raw(buf[10], buf[11]) / gScale,
		Gz: raw(buf[12], buf[13]) / gScale,
	}
	return m.cal.Apply(s), nil
}

// Probe checks device presence with a WHO_AM_I transaction only.
func (m *MPU6050) Probe() bool {
	if m.dev == nil {
		return false
	}
	id, err := m.readReg(regWhoAmI)
	return err == nil && id == mpu6050DevID
}

// Reinit closes and reopens the transport and reapplies configuration.
// Safe to call repeatedly, including on an already-closed source.
func (m *MPU6050) Reinit() error {
	if err := m.Close(); err != nil {
		log.Printf("imu: close before reinit: %v", err)
	}
	return m.open()
}

// Close releases the I2C bus. Closing twice is a no-op.
func (m *MPU6050) Close() error {
	if m.bus == nil {
		return nil
	}
	err := m.bus.Close()
	m.bus = nil
	m.dev = nil
	if err != nil {
		return fmt.Errorf("imu: close I2C bus: %w", err)
	}
	return nil
}

func (m *MPU6050) readReg(reg byte) (byte, error) {
	var b [1]byte
	if err := m.dev.Tx([]byte{reg}, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (m *MPU6050) writeReg(reg, val byte) error {
	return m.dev.Tx([]byte{reg, val}, nil)
}
