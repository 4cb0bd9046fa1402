// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"log"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/motion_instrument/internal/imu"
)

// accelReader is the part of the MPU9250 driver the instrument uses.
type accelReader interface {
	GetAccelerationX() (int16, error)
	GetAccelerationY() (int16, error)
	GetAccelerationZ() (int16, error)
}

type imuSource struct {
	name string
	imu  accelReader
}

// NewIMUSource initializes an MPU9250 over SPI and returns a sample source
// reading its accelerometer. accelRange is 0=±2g, 1=±4g, 2=±8g, 3=±16g.
func NewIMUSource(spiDev, csPin string, accelRange byte) (imu.SampleSource, error) {
	const name = "imu"

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("%s: periph host init: %w", name, err)
	}

	cs := gpioreg.ByName(csPin)
	if cs == nil {
		return nil, fmt.Errorf("%s: CS pin %q not found", name, csPin)
	}

	tr, err := mpu9250.NewSpiTransport(spiDev, cs)
	if err != nil {
		return nil, fmt.Errorf("%s: SPI transport (%s): %w", name, spiDev, err)
	}

	dev, err := mpu9250.New(tr)
	if err != nil {
		return nil, fmt.Errorf("%s: device creation: %w", name, err)
	}

	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("%s: initialization: %w", name, err)
	}

	if err := dev.SetAccelRange(accelRange); err != nil {
		return nil, fmt.Errorf("%s: set accel range: %w", name, err)
	}
	log.Printf("%s: accelerometer range set to %d (±%dg)", name, accelRange, []int{2, 4, 8, 16}[accelRange&3])

	return &imuSource{name: name, imu: dev}, nil
}

// NextSample reads the three accelerometer axes.
func (s *imuSource) NextSample() (imu.Sample, error) {
	ax, err := s.imu.GetAccelerationX()
	if err != nil {
		return imu.Sample{}, fmt.Errorf("%s accel X: %w", s.name, err)
	}
	ay, err := s.imu.GetAccelerationY()
	if err != nil {
		return imu.Sample{}, fmt.Errorf("%s accel Y: %w", s.name, err)
	}
	az, err := s.imu.GetAccelerationZ()
	if err != nil {
		return imu.Sample{}, fmt.Errorf("%s accel Z: %w", s.name, err)
	}

	return imu.Sample{Source: s.name, Ax: ax, Ay: ay, Az: az}, nil
}
