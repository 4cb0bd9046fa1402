// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/motion_instrument/internal/imu"
)

// FrameFormat selects how samples are framed on a byte stream.
type FrameFormat int

const (
	// BinaryFrames are 6-byte little-endian x,y,z frames.
	BinaryFrames FrameFormat = iota
	// CSVFrames are "x,y" or "x,y,z" text lines. Two-value lines get z = 1g.
	CSVFrames
)

// ParseFrameFormat accepts "binary" or "csv".
func ParseFrameFormat(s string) (FrameFormat, error) {
	switch s {
	case "binary":
		return BinaryFrames, nil
	case "csv":
		return CSVFrames, nil
	}
	return BinaryFrames, fmt.Errorf("unknown frame format %q", s)
}

// FrameReader decodes samples from a byte stream.
type FrameReader struct {
	r          *bufio.Reader
	format     FrameFormat
	countsPerG int
	source     string
}

// NewFrameReader wraps r. countsPerG fills z for two-axis CSV lines.
func NewFrameReader(r io.Reader, format FrameFormat, countsPerG int) *FrameReader {
	return &FrameReader{
		r:          bufio.NewReader(r),
		format:     format,
		countsPerG: countsPerG,
		source:     "serial",
	}
}

// NextSample blocks until one full frame is read. io.EOF is returned as-is
// when the stream ends cleanly between frames.
func (f *FrameReader) NextSample() (imu.Sample, error) {
	if f.format == CSVFrames {
		return f.nextCSV()
	}

	buf := make([]byte, imu.SampleSize)
	if _, err := io.ReadFull(f.r, buf); err != nil {
		return imu.Sample{}, err
	}
	s, err := imu.DecodeSample(buf)
	if err != nil {
		return imu.Sample{}, err
	}
	s.Source = f.source
	return s, nil
}

func (f *FrameReader) nextCSV() (imu.Sample, error) {
	for {
		line, err := f.r.ReadString('\n')
		line = strings.TrimSpace(line)
		if line == "" {
			if err != nil {
				return imu.Sample{}, err
			}
			continue
		}

		s, perr := ParseCSVSample(line, f.countsPerG)
		if perr != nil {
			// noisy line or partial write; keep reading
			log.Printf("serial: skipping line %q: %v", line, perr)
			if err != nil {
				return imu.Sample{}, err
			}
			continue
		}
		s.Source = f.source
		return s, nil
	}
}

// ParseCSVSample parses "x,y" or "x,y,z" integer counts.
func ParseCSVSample(line string, countsPerG int) (imu.Sample, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 2 && len(fields) != 3 {
		return imu.Sample{}, fmt.Errorf("want 2 or 3 fields, got %d", len(fields))
	}

	var v [3]int16
	v[2] = int16(countsPerG)
	for i, field := range fields {
		n, err := strconv.ParseInt(strings.TrimSpace(field), 10, 16)
		if err != nil {
			return imu.Sample{}, fmt.Errorf("field %d: %w", i, err)
		}
		v[i] = int16(n)
	}
	return imu.Sample{Ax: v[0], Ay: v[1], Az: v[2]}, nil
}

type serialSource struct {
	*FrameReader
	port io.ReadWriteCloser
}

// OpenSerialSource opens a serial port delivering accelerometer frames.
func OpenSerialSource(portName string, baud int, format FrameFormat, countsPerG int) (imu.SampleSource, io.Closer, error) {
	opts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("serial: open %s: %w", portName, err)
	}
	log.Printf("serial: sample feed opened on %s at %d baud", portName, baud)

	src := &serialSource{FrameReader: NewFrameReader(port, format, countsPerG), port: port}
	return src, port, nil
}
