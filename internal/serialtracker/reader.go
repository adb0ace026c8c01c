// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package serialtracker

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/body_tracker/internal/imu"
	"github.com/relabs-tech/body_tracker/internal/monitoring"
)

// Reader reads IMU samples from a line-oriented stream.
type Reader struct {
	rc     io.ReadCloser
	r      *bufio.Reader
	parser *nmea.SentenceParser
	now    func() time.Time

	// Skipped counts lines that were not valid IMU sentences.
	Skipped uint64
}

// Open opens the serial port of a tracker dongle.
func Open(port string, baud int) (*Reader, error) {
	opts := serial.OpenOptions{
		PortName:              port,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	rc, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("serialtracker: open %s: %w", port, err)
	}
	monitoring.Logf("serial: port opened on %s at %d baud", port, baud)
	return NewReader(rc), nil
}

// NewReader wraps an already open stream. Samples are stamped with the
// time their line was read.
func NewReader(rc io.ReadCloser) *Reader {
	return &Reader{
		rc:     rc,
		r:      bufio.NewReader(rc),
		parser: NewParser(),
		now:    time.Now,
	}
}

// Next blocks until the next valid IMU sentence and returns its sample.
// Noise, partial lines and other NMEA sentences are skipped. The error is
// only non-nil when the stream fails.
func (r *Reader) Next() (imu.Sample, error) {
	for {
		line, err := r.r.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return imu.Sample{}, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "$") {
			r.Skipped++
			continue
		}
		m, perr := ParseIMU(r.parser, line)
		if perr != nil {
			r.Skipped++
			if r.Skipped == 1 || r.Skipped%1000 == 0 {
				monitoring.Logf("serial: skipping %q: %v (%d skipped)", line, perr, r.Skipped)
			}
			continue
		}
		s := m.Sample(r.now())
		if verr := s.Validate(); verr != nil {
			r.Skipped++
			continue
		}
		return s, nil
	}
}

// Close closes the underlying stream.
func (r *Reader) Close() error {
	return r.rc.Close()
}
