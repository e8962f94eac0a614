// Package ads1115 provides a single-shot driver for the ADS1115 16-bit ADC,
// used here for single-ended readings such as a soil-moisture probe.
package ads1115

import (
	"errors"
	"math"
	"time"

	"tinygo.org/x/drivers"

	"envmon-go/x/mathx"
)

const Address = 0x48

const (
	regConversion = 0x00
	regConfig     = 0x01

	cfgOS        = 0x8000 // start single conversion / conversion done
	cfgMuxSingle = 0x4000 // AINx vs GND, channel in bits 13:12
	cfgPGA4096   = 0x0200 // ±4.096 V full scale
	cfgModeOne   = 0x0100 // single-shot
	cfgDR128     = 0x0080 // 128 SPS
	cfgCompOff   = 0x0003

	// FullScaleVolts is the positive full-scale input for the fixed PGA setting.
	FullScaleVolts = 4.096
)

var (
	ErrChannel = errors.New("ads1115: channel out of range")
	ErrTimeout = errors.New("ads1115: conversion timeout")
)

type Device struct {
	bus     drivers.I2C
	addr    uint16
	timeout time.Duration
}

// New creates the Device object; a zero addr selects Address.
func New(bus drivers.I2C, addr uint16) *Device {
	if addr == 0 {
		addr = Address
	}
	return &Device{bus: bus, addr: addr, timeout: 50 * time.Millisecond}
}

// ReadSingleEnded starts a conversion on channel 0..3, waits for it and
// returns the signed 16-bit code. Negative codes are clamped to 0.
func (d *Device) ReadSingleEnded(channel int) (int16, error) {
	if channel < 0 || channel > 3 {
		return 0, ErrChannel
	}
	cfg := uint16(cfgOS | cfgMuxSingle | cfgPGA4096 | cfgModeOne | cfgDR128 | cfgCompOff)
	cfg |= uint16(channel) << 12
	if err := d.bus.Tx(d.addr, []byte{regConfig, byte(cfg >> 8), byte(cfg)}, nil); err != nil {
		return 0, err
	}

	deadline := time.Now().Add(d.timeout)
	buf := make([]byte, 2)
	for {
		time.Sleep(2 * time.Millisecond)
		if err := d.bus.Tx(d.addr, []byte{regConfig}, buf); err != nil {
			return 0, err
		}
		if buf[0]&(cfgOS>>8) != 0 {
			break
		}
		if time.Now().After(deadline) {
			return 0, ErrTimeout
		}
	}

	if err := d.bus.Tx(d.addr, []byte{regConversion}, buf); err != nil {
		return 0, err
	}
	v := int16(uint16(buf[0])<<8 | uint16(buf[1]))
	return mathx.Clamp(v, 0, math.MaxInt16), nil
}

// ReadU16 returns a single-ended reading rescaled to 0..65535 over
// [0, FullScaleVolts].
func (d *Device) ReadU16(channel int) (uint16, error) {
	v, err := d.ReadSingleEnded(channel)
	if err != nil {
		return 0, err
	}
	return uint16(v) << 1, nil
}
