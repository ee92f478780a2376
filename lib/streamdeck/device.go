// Package streamdeck drives Elgato Stream Deck panels over USB HID and lays
// the source list out on their keys.
package streamdeck

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	xdraw "golang.org/x/image/draw"

	"rafaelmartins.com/p/usbhid"
)

const elgatoVendorID = 0x0fd9

var ErrNoDevice = errors.New("streamdeck: no device found")

type Model struct {
	Name      string
	Keys      int
	KeyRows   int
	KeyCols   int
	KeySize   int
	FlipKeys  bool
	Encoders  int
	LCDWidth  int
	LCDHeight int
}

var ModelXL = Model{
	Name:     "XL",
	Keys:     32,
	KeyRows:  4,
	KeyCols:  8,
	KeySize:  96,
	FlipKeys: true,
}

var ModelPlus = Model{
	Name:      "Plus",
	Keys:      8,
	KeyRows:   2,
	KeyCols:   4,
	KeySize:   120,
	Encoders:  4,
	LCDWidth:  800,
	LCDHeight: 100,
}

var productModels = map[uint16]*Model{
	0x006c: &ModelXL,
	0x008f: &ModelXL,
	0x0084: &ModelPlus,
}

type Device struct {
	dev   *usbhid.Device
	model *Model
}

// Open opens the first supported panel.
func Open() (*Device, error) {
	return OpenModel(nil)
}

// OpenModel opens the first panel of model m, or of any supported model
// when m is nil.
func OpenModel(m *Model) (*Device, error) {
	devices, err := usbhid.Enumerate(func(dev *usbhid.Device) bool {
		if dev.VendorId() != elgatoVendorID {
			return false
		}
		found := productModels[dev.ProductId()]
		return found != nil && (m == nil || found == m)
	})
	if err != nil {
		return nil, fmt.Errorf("streamdeck: enumerate: %w", err)
	}
	if len(devices) == 0 {
		return nil, ErrNoDevice
	}

	dev := devices[0]
	if err := dev.Open(true); err != nil {
		return nil, fmt.Errorf("streamdeck: open: %w", err)
	}

	return &Device{dev: dev, model: productModels[dev.ProductId()]}, nil
}

func (d *Device) Model() *Model        { return d.model }
func (d *Device) Close() error         { return d.dev.Close() }
func (d *Device) SerialNumber() string { return d.dev.SerialNumber() }
func (d *Device) Product() string      { return d.dev.Product() }

func (d *Device) SetBrightness(perc byte) error {
	if perc > 100 {
		perc = 100
	}
	pl := make([]byte, d.dev.GetFeatureReportLength())
	pl[0] = 0x08
	pl[1] = perc
	return d.dev.SetFeatureReport(3, pl)
}

func (d *Device) SetKeyImage(key int, img image.Image) error {
	if key < 0 || key >= d.model.Keys {
		return fmt.Errorf("streamdeck: invalid key %d", key)
	}

	sz := d.model.KeySize
	scaled := image.NewRGBA(image.Rect(0, 0, sz, sz))
	xdraw.BiLinear.Scale(scaled, scaled.Bounds(), img, img.Bounds(), xdraw.Over, nil)

	var src image.Image = scaled
	if d.model.FlipKeys {
		flipped := image.NewRGBA(scaled.Bounds())
		for y := 0; y < sz; y++ {
			for x := 0; x < sz; x++ {
				flipped.Set(sz-1-x, sz-1-y, scaled.At(x, y))
			}
		}
		src = flipped
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: 100}); err != nil {
		return err
	}

	return d.sendKeyImage(byte(key), buf.Bytes())
}

// writeChunked splits data across output reports, each starting with the
// header built for its page.
func (d *Device) writeChunked(data []byte, hdrLen int, header func(page uint16, last bool, n int) []byte) error {
	reportLen := int(d.dev.GetOutputReportLength())
	payloadLen := reportLen - hdrLen

	for page, start := uint16(0), 0; start < len(data); page++ {
		end := min(start+payloadLen, len(data))
		chunk := data[start:end]

		report := make([]byte, reportLen)
		copy(report, header(page, end == len(data), len(chunk)))
		copy(report[hdrLen:], chunk)
		if err := d.dev.SetOutputReport(2, report); err != nil {
			return fmt.Errorf("streamdeck: write page %d: %w", page, err)
		}
		start = end
	}
	return nil
}

func (d *Device) sendKeyImage(key byte, data []byte) error {
	return d.writeChunked(data, 8, func(page uint16, last bool, n int) []byte {
		return []byte{0x02, 0x07, key, boolByte(last), byte(n), byte(n >> 8), byte(page), byte(page >> 8)}
	})
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// SetLCDImage draws img into the touch strip of a Plus.
func (d *Device) SetLCDImage(x, y, w, h int, img image.Image) error {
	if d.model.LCDWidth == 0 {
		return fmt.Errorf("streamdeck: %s has no LCD", d.model.Name)
	}

	scaled := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.BiLinear.Scale(scaled, scaled.Bounds(), img, img.Bounds(), xdraw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: 100}); err != nil {
		return err
	}

	return d.sendLCDImage(uint16(x), uint16(y), uint16(w), uint16(h), buf.Bytes())
}

func (d *Device) sendLCDImage(x, y, w, h uint16, data []byte) error {
	return d.writeChunked(data, 16, func(page uint16, last bool, n int) []byte {
		hdr := make([]byte, 16)
		hdr[0] = 0x02
		hdr[1] = 0x0C
		binary.LittleEndian.PutUint16(hdr[2:], x)
		binary.LittleEndian.PutUint16(hdr[4:], y)
		binary.LittleEndian.PutUint16(hdr[6:], w)
		binary.LittleEndian.PutUint16(hdr[8:], h)
		hdr[10] = boolByte(last)
		binary.LittleEndian.PutUint16(hdr[11:], page)
		binary.LittleEndian.PutUint16(hdr[13:], uint16(n))
		return hdr
	})
}

type KeyEvent struct {
	Key     int
	Pressed bool
	Time    time.Time
}

type EncoderEvent struct {
	Encoder int
	Pressed bool
	Delta   int
	Time    time.Time
}

type InputEvent struct {
	Key     *KeyEvent
	Encoder *EncoderEvent
}

// ReadInput sends key and encoder changes to ch until the device fails.
// Touch strip reports are ignored.
func (d *Device) ReadInput(ch chan<- InputEvent) error {
	keyStates := make([]byte, d.model.Keys)
	encoderStates := make([]byte, d.model.Encoders)
	for {
		_, buf, err := d.dev.GetInputReport()
		if err != nil {
			return err
		}
		if len(buf) < 4 {
			continue
		}

		t := time.Now()
		switch buf[0] {
		case 0x00:
			keyStart := 3
			for i := 0; i < d.model.Keys; i++ {
				if keyStart+i >= len(buf) {
					break
				}
				st := buf[keyStart+i]
				if st != keyStates[i] {
					ch <- InputEvent{Key: &KeyEvent{
						Key:     i,
						Pressed: st > 0,
						Time:    t,
					}}
					keyStates[i] = st
				}
			}
		case 0x03:
			if d.model.Encoders == 0 || len(buf) < 8 {
				continue
			}
			subType := buf[3]
			switch subType {
			case 0x00:
				for i := 0; i < d.model.Encoders; i++ {
					st := buf[4+i]
					if st != encoderStates[i] {
						ch <- InputEvent{Encoder: &EncoderEvent{
							Encoder: i,
							Pressed: st > 0,
							Time:    t,
						}}
						encoderStates[i] = st
					}
				}
			case 0x01:
				for i := 0; i < d.model.Encoders; i++ {
					delta := int(int8(buf[4+i]))
					if delta != 0 {
						ch <- InputEvent{Encoder: &EncoderEvent{
							Encoder: i,
							Delta:   delta,
							Time:    t,
						}}
					}
				}
			}
		}
	}
}
