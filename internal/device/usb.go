package device

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/gousb"

	"github.com/WaffleThief123/ippframework/internal/ippcore"
)

const (
	usbClassPrinter      = 0x07
	usbSubclassPrinter   = 0x01
	usbProtocolUnidir    = 0x01
	usbProtocolBidir     = 0x02
	usbVendorSkip        = 0x05AC // Apple; never a printer interface (spec.md §4.A)
	usbReadTimeout       = 10 * time.Second
	usbGetDeviceIDReq    = 0x00 // class request: GET_DEVICE_ID
)

// usbTransport backs the usb:// scheme (spec.md §4.A): bulk reads with a
// 10s timeout, unbounded bulk writes.
type usbTransport struct {
	ctx    *gousb.Context
	dev    *gousb.Device
	iface  *gousb.Interface
	in     *gousb.InEndpoint
	out    *gousb.OutEndpoint
	done   func()
}

func (t *usbTransport) Write(p []byte) (int, error) {
	return t.out.Write(p)
}

func (t *usbTransport) Read(p []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), usbReadTimeout)
	defer cancel()
	return t.in.ReadContext(ctx, p)
}

func (t *usbTransport) Status() (Reasons, error) {
	data := make([]byte, 1)
	_, err := t.dev.Control(
		gousb.ControlIn|gousb.ControlClass|gousb.ControlInterface,
		0x01, // GET_PORT_STATUS (Centronics status byte, per IPP-over-USB convention)
		0, uint16(t.iface.Setting.Number), data,
	)
	if err != nil {
		return ReasonNone, err
	}
	return decodeCentronicsStatus(data[0]), nil
}

// decodeCentronicsStatus parses the Centronics port status byte, with
// vendor-extension bits for paper-out, jam, and cover-open (spec.md
// §4.A).
func decodeCentronicsStatus(b byte) Reasons {
	var r Reasons
	if b&0x20 == 0 {
		r |= ReasonMediaEmpty
	}
	if b&0x08 != 0 {
		r |= ReasonCoverOpen
	}
	if b&0x40 != 0 {
		r |= ReasonMediaJam
	}
	return r
}

func (t *usbTransport) ID() (string, error) {
	buf := make([]byte, 1024)
	n, err := t.dev.Control(
		gousb.ControlIn|gousb.ControlClass|gousb.ControlInterface,
		usbGetDeviceIDReq,
		0, uint16(t.iface.Setting.Number), buf,
	)
	if err != nil {
		return "", err
	}
	if n < 2 {
		return "", nil
	}
	// First two bytes are a big-endian length prefix per IEEE-1284.3.
	length := int(buf[0])<<8 | int(buf[1])
	if length > n {
		length = n
	}
	return string(buf[2:length]), nil
}

func (t *usbTransport) Close() error {
	t.iface.Close()
	if t.done != nil {
		t.done()
	}
	err := t.dev.Close()
	t.ctx.Close()
	return err
}

// selectPrinterInterface walks configurations/interfaces/alt-settings
// choosing class=printer, subclass=1, protocol 1 or 2, preferring the
// higher protocol when both are present (spec.md §4.A).
func selectPrinterInterface(desc *gousb.DeviceDesc) (cfgNum, ifNum, altNum int, found bool) {
	bestProto := -1
	for _, cfg := range desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if alt.Class != gousb.ClassPrinter && uint8(alt.Class) != usbClassPrinter {
					continue
				}
				if uint8(alt.SubClass) != usbSubclassPrinter {
					continue
				}
				proto := int(alt.Protocol)
				if proto != usbProtocolUnidir && proto != usbProtocolBidir {
					continue
				}
				if proto > bestProto {
					bestProto = proto
					cfgNum, ifNum, altNum = cfg.Number, intf.Number, alt.Number
					found = true
				}
			}
		}
	}
	return
}

func openUSBDevice(match func(desc *gousb.DeviceDesc) bool) (*usbTransport, error) {
	ctx := gousb.NewContext()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if desc.Vendor == usbVendorSkip {
			return false
		}
		return match(desc)
	})
	if err != nil {
		ctx.Close()
		return nil, err
	}
	if len(devs) == 0 {
		ctx.Close()
		return nil, fmt.Errorf("%w: no matching USB printer found", ippcore.ErrInvalidArgument)
	}
	// Close any extras; only the first candidate is used.
	for _, extra := range devs[1:] {
		extra.Close()
	}
	dev := devs[0]

	cfgNum, ifNum, altNum, found := selectPrinterInterface(dev.Desc)
	if !found {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("%w: no printer-class interface on USB device", ippcore.ErrInvalidArgument)
	}

	dev.SetAutoDetach(true)

	cfg, err := dev.Config(cfgNum)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, err
	}
	iface, err := cfg.Interface(ifNum, altNum)
	if err != nil {
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, err
	}

	var in *gousb.InEndpoint
	var out *gousb.OutEndpoint
	for _, ep := range iface.Setting.Endpoints {
		if ep.Direction == gousb.EndpointDirectionIn {
			in, _ = iface.InEndpoint(ep.Number)
		} else {
			out, _ = iface.OutEndpoint(ep.Number)
		}
	}
	if in == nil || out == nil {
		iface.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("%w: USB printer interface missing bulk endpoints", ippcore.ErrInvalidArgument)
	}

	return &usbTransport{
		ctx: ctx, dev: dev, iface: iface, in: in, out: out,
		done: cfg.Close,
	}, nil
}

func openUSB(u *url.URL, _ string, onError ErrorFunc) (*Handle, error) {
	// The URI round-trips manufacturer/model/serial from the device-ID
	// string assembled at discovery time; opening matches the first
	// printer-class interface found, since descriptor strings require a
	// transfer to read and may not be unique without the serial.
	t, err := openUSBDevice(func(desc *gousb.DeviceDesc) bool { return true })
	if err != nil {
		return nil, wrapOpenError("usb", u.String(), err)
	}
	return newHandle(u.String(), t, onError), nil
}

// buildUSBURI assembles the round-trippable usb:// URI from a parsed
// device ID, per spec.md §6.
func buildUSBURI(id *ippcore.DeviceID) string {
	mfg := id.Manufacturer
	if mfg == "" {
		mfg = "Unknown"
	}
	model := id.Model
	if model == "" {
		model = "Unknown"
	}
	uri := fmt.Sprintf("usb://%s/%s", url.PathEscape(mfg), url.PathEscape(model))
	if id.SerialNumber != "" {
		uri += "?serial=" + url.QueryEscape(id.SerialNumber)
	}
	return uri
}

func listUSB(ctx context.Context, cb func(DeviceInfo) (stop bool)) error {
	gctx := gousb.NewContext()
	defer gctx.Close()

	devs, err := gctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor != usbVendorSkip
	})
	if err != nil {
		return err
	}
	defer func() {
		for _, d := range devs {
			d.Close()
		}
	}()

	for _, dev := range devs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		cfgNum, ifNum, altNum, found := selectPrinterInterface(dev.Desc)
		if !found {
			continue
		}

		cfg, err := dev.Config(cfgNum)
		if err != nil {
			continue
		}
		iface, err := cfg.Interface(ifNum, altNum)
		if err != nil {
			cfg.Close()
			continue
		}

		idBuf := make([]byte, 1024)
		n, err := dev.Control(
			gousb.ControlIn|gousb.ControlClass|gousb.ControlInterface,
			usbGetDeviceIDReq, 0, uint16(iface.Setting.Number), idBuf,
		)
		iface.Close()
		cfg.Close()
		if err != nil || n < 2 {
			continue
		}
		length := int(idBuf[0])<<8 | int(idBuf[1])
		if length > n {
			length = n
		}
		parsed := ippcore.ParseDeviceID(string(idBuf[2:length]))

		info := DeviceInfo{
			URI:       buildUSBURI(parsed),
			DeviceID:  parsed.String(),
			MakeModel: parsed.Manufacturer + " " + parsed.Model,
		}
		if cb(info) {
			return nil
		}
	}
	return nil
}
