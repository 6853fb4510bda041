package ippcore

import "strings"

// DeviceID is a parsed IEEE-1284 device-ID string: semicolon-delimited
// key:value pairs such as "MFG:Example;MDL:Label 400;CMD:PCL,PCLXL;".
type DeviceID struct {
	Manufacturer string
	Model        string
	CommandSet   []string
	SerialNumber string
	raw          map[string]string
}

// canonical key -> accepted aliases, case-insensitive (spec.md §6).
var deviceIDAliases = map[string][]string{
	"MANUFACTURER": {"MANUFACTURER", "MFG", "MFR"},
	"MODEL":        {"MODEL", "MDL"},
	"COMMAND SET":  {"COMMAND SET", "CMD"},
	"SERIALNUMBER": {"SERIALNUMBER", "SERN", "SN", "SER"},
}

func canonicalKey(key string) string {
	key = strings.ToUpper(strings.TrimSpace(key))
	for canon, aliases := range deviceIDAliases {
		for _, alias := range aliases {
			if key == alias {
				return canon
			}
		}
	}
	return key
}

// ParseDeviceID parses an IEEE-1284 device-ID string. Newlines within a
// value are normalized to ';' before splitting on pairs, matching spec.md
// §6.
func ParseDeviceID(s string) *DeviceID {
	s = strings.ReplaceAll(s, "\n", ";")
	d := &DeviceID{raw: make(map[string]string)}

	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		idx := strings.Index(pair, ":")
		if idx < 0 {
			continue
		}
		key := canonicalKey(pair[:idx])
		value := strings.TrimSpace(pair[idx+1:])
		d.raw[key] = value

		switch key {
		case "MANUFACTURER":
			d.Manufacturer = value
		case "MODEL":
			d.Model = value
		case "COMMAND SET":
			d.CommandSet = splitCommaList(value)
		case "SERIALNUMBER":
			d.SerialNumber = value
		}
	}
	return d
}

func splitCommaList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// String serializes back to canonical "MFG:...;MDL:...;CMD:...;" form,
// so parse -> serialize -> parse round-trips (spec.md §8 property 6).
func (d *DeviceID) String() string {
	var b strings.Builder
	if d.Manufacturer != "" {
		b.WriteString("MFG:")
		b.WriteString(d.Manufacturer)
		b.WriteString(";")
	}
	if d.Model != "" {
		b.WriteString("MDL:")
		b.WriteString(d.Model)
		b.WriteString(";")
	}
	if len(d.CommandSet) > 0 {
		b.WriteString("CMD:")
		b.WriteString(strings.Join(d.CommandSet, ","))
		b.WriteString(";")
	}
	if d.SerialNumber != "" {
		b.WriteString("SERN:")
		b.WriteString(d.SerialNumber)
		b.WriteString(";")
	}
	return b.String()
}

// mimeToCommandSet maps a PDL MIME type (as reported by dns-sd TXT "pdl")
// to its IEEE-1284 command-set keyword, used to synthesize a device ID
// when the TXT record lacks a CMD entry (spec.md §4.A).
var mimeToCommandSet = map[string]string{
	"application/postscript": "PS",
	"application/vnd.hp-pcl": "PCL",
	"application/vnd.hp-pclxl": "PCLXL",
	"application/oxps":       "XPS",
	"image/jpeg":             "JPEG",
	"image/tiff":             "TIFF",
	"application/pclm":       "CPDL",
	"application/vnd.ms-xpsdocument": "LIPS",
}

// CommandSetFromPDL derives a command-set list from a comma-separated pdl
// TXT value when CMD is absent.
func CommandSetFromPDL(pdl string) []string {
	var out []string
	for _, mime := range strings.Split(pdl, ",") {
		mime = strings.TrimSpace(strings.ToLower(mime))
		if cmd, ok := mimeToCommandSet[mime]; ok {
			out = append(out, cmd)
		}
	}
	return out
}
