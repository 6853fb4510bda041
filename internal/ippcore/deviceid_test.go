package ippcore

import "testing"

func TestParseDeviceIDAliases(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want DeviceID
	}{
		{
			name: "canonical keys",
			in:   "MANUFACTURER:Example;MODEL:Label 400;COMMAND SET:PCL,PCLXL;SERIALNUMBER:ABC123;",
			want: DeviceID{Manufacturer: "Example", Model: "Label 400", CommandSet: []string{"PCL", "PCLXL"}, SerialNumber: "ABC123"},
		},
		{
			name: "aliases",
			in:   "MFG:Example;MDL:Label 400;CMD:PCL,PCLXL;SERN:ABC123;",
			want: DeviceID{Manufacturer: "Example", Model: "Label 400", CommandSet: []string{"PCL", "PCLXL"}, SerialNumber: "ABC123"},
		},
		{
			name: "short serial alias",
			in:   "MFR:X;MDL:Y;SN:1;",
			want: DeviceID{Manufacturer: "X", Model: "Y", SerialNumber: "1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDeviceID(tt.in)
			if got.Manufacturer != tt.want.Manufacturer || got.Model != tt.want.Model || got.SerialNumber != tt.want.SerialNumber {
				t.Fatalf("parsed %+v, want %+v", got, tt.want)
			}
			if len(got.CommandSet) != len(tt.want.CommandSet) {
				t.Fatalf("command set = %v, want %v", got.CommandSet, tt.want.CommandSet)
			}
			for i := range got.CommandSet {
				if got.CommandSet[i] != tt.want.CommandSet[i] {
					t.Fatalf("command set = %v, want %v", got.CommandSet, tt.want.CommandSet)
				}
			}
		})
	}
}

func TestParseDeviceIDRoundTrip(t *testing.T) {
	in := "MFG:Example;MDL:Label 400;CMD:PCL,PCLXL;SERN:ABC123;"
	first := ParseDeviceID(in)
	second := ParseDeviceID(first.String())

	if first.Manufacturer != second.Manufacturer ||
		first.Model != second.Model ||
		first.SerialNumber != second.SerialNumber ||
		len(first.CommandSet) != len(second.CommandSet) {
		t.Fatalf("round-trip mismatch: %+v vs %+v", first, second)
	}
}

func TestParseDeviceIDNewlineNormalization(t *testing.T) {
	got := ParseDeviceID("MFG:Example\nMDL:Y;")
	if got.Manufacturer != "Example" || got.Model != "Y" {
		t.Fatalf("got %+v", got)
	}
}

func TestCommandSetFromPDL(t *testing.T) {
	got := CommandSetFromPDL("application/postscript,image/jpeg")
	want := []string{"PS", "JPEG"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}
