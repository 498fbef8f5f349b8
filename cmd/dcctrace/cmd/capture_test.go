package cmd

import "testing"

func TestParseDebugBase(t *testing.T) {
	cases := []struct {
		in      string
		want    uint32
		wantErr bool
	}{
		{in: "0x81000000", want: 0x81000000},
		{in: "0X200", want: 0x200},
		{in: "4096", want: 4096},
		{in: "0", want: 0},
		{in: "0xZZ", wantErr: true},
		{in: "", wantErr: true},
		{in: "-5", wantErr: true},
		{in: "0x1FFFFFFFF", wantErr: true}, // beyond 32 bits
	}

	for _, tc := range cases {
		got, err := parseDebugBase(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseDebugBase(%q) = %#x, want error", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseDebugBase(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseDebugBase(%q) = %#x, want %#x", tc.in, got, tc.want)
		}
	}
}
