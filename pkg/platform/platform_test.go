package platform

import (
	"slices"
	"testing"

	"github.com/matzehuels/stackbuild/pkg/errors"
)

func TestFamily(t *testing.T) {
	tests := []struct {
		platform Platform
		want     Family
		unix     bool
	}{
		{Linux64, FamilyLinux, true},
		{LinuxAarch64, FamilyLinux, true},
		{Osx64, FamilyOsx, true},
		{OsxArm64, FamilyOsx, true},
		{Win64, FamilyWin, false},
		{EmscriptenWasm32, FamilyEmscripten, true},
		{WasiWasm32, FamilyWasi, false},
		{NoArch, FamilyNoArch, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.platform), func(t *testing.T) {
			if got := tt.platform.Family(); got != tt.want {
				t.Errorf("Family() = %q, want %q", got, tt.want)
			}
			if got := tt.platform.IsUnix(); got != tt.unix {
				t.Errorf("IsUnix() = %v, want %v", got, tt.unix)
			}
		})
	}
}

func TestParse(t *testing.T) {
	if p, err := Parse("osx-arm64"); err != nil || p != OsxArm64 {
		t.Errorf("Parse(osx-arm64) = %q, %v", p, err)
	}
	if _, err := Parse("beos-68k"); !errors.Is(err, errors.ErrCodeConfig) {
		t.Errorf("Parse(beos-68k) error = %v, want CONFIG_ERROR", err)
	}
}

func TestFromGo(t *testing.T) {
	tests := []struct {
		goos, goarch string
		want         Platform
	}{
		{"linux", "amd64", Linux64},
		{"linux", "arm64", LinuxAarch64},
		{"darwin", "arm64", OsxArm64},
		{"darwin", "amd64", Osx64},
		{"windows", "amd64", Win64},
		{"plan9", "386", NoArch},
	}
	for _, tt := range tests {
		if got := fromGo(tt.goos, tt.goarch); got != tt.want {
			t.Errorf("fromGo(%s, %s) = %q, want %q", tt.goos, tt.goarch, got, tt.want)
		}
	}
}

func TestSelectorMatches(t *testing.T) {
	tests := []struct {
		selector Selector
		platform Platform
		want     bool
	}{
		{"linux-64", Linux64, true},
		{"linux-64", LinuxAarch64, false},
		{SelectLinux, LinuxAarch64, true},
		{SelectLinux, Osx64, false},
		{SelectOsx, OsxArm64, true},
		{SelectWin, Win64, true},
		{SelectWin, Linux64, false},
		{SelectUnix, Linux64, true},
		{SelectUnix, Osx64, true},
		{SelectUnix, EmscriptenWasm32, true},
		{SelectUnix, Win64, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.selector)+"/"+string(tt.platform), func(t *testing.T) {
			if got := tt.selector.Matches(tt.platform); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseSelector(t *testing.T) {
	for _, s := range []string{"linux", "osx", "win", "unix", "linux-64", "win-arm64"} {
		if _, err := ParseSelector(s); err != nil {
			t.Errorf("ParseSelector(%q) error = %v", s, err)
		}
	}

	_, err := ParseSelector("windows")
	if !errors.Is(err, errors.ErrCodeConfig) {
		t.Fatalf("ParseSelector(windows) error = %v, want CONFIG_ERROR", err)
	}
	if d := errors.GetDetail(err); d.Selector != "windows" {
		t.Errorf("Detail.Selector = %q, want windows", d.Selector)
	}
}

func TestCompare(t *testing.T) {
	sels := []Selector{SelectUnix, SelectLinux, "linux-64", SelectOsx, "osx-64"}
	slices.SortFunc(sels, Compare)

	want := []Selector{"linux-64", "osx-64", SelectLinux, SelectOsx, SelectUnix}
	if !slices.Equal(sels, want) {
		t.Errorf("sorted = %v, want %v", sels, want)
	}
}
