// Package platform models the target platforms a backend builds for and the
// selectors that scope configuration overrides to them.
//
// A [Platform] is a conda-style "<os>-<arch>" string such as "linux-64" or
// "osx-arm64". Every platform belongs to exactly one [Family]. A [Selector]
// names either one exact platform, a family ("linux", "osx", "win") or the
// "unix" group, and reports whether it matches a given platform.
package platform

import (
	"runtime"
	"slices"
	"strings"

	"github.com/matzehuels/stackbuild/pkg/errors"
)

// Platform is a target platform string.
type Platform string

// Known platforms.
const (
	Linux64          Platform = "linux-64"
	LinuxAarch64     Platform = "linux-aarch64"
	LinuxPpc64le     Platform = "linux-ppc64le"
	Osx64            Platform = "osx-64"
	OsxArm64         Platform = "osx-arm64"
	Win64            Platform = "win-64"
	WinArm64         Platform = "win-arm64"
	EmscriptenWasm32 Platform = "emscripten-wasm32"
	WasiWasm32       Platform = "wasi-wasm32"
	NoArch           Platform = "noarch"
)

// All lists every known platform in a stable order.
var All = []Platform{
	Linux64, LinuxAarch64, LinuxPpc64le,
	Osx64, OsxArm64,
	Win64, WinArm64,
	EmscriptenWasm32, WasiWasm32,
	NoArch,
}

// Family groups platforms sharing an operating system.
type Family string

const (
	FamilyLinux      Family = "linux"
	FamilyOsx        Family = "osx"
	FamilyWin        Family = "win"
	FamilyEmscripten Family = "emscripten"
	FamilyWasi       Family = "wasi"
	FamilyNoArch     Family = "noarch"
)

// Parse validates s as a known platform.
func Parse(s string) (Platform, error) {
	p := Platform(s)
	if !slices.Contains(All, p) {
		return "", errors.New(errors.ErrCodeConfig, "unknown platform %q", s).WithVariant("", s)
	}
	return p, nil
}

// Family returns the family p belongs to.
func (p Platform) Family() Family {
	if p == NoArch {
		return FamilyNoArch
	}
	os, _, _ := strings.Cut(string(p), "-")
	return Family(os)
}

// IsUnix reports whether p is a unix-like platform.
func (p Platform) IsUnix() bool {
	switch p.Family() {
	case FamilyLinux, FamilyOsx, FamilyEmscripten:
		return true
	}
	return false
}

// Arch returns the architecture part of p, or "" for noarch.
func (p Platform) Arch() string {
	_, arch, _ := strings.Cut(string(p), "-")
	return arch
}

func (p Platform) String() string { return string(p) }

// Current returns the platform of the running process.
func Current() Platform {
	return fromGo(runtime.GOOS, runtime.GOARCH)
}

func fromGo(goos, goarch string) Platform {
	switch goos {
	case "linux":
		switch goarch {
		case "arm64":
			return LinuxAarch64
		case "ppc64le":
			return LinuxPpc64le
		}
		return Linux64
	case "darwin":
		if goarch == "arm64" {
			return OsxArm64
		}
		return Osx64
	case "windows":
		if goarch == "arm64" {
			return WinArm64
		}
		return Win64
	case "wasip1":
		return WasiWasm32
	case "js":
		return EmscriptenWasm32
	}
	return NoArch
}
