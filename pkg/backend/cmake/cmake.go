// Package cmake implements the CMake build backend.
//
// A build is the usual configure, build and install sequence. CMake picks
// up the resolved compilers through CC, CXX and FC. The install
// prefix, the host prefix and the build type are passed as cache defines
// alongside the user's defines, all sorted so that equal configurations
// always yield the same command line.
package cmake

import (
	"maps"
	"path/filepath"
	"slices"

	"github.com/matzehuels/stackbuild/pkg/backend"
	"github.com/matzehuels/stackbuild/pkg/buildinfo"
	"github.com/matzehuels/stackbuild/pkg/config"
	"github.com/matzehuels/stackbuild/pkg/fingerprint"
	"github.com/matzehuels/stackbuild/pkg/manifest"
	"github.com/matzehuels/stackbuild/pkg/platform"
)

// Configuration fields.
const (
	FieldBuildType = "build-type"
	FieldGenerator = "generator"
	FieldDefines   = "defines"
)

// BuildDir is the out-of-source build directory, relative to the project.
const BuildDir = ".stackbuild/cmake-build"

// Adapter is the CMake backend.
type Adapter struct{}

// New returns the CMake backend.
func New() *Adapter { return &Adapter{} }

func (a *Adapter) Info() backend.Info {
	return backend.Info{
		Name:         "stackbuild-cmake",
		Version:      buildinfo.Version,
		Capabilities: backend.DefaultCapabilities(),
		Schema: config.CommonFields().With(
			config.Field{Name: config.FieldCompilers, Kind: config.StringList, Policy: config.Overwrite, Default: []string{"cxx"}},
			config.Field{Name: FieldBuildType, Kind: config.String, Policy: config.Overwrite, Default: "Release"},
			config.Field{Name: FieldGenerator, Kind: config.String, Policy: config.Overwrite, Default: "Ninja"},
			config.Field{Name: FieldDefines, Kind: config.StringMap, Policy: config.Merge},
		),
	}
}

func (a *Adapter) DefaultInputGlobs(*config.Resolved) fingerprint.GlobSet {
	return fingerprint.GlobSet{
		Defaults: []string{
			"**/*.{c,cc,cxx,cpp,h,hpp,hxx}",
			"**/CMakeLists.txt",
			"**/*.cmake",
			"!" + filepath.ToSlash(filepath.Dir(BuildDir)) + "/**",
		},
	}
}

// ExtractMetadata uses the project manifest only; CMake has no package
// metadata of its own worth reading.
func (a *Adapter) ExtractMetadata(m *manifest.Manifest, cfg *config.Resolved) (*backend.PackageMetadata, error) {
	md := backend.FromManifest(m, cfg)
	if err := md.Validate(); err != nil {
		return nil, err
	}
	return md, nil
}

func (a *Adapter) BuildScript(in backend.BuildInput) ([]backend.Command, error) {
	buildType := in.Config.String(FieldBuildType)
	buildDir := filepath.FromSlash(BuildDir)

	defines := in.Config.StringMap(FieldDefines)
	if defines == nil {
		defines = map[string]string{}
	}
	defines["CMAKE_INSTALL_PREFIX"] = installPrefix(in.Config.Platform, in.Prefix.Install)
	defines["CMAKE_PREFIX_PATH"] = in.Prefix.Host
	defines["CMAKE_BUILD_TYPE"] = buildType

	configure := []string{"-S", ".", "-B", buildDir}
	if g := in.Config.String(FieldGenerator); g != "" {
		configure = append(configure, "-G", g)
	}
	configure = append(configure, definesArgs(defines)...)
	configure = append(configure, in.Config.StringList(config.FieldExtraArgs)...)

	env := backend.Env(in, nil)
	path := in.SearchPath()
	cmd := func(args ...string) backend.Command {
		return backend.Command{Name: "cmake", Args: args, Env: env, Dir: in.WorkDir, Path: path}
	}
	return []backend.Command{
		cmd(configure...),
		cmd("--build", buildDir, "--config", buildType),
		cmd("--install", buildDir, "--config", buildType),
	}, nil
}

// installPrefix follows the conda layout, where windows packages install
// under Library.
func installPrefix(p platform.Platform, prefix string) string {
	if p.Family() == platform.FamilyWin {
		return filepath.Join(prefix, "Library")
	}
	return prefix
}

func definesArgs(defines map[string]string) []string {
	keys := slices.Sorted(maps.Keys(defines))
	args := make([]string, 0, len(keys))
	for _, k := range keys {
		args = append(args, "-D"+k+"="+defines[k])
	}
	return args
}
