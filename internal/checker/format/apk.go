package format

import (
	"archive/zip"
	"bytes"
	"path"
	"sort"
	"strings"

	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/domain/check"
)

var (
	apkFiles = fileType{extensions: []string{"apk"}, source: "APK/Archive"}

	// apkSigningBlockMagic marks the v2+ signing block placed before the
	// zip central directory.
	apkSigningBlockMagic = []byte("APK Sig Block 42")
)

func openAPK(p string, data []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, invalidFile(p, "APK archive", err)
	}
	return zr, nil
}

// signatures lists the v1 signature files and, when present, the v2+
// signing block.
func signatures(zr *zip.Reader, data []byte) []string {
	var found []string
	for _, f := range zr.File {
		dir, name := path.Split(f.Name)
		if dir != "META-INF/" {
			continue
		}
		switch strings.ToUpper(path.Ext(name)) {
		case ".RSA", ".DSA", ".EC":
			found = append(found, "v1: "+f.Name)
		}
	}
	if bytes.Contains(data, apkSigningBlockMagic) {
		found = append(found, "v2+: APK Signing Block")
	}
	sort.Strings(found)
	return found
}

// APKIsNotSigned flags Android packages without a v1 signature file or a
// v2+ signing block.
var APKIsNotSigned = fileCheck(assert.Meta{
	Name:        "format.apk.is_not_signed",
	Description: "OPEN when an Android package carries no signature.",
	Risk:        check.RiskMedium,
}, apkFiles, "Android package is not signed", "Android package is signed",
	func(p string, data []byte) (bool, []string, error) {
		zr, err := openAPK(p, data)
		if err != nil {
			return false, nil, err
		}
		found := signatures(zr, data)
		if len(found) == 0 {
			return true, []string{"no signature files"}, nil
		}
		return false, found, nil
	})

// debugLibrary reports whether a native library entry is a debugger
// helper or a debug build.
func debugLibrary(name string) bool {
	if !strings.HasPrefix(name, "lib/") {
		return false
	}
	base := strings.ToLower(path.Base(name))
	switch {
	case base == "gdbserver", base == "gdb.setup", base == "lldb-server":
		return true
	case strings.HasSuffix(base, ".so") && (strings.Contains(base, "debug") || strings.Contains(base, "_dbg")):
		return true
	default:
		return false
	}
}

// APKHasDebugLibraries flags packages shipping debugger binaries or debug
// builds of native libraries.
var APKHasDebugLibraries = fileCheck(assert.Meta{
	Name:        "format.apk.has_debug_libraries",
	Description: "OPEN when an Android package ships native debugging helpers.",
	Risk:        check.RiskMedium,
}, apkFiles, "Android package ships debug libraries", "Android package ships no debug libraries",
	func(p string, data []byte) (bool, []string, error) {
		zr, err := openAPK(p, data)
		if err != nil {
			return false, nil, err
		}
		var found []string
		for _, f := range zr.File {
			if debugLibrary(f.Name) {
				found = append(found, f.Name)
			}
		}
		sort.Strings(found)
		return len(found) > 0, found, nil
	})
