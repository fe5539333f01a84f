/*
 * dexlens - Android APK/DEX static-analysis toolkit
 */

// Package apk opens an Android application package as a ZIP archive and
// classifies its entries: the DEX images, the compiled manifest, and the
// resource table. It performs no parsing of what it
// extracts; that is the dex and manifest packages' job.
package apk

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zip"
)

// ErrInvalidAPK is returned when an opened archive is missing a manifest or
// carries no DEX entries at all. ErrMissingManifest and ErrNoDexFiles
// narrow it; both match ErrInvalidAPK under errors.Is.
var (
	ErrInvalidAPK      = errors.New("apk: invalid archive")
	ErrMissingManifest = fmt.Errorf("%w: no AndroidManifest.xml", ErrInvalidAPK)
	ErrNoDexFiles      = fmt.Errorf("%w: no DEX entries", ErrInvalidAPK)
)

// DexEntry names one top-level *.dex member of the archive.
type DexEntry struct {
	Name  string
	Index int
}

// Number returns the DEX file's ordinal: "classes.dex" is 1, "classesN.dex"
// is N, and entries it cannot parse a suffix from return false.
func (e DexEntry) Number() (int, bool) {
	if e.Name == "classes.dex" {
		return 1, true
	}
	if strings.HasPrefix(e.Name, "classes") && strings.HasSuffix(e.Name, ".dex") {
		n, err := strconv.Atoi(e.Name[len("classes") : len(e.Name)-len(".dex")])
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// IsPrimary reports whether this is classes.dex.
func (e DexEntry) IsPrimary() bool { return e.Name == "classes.dex" }

// Archive is an opened APK's ZIP directory, classified but not yet read.
// Entry bytes are fetched lazily via Extract*; Archive itself holds no open
// file handle between calls.
type Archive struct {
	path         string
	dexEntries   []DexEntry
	hasManifest  bool
	hasResources bool
}

// Open validates that path exists, then scans its ZIP central directory
// once to classify every entry. A missing manifest or
// zero DEX entries is a fatal ErrInvalidAPK; no bytes are extracted yet.
func Open(path string) (*Archive, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("apk.Open(%s): %w", path, err)
	}

	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("apk.Open(%s): %w", path, err)
	}
	defer r.Close()

	a := &Archive{path: path}
	for i, f := range r.File {
		switch {
		case strings.HasSuffix(f.Name, ".dex") && !strings.Contains(f.Name, "/"):
			a.dexEntries = append(a.dexEntries, DexEntry{Name: f.Name, Index: i})
		case f.Name == "AndroidManifest.xml":
			a.hasManifest = true
		case f.Name == "resources.arsc":
			a.hasResources = true
		}
	}

	if !a.hasManifest {
		return nil, fmt.Errorf("apk.Open(%s): %w", path, ErrMissingManifest)
	}
	if len(a.dexEntries) == 0 {
		return nil, fmt.Errorf("apk.Open(%s): %w", path, ErrNoDexFiles)
	}

	sort.Slice(a.dexEntries, func(i, j int) bool {
		ni, oki := a.dexEntries[i].Number()
		nj, okj := a.dexEntries[j].Number()
		if oki && okj {
			return ni < nj
		}
		if oki != okj {
			return oki // numbered entries sort before anything lexicographic
		}
		return a.dexEntries[i].Name < a.dexEntries[j].Name
	})

	return a, nil
}

// DexEntries returns every DEX member, sorted classes.dex, classes2.dex, ...
func (a *Archive) DexEntries() []DexEntry { return a.dexEntries }

// PrimaryDex returns classes.dex's entry, if present.
func (a *Archive) PrimaryDex() (DexEntry, bool) {
	for _, e := range a.dexEntries {
		if e.IsPrimary() {
			return e, true
		}
	}
	return DexEntry{}, false
}

// HasResources reports whether resources.arsc was found.
func (a *Archive) HasResources() bool { return a.hasResources }

// ExtractManifest returns AndroidManifest.xml's raw compiled-XML bytes.
func (a *Archive) ExtractManifest() ([]byte, error) {
	return a.ExtractFile("AndroidManifest.xml")
}

// ExtractResources returns resources.arsc's raw bytes.
func (a *Archive) ExtractResources() ([]byte, error) {
	if !a.hasResources {
		return nil, fmt.Errorf("apk.ExtractResources: %w: resources.arsc not found", ErrInvalidAPK)
	}
	return a.ExtractFile("resources.arsc")
}

// ExtractFile reads one archive member fully into memory by name.
func (a *Archive) ExtractFile(name string) ([]byte, error) {
	r, err := zip.OpenReader(a.path)
	if err != nil {
		return nil, fmt.Errorf("apk.ExtractFile(%s): %w", name, err)
	}
	defer r.Close()

	f, err := r.Open(name)
	if err != nil {
		return nil, fmt.Errorf("apk.ExtractFile(%s): %w", name, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("apk.ExtractFile(%s): %w", name, err)
	}
	return data, nil
}

// ExtractDex reads one DexEntry's raw bytes by name.
func (a *Archive) ExtractDex(e DexEntry) ([]byte, error) {
	return a.ExtractFile(e.Name)
}
