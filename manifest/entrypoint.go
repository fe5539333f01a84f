/*
 * dexlens - Android APK/DEX static-analysis toolkit
 */

package manifest

// EntryPoint is an app-level callable surface the platform can invoke
// directly: a manifest-declared activity, service, receiver, or provider,
// linked against the decompiled class (if any) that implements it.
type EntryPoint struct {
	ComponentKind     ComponentKind
	ClassName         string
	IntentFilters     []IntentFilter
	IsDeeplinkHandler bool
	ClassFound        bool
}

// DeeplinkPatterns renders one "scheme://host/path"-shaped pattern per
// <data> element across every intent filter on this entry point, skipping
// data elements that yield nothing printable.
func (e EntryPoint) DeeplinkPatterns() []string {
	var patterns []string
	for _, f := range e.IntentFilters {
		for _, d := range f.Data {
			pattern := formatDeeplinkPattern(d)
			if pattern != "" {
				patterns = append(patterns, pattern)
			}
		}
	}
	return patterns
}

func formatDeeplinkPattern(d IntentFilterData) string {
	var pattern string
	if d.Scheme != "" {
		pattern += d.Scheme + "://"
	}
	pattern += d.Host
	switch {
	case d.Path != "":
		pattern += d.Path
	case d.PathPrefix != "":
		pattern += d.PathPrefix + "*"
	case d.PathPattern != "":
		pattern += d.PathPattern
	}
	return pattern
}

// Actions returns every action named across this entry point's intent
// filters.
func (e EntryPoint) Actions() []string {
	var out []string
	for _, f := range e.IntentFilters {
		out = append(out, f.Actions...)
	}
	return out
}

// HandlesAction reports whether any intent filter on this entry point
// declares action.
func (e EntryPoint) HandlesAction(action string) bool {
	for _, f := range e.IntentFilters {
		if f.HandlesAction(action) {
			return true
		}
	}
	return false
}

// ClassIndex is the set of decompiled class names known to be present in
// the DEX image, used purely as a membership test by LinkEntryPoints. It
// is a bare map rather than dex.DecompiledClass so this package does not
// need to import dex for what amounts to a "contains" query.
type ClassIndex map[string]bool

// LinkEntryPoints joins every manifest-declared component against classes
// and returns one EntryPoint per component. All four
// component kinds are linked identically: normalized name lookup against
// classes, plus (for activities only) the intent filters declared under
// that activity. Services, receivers, and providers never carry intent
// filters in this manifest model, so their IsDeeplinkHandler is always
// false and IntentFilters always empty.
func LinkEntryPoints(info *Info, classes ClassIndex) []EntryPoint {
	var out []EntryPoint
	out = append(out, linkComponents(KindActivity, info.Activities, info.IntentFilters, classes)...)
	out = append(out, linkComponents(KindService, info.Services, nil, classes)...)
	out = append(out, linkComponents(KindReceiver, info.Receivers, nil, classes)...)
	out = append(out, linkComponents(KindProvider, info.Providers, nil, classes)...)
	return out
}

func linkComponents(kind ComponentKind, componentNames []string, allFilters []IntentFilter, classes ClassIndex) []EntryPoint {
	out := make([]EntryPoint, 0, len(componentNames))
	for _, name := range componentNames {
		filters := filtersFor(name, allFilters)
		deeplink := false
		for _, f := range filters {
			if f.IsDeeplink() {
				deeplink = true
				break
			}
		}
		out = append(out, EntryPoint{
			ComponentKind:     kind,
			ClassName:         name,
			IntentFilters:     filters,
			IsDeeplinkHandler: deeplink,
			ClassFound:        classes[name],
		})
	}
	return out
}

func filtersFor(component string, filters []IntentFilter) []IntentFilter {
	var out []IntentFilter
	for _, f := range filters {
		if f.Component == component {
			out = append(out, f)
		}
	}
	return out
}

// DeeplinkHandlers returns only the entry points eligible as deeplinks.
func DeeplinkHandlers(entryPoints []EntryPoint) []EntryPoint {
	var out []EntryPoint
	for _, e := range entryPoints {
		if e.IsDeeplinkHandler {
			out = append(out, e)
		}
	}
	return out
}

// FoundEntryPoints returns only the entry points whose class was located
// in the decompiled set.
func FoundEntryPoints(entryPoints []EntryPoint) []EntryPoint {
	var out []EntryPoint
	for _, e := range entryPoints {
		if e.ClassFound {
			out = append(out, e)
		}
	}
	return out
}
