/*
 * dexlens - Android APK/DEX static-analysis toolkit
 */

package manifest

import "fmt"

// Parse decodes data (the raw, compiled AndroidManifest.xml bytes) into an
// Info, normalizing every component name against the package.
func Parse(data []byte) (*Info, error) {
	root, err := DecodeAXML(data)
	if err != nil {
		return nil, fmt.Errorf("manifest.Parse: %w", err)
	}

	pkg, ok := root.Attrs["package"]
	if !ok {
		return nil, fmt.Errorf("manifest.Parse: no package name found")
	}

	info := &Info{PackageName: pkg}
	if v, ok := root.Attr("versionCode"); ok {
		info.VersionCode = v
	}
	if v, ok := root.Attr("versionName"); ok {
		info.VersionName = v
	}

	for _, usesSDK := range root.FindAll("uses-sdk") {
		if v, ok := usesSDK.Attr("minSdkVersion"); ok {
			info.MinSDKVersion = v
		}
		if v, ok := usesSDK.Attr("targetSdkVersion"); ok {
			info.TargetSDKVersion = v
		}
		break
	}

	for _, perm := range root.FindAll("uses-permission") {
		if name, ok := perm.Attr("name"); ok {
			info.Permissions = append(info.Permissions, name)
		}
	}

	for _, app := range root.FindAll("application") {
		if label, ok := app.Attr("label"); ok {
			info.ApplicationLabel = label
		}
		break
	}

	collect := func(tag string) []string {
		var names []string
		for _, n := range root.FindAll(tag) {
			name, ok := n.Attr("name")
			if !ok {
				continue
			}
			names = append(names, normalizeComponentName(pkg, name))
		}
		return names
	}

	info.Activities = collect("activity")
	info.Services = collect("service")
	info.Receivers = collect("receiver")
	info.Providers = collect("provider")

	info.IntentFilters = parseIntentFilters(root, pkg)

	return info, nil
}

// parseIntentFilters walks every <activity>'s <intent-filter> children.
func parseIntentFilters(root *Node, pkg string) []IntentFilter {
	var out []IntentFilter
	for _, activity := range root.FindAll("activity") {
		name, ok := activity.Attr("name")
		if !ok {
			continue
		}
		componentName := normalizeComponentName(pkg, name)

		for _, child := range activity.Children {
			if child.Element != "intent-filter" {
				continue
			}
			filter := IntentFilter{Component: componentName}
			for _, part := range child.Children {
				switch part.Element {
				case "action":
					if v, ok := part.Attr("name"); ok {
						filter.Actions = append(filter.Actions, v)
					}
				case "category":
					if v, ok := part.Attr("name"); ok {
						filter.Categories = append(filter.Categories, v)
					}
				case "data":
					data := IntentFilterData{}
					data.Scheme, _ = part.Attr("scheme")
					data.Host, _ = part.Attr("host")
					data.Path, _ = part.Attr("path")
					data.PathPrefix, _ = part.Attr("pathPrefix")
					data.PathPattern, _ = part.Attr("pathPattern")
					filter.Data = append(filter.Data, data)
				}
			}
			if len(filter.Actions) > 0 || len(filter.Data) > 0 {
				out = append(out, filter)
			}
		}
	}
	return out
}
