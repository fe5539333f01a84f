/*
 * dexlens - Android APK/DEX static-analysis toolkit
 */

package manifest

import "github.com/mixL1nk/dexlens/internal/restbl"

// stringPool and parseStringPool are thin local aliases for the shared
// restbl decoder: AXML and ARSC embed the same
// RES_STRING_POOL_TYPE chunk layout, so one routine backs both this
// package's AXML decoder and the resources package's ARSC reader.
type stringPool = restbl.StringPool

func parseStringPool(body []byte) (stringPool, error) {
	return restbl.Parse(body)
}
