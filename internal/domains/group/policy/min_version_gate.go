package policy

import (
	"strconv"
	"strings"

	groupmodel "aim-chat/go-backend/internal/domains/group/model"
)

// LocalProtocolVersion is this client's own protocol version, the value
// EnforceMinVersionGate compares a group's min_supported_protocol_version
// extension against.
const LocalProtocolVersion = "1.0.0"

// CompareSemVer compares two dotted-numeric version strings (e.g. "1.4.2"),
// returning -1, 0, or 1. Unparsed or missing segments compare as zero so a
// shorter version like "1.4" is treated as "1.4.0".
func CompareSemVer(a, b string) int {
	as := splitSemVer(a)
	bs := splitSemVer(b)
	for i := 0; i < len(as) || i < len(bs); i++ {
		var av, bv int
		if i < len(as) {
			av = as[i]
		}
		if i < len(bs) {
			bv = bs[i]
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}

func splitSemVer(v string) []int {
	parts := strings.Split(strings.TrimSpace(v), ".")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			n = 0
		}
		out[i] = n
	}
	return out
}

// EnforceMinVersionGate implements the group pause invariant: once a
// commit installs a min_supported_protocol_version metadata extension
// above the local client's own version, every further local mutation is
// refused until the client updates, while inbound processing still
// advances the cursor so the group doesn't fall further behind once the
// client catches up.
func EnforceMinVersionGate(state GroupState, localProtocolVersion string) error {
	required := strings.TrimSpace(state.Group.MinSupportedProtocolVersion)
	if required == "" {
		return nil
	}
	if CompareSemVer(localProtocolVersion, required) < 0 {
		return &groupmodel.GroupPausedError{RequiredVersion: required}
	}
	return nil
}

// PauseStateForVersion returns the version string a group's
// paused_until_version marker should carry for the given local client
// version: the required minimum while the client lags it, empty once the
// client has caught up.
func PauseStateForVersion(state GroupState, localProtocolVersion string) string {
	required := strings.TrimSpace(state.Group.MinSupportedProtocolVersion)
	if required == "" {
		return ""
	}
	if CompareSemVer(localProtocolVersion, required) < 0 {
		return required
	}
	return ""
}
