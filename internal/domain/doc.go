// Package domain models mute zones and the device audio state they drive.
//
// # Zones
//
// A mute zone is a named circle on the WGS-84 ellipsoid given by a centre
// latitude/longitude in decimal degrees and a radius in meters. A device is
// inside a zone when the great-circle distance from its position to the
// zone centre is at most the radius (boundary inclusive). Distances use the
// haversine formula on the IUGG mean Earth radius, which stays within 0.5%
// of the ellipsoidal distance everywhere including near the poles and
// across the antimeridian.
//
// Zones are matched in the order the caller supplies them; the first zone
// that contains the position wins. There is no "closest zone" ranking.
// A zone with a zero or negative radius never matches.
//
// # Ringer and interruption filter
//
// Two independent device axes are modelled:
//
//	RingerMode:          silent | normal
//	InterruptionFilter:  none (Do Not Disturb on) | all (Do Not Disturb off)
//
// # Permissions and pathways
//
// Mobile platforms gate both axes behind separate permissions, and some
// vendors honour only a subset of them. A PermissionState snapshot records
// what is currently granted; SelectPathway maps it to the control pathway
// to use, in a fixed priority order:
//
//	1. direct_policy_access          notification policy access granted
//	2. settings_write_fallback       system settings write granted
//	3. interruption_filter_fallback  post-notifications granted (or not
//	                                 required on this OS version), or the
//	                                 notification listener is connected
//
// When none apply the device cannot be controlled and the caller reports
// the decision as denied.
//
// # Location fixes
//
// Fixes arrive as JSON, either OwnTracks location messages
//
//	{"_type":"location","lat":52.52,"lon":13.40,"tst":1714144200,"acc":12,"tid":"ph"}
//
// or the flat form produced by the companion app
//
//	{"device":"pixel-7","lat":52.52,"lon":13.40,"timestamp":"2024-04-26T15:10:00Z"}
//
// See [ParseFix].
package domain
