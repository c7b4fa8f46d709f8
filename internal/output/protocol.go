package output

import "strings"

// Service and output type identifiers.
const (
	ServiceType = "rtmp_custom"

	OutputTypeRTMP   = "rtmp_output"
	OutputTypeFTL    = "ftl_output"
	OutputTypeMPEGTS = "ffmpeg_mpegts_muxer"
)

const (
	ftlProtocol  = "ftl"
	rtmpProtocol = "rtmp"
)

// ResolveOutputType picks the output type for a service. The service's own
// preference wins. Otherwise an "ftl" URL selects FTL, any other non-"rtmp"
// URL (srt, rist, udp, ...) selects the MPEG-TS muxer and everything else
// falls back to RTMP. An empty URL is RTMP.
func ResolveOutputType(preferred, url string) string {
	if preferred != "" {
		return preferred
	}
	switch {
	case url == "":
		return OutputTypeRTMP
	case strings.HasPrefix(url, ftlProtocol):
		return OutputTypeFTL
	case !strings.HasPrefix(url, rtmpProtocol):
		return OutputTypeMPEGTS
	default:
		return OutputTypeRTMP
	}
}
