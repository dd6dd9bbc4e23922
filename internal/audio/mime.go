package audio

// Recording formats, in probe order.
const (
	MIMEMP4  = "audio/mp4"
	MIMEWebM = "audio/webm"
	MIMEWAV  = "audio/wav"
	MIMEMP3  = "audio/mp3"
)

var probeOrder = []string{MIMEWebM, MIMEWAV}

// SelectMIME picks the recording format for a platform. Apple mobile
// platforms always record audio/mp4; elsewhere the first format the device
// supports wins, falling back to audio/mp3.
func SelectMIME(platform string, dev Device) string {
	if platform == "ios" {
		return MIMEMP4
	}
	if dev != nil {
		for _, mime := range probeOrder {
			if dev.Supports(mime) {
				return mime
			}
		}
	}
	return MIMEMP3
}
