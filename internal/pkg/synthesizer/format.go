package synthesizer

import "fmt"

// Format describes synthesized audio file
type Format struct {
	Ext         string
	ContentType string
}

var formats = map[string]Format{
	"mp3":        {Ext: ".mp3", ContentType: "audio/mpeg"},
	"ogg_vorbis": {Ext: ".ogg", ContentType: "audio/ogg"},
	"pcm":        {Ext: ".pcm", ContentType: "audio/pcm"},
}

// FormatInfo returns file info for output format
func FormatInfo(format string) (Format, error) {
	res, ok := formats[format]
	if !ok {
		return Format{}, fmt.Errorf("unsupported format '%s'", format)
	}
	return res, nil
}
