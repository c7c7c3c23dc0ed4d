package transcriber

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/airenas/talkback/internal/pkg/api"
	tapi "github.com/airenas/talkback/internal/pkg/transcriber/api"
)

// ParseTranscript extracts text from the result document, segments are joined by new line
func ParseTranscript(doc []byte) (string, error) {
	if len(doc) == 0 {
		return "", fmt.Errorf("%w: empty document", api.ErrResultParse)
	}
	var t tapi.Transcript
	if err := json.Unmarshal(doc, &t); err != nil {
		return "", fmt.Errorf("%w: %v", api.ErrResultParse, err)
	}
	if t.Results == nil || t.Results.Transcripts == nil {
		return "", fmt.Errorf("%w: no transcripts", api.ErrResultParse)
	}
	res := make([]string, 0, len(t.Results.Transcripts))
	for _, s := range t.Results.Transcripts {
		res = append(res, s.Transcript)
	}
	return strings.Join(res, "\n"), nil
}
