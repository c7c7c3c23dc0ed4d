package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/airenas/go-app/pkg/goapp"
)

// WriteFile write file to disk
func WriteFile(name string, data []byte) error {
	goapp.Log.Info().Str("name", name).Msg("Save")
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(data)
	return err
}

var audioExt = map[string]string{".wav": "wav", ".mp3": "mp3", ".mp4": "mp4", ".m4a": "mp4",
	".ogg": "ogg", ".webm": "webm", ".flac": "flac", ".amr": "amr"}

// SupportAudioExt checks if audio ext is supported
func SupportAudioExt(ext string) bool {
	_, ok := audioExt[strings.ToLower(ext)]
	return ok
}

// MediaFormat returns transcription media format by file name
func MediaFormat(name string) string {
	return audioExt[strings.ToLower(filepath.Ext(name))]
}

var badNameSymbols = regexp.MustCompile(`[^\p{L}\p{N}_\-.]`)

// MakeValidateFileName drops dirs from file name, replaces unsafe symbols and prefixes with ID dir
func MakeValidateFileName(ID, fileName string) (string, error) {
	base := filepath.Base(filepath.ToSlash(fileName))
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	name = badNameSymbols.ReplaceAllString(name, "_")
	if name == "" || name == "." || name == ".." || strings.Trim(name, "_.") == "" {
		return "", fmt.Errorf("wrong file name '%s'", fileName)
	}
	res := name + strings.ToLower(badNameSymbols.ReplaceAllString(ext, ""))
	if ID == "" {
		return res, nil
	}
	return ID + "/" + res, nil
}

// IsPlainName checks the name does not contain any path elements
func IsPlainName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`) &&
		filepath.Base(name) == name
}
