package utils

import (
	"fmt"
	"slices"
)

// AudioLanguage is the language of an HCA channel, indexed by the channel
// number of the @SFA chunks carrying it.
type AudioLanguage struct {
	Name string
	Code string
}

var AudioLanguages = []AudioLanguage{
	{Name: "Chinese", Code: "chi"},
	{Name: "English", Code: "eng"},
	{Name: "Japanese", Code: "jpn"},
	{Name: "Korean", Code: "kor"},
}

// DefaultAudioLanguages keeps every known channel.
var DefaultAudioLanguages = []string{"chi", "eng", "jpn", "kor"}

func ParseAudioLanguage(channel int) (AudioLanguage, error) {
	if channel < 0 || channel >= len(AudioLanguages) {
		return AudioLanguage{}, fmt.Errorf("audio channel %d has no known language", channel)
	}
	return AudioLanguages[channel], nil
}

// WantAudioChannel reports whether the language of channel is listed in codes.
func WantAudioChannel(channel int, codes []string) bool {
	lang, err := ParseAudioLanguage(channel)
	if err != nil {
		return false
	}
	return slices.Contains(codes, lang.Code)
}

// SubtitleLanguage maps a subtitle folder name to its ISO 639-2 code.
type SubtitleLanguage struct {
	Code string
	Name string
}

var SubtitleLanguages = map[string]SubtitleLanguage{
	"CHS": {Code: "chi", Name: "Chinese (Simplified)"},
	"CHT": {Code: "chi", Name: "Chinese (Traditional)"},
	"DE":  {Code: "ger", Name: "German"},
	"EN":  {Code: "eng", Name: "English"},
	"ES":  {Code: "spa", Name: "Spanish"},
	"FR":  {Code: "fre", Name: "French"},
	"ID":  {Code: "ind", Name: "Indonesian"},
	"JP":  {Code: "jpn", Name: "Japanese"},
	"KR":  {Code: "kor", Name: "Korean"},
	"PT":  {Code: "por", Name: "Portuguese"},
	"RU":  {Code: "rus", Name: "Russian"},
	"TH":  {Code: "tha", Name: "Thai"},
	"VI":  {Code: "vie", Name: "Vietnamese"},
}

func ParseSubtitleLanguage(s string) (SubtitleLanguage, error) {
	lang, ok := SubtitleLanguages[s]
	if !ok {
		return SubtitleLanguage{}, fmt.Errorf("invalid subtitle language: %s", s)
	}
	return lang, nil
}
