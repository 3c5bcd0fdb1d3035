package exporter

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"haruki-cutscenes/utils"

	"github.com/dlclark/regexp2"
)

var subtitleExtensions = []string{".ass", ".srt", ".txt"}

var srtTimePattern = regexp2.MustCompile(`-?\d\d:\d\d:\d\d,\d\d`, regexp2.None)

// SRT style tags rewritten to ASS override codes.
var styleRewrites = []struct {
	pattern *regexp2.Regexp
	replace string
}{
	{regexp2.MustCompile(`<([ubi])>`, regexp2.None), `{\${1}1}`},
	{regexp2.MustCompile(`</([ubi])>`, regexp2.None), `{\${1}0}`},
	{regexp2.MustCompile(`<font\s+color="?#(\w{2})(\w{2})(\w{2})"?>`, regexp2.None), `{\c&H$3$2$1&}`},
	{regexp2.MustCompile(`</font>`, regexp2.None), ``},
}

const assHeader = `[Script Info]
; This is an Advanced Sub Station Alpha v4+ script.
ScriptType: v4.00+
Collisions: Normal
ScaledBorderAndShadow: yes
PlayDepth: 0

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Default,%s,18,&H00FFFFFF,&H000000FF,&H00000000,&H00000000,0,0,0,0,100.0,100.0,0.0,0.0,1,0,0.5,2,10,10,20,1

[Events]
Format: Layer, Start, End, Style, Actor, MarginL, MarginR, MarginV, Effect, Text
`

// SubtitleFile is one subtitle found for a cutscene.
type SubtitleFile struct {
	Language string
	Path     string
}

func isNumber(s string) bool {
	_, err := strconv.Atoi(strings.TrimSpace(s))
	return err == nil
}

func assTime(v string) string {
	v = strings.ReplaceAll(v, "-0", "0")
	v = strings.ReplaceAll(v, ",", ".")
	return (v + ",")[1:]
}

// ParseSRT turns numbered SRT blocks into ASS dialogue lines. A block may
// carry one or two text lines.
func ParseSRT(content string) ([]string, error) {
	content = strings.TrimPrefix(content, "\ufeff")
	content = strings.ReplaceAll(content, "\r\n", "\n")
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}

	var dialogue []string
	for i := 0; i < len(lines); i++ {
		if !isNumber(lines[i]) {
			return nil, fmt.Errorf("dialogue block doesn't start with a number: %q", lines[i])
		}
		if i+2 >= len(lines) {
			return nil, fmt.Errorf("dialogue block %s is incomplete", strings.TrimSpace(lines[i]))
		}
		var times []string
		m, err := srtTimePattern.FindStringMatch(lines[i+1])
		for m != nil && err == nil {
			times = append(times, m.String())
			m, err = srtTimePattern.FindNextMatch(m)
		}
		if err != nil || len(times) != 2 {
			return nil, fmt.Errorf("start and stop times couldn't be correctly parsed: %s", lines[i+1])
		}

		line := "Dialogue: 0," + assTime(times[0]) + assTime(times[1]) + "Default,,0,0,0,," + lines[i+2]
		i += 2
		if i+1 < len(lines) && !isNumber(lines[i+1]) {
			i++
			line += `\n` + lines[i]
		}
		dialogue = append(dialogue, line)
	}
	return dialogue, nil
}

// RenderASS builds the ASS document for dialogue lines.
func RenderASS(font string, dialogue []string) (string, error) {
	content := strings.Join(dialogue, "\n")
	for _, rw := range styleRewrites {
		var err error
		content, err = rw.pattern.Replace(content, rw.replace, -1, -1)
		if err != nil {
			return "", err
		}
	}
	return fmt.Sprintf(assHeader, font) + content, nil
}

// ConvertSRTToASS writes <outDir>/<name>.ass from an SRT (or .txt) file.
func ConvertSRTToASS(srtFile, outDir, font string) (string, error) {
	data, err := os.ReadFile(srtFile)
	if err != nil {
		return "", err
	}
	dialogue, err := ParseSRT(string(data))
	if err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", srtFile, err)
	}
	doc, err := RenderASS(font, dialogue)
	if err != nil {
		return "", err
	}
	assFile := filepath.Join(outDir, utils.FileBase(srtFile)+".ass")
	if err := os.WriteFile(assFile, []byte(doc), 0o644); err != nil {
		return "", err
	}
	logger.Infof("%s converted to ASS", srtFile)
	return assFile, nil
}

// FindSubtitles looks for <subsFolder>/<LANG>/<base>_<LANG>.{ass,srt,txt},
// preferring .ass over .srt over .txt.
func FindSubtitles(subsFolder, base string) ([]SubtitleFile, error) {
	dirs, err := os.ReadDir(subsFolder)
	if err != nil {
		return nil, err
	}
	var found []SubtitleFile
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		lang := d.Name()
		if _, err := utils.ParseSubtitleLanguage(lang); err != nil {
			logger.Debugf("Skipping subtitle folder %s: %v", lang, err)
			continue
		}
		entries, err := os.ReadDir(filepath.Join(subsFolder, lang))
		if err != nil {
			return nil, err
		}
		prefix := base + "_" + lang + "."
		var candidates []string
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !strings.HasPrefix(name, prefix) {
				continue
			}
			for _, ext := range subtitleExtensions {
				if strings.EqualFold(filepath.Ext(name), ext) {
					candidates = append(candidates, name)
				}
			}
		}
		if len(candidates) == 0 {
			logger.Debugf("No subtitle for %s could be found for the language %s, skipping...", base, lang)
			continue
		}
		sort.Strings(candidates)
		found = append(found, SubtitleFile{Language: lang, Path: filepath.Join(subsFolder, lang, candidates[0])})
	}
	return found, nil
}
