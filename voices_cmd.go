package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dgnsrekt/spin/tts"
	"github.com/dustin/go-humanize"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var voicesCmd = &cobra.Command{
	Use:     "voices [FILTER]",
	Short:   "List the voices of the configured engine",
	Long:    paragraph(fmt.Sprintf("\n%s the voices offered by the configured engine, best matches first when a filter is given.", keyword("List"))),
	Example: paragraph("spin voices\nspin voices english\nspin -e mock voices"),
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		engine, err := newEngine(cfg)
		if err != nil {
			return err
		}
		defer engine.Close() //nolint:errcheck

		voices, err := engine.Voices(cmd.Context())
		if err != nil {
			return fmt.Errorf("unable to list voices: %w", err)
		}
		if len(args) == 1 {
			voices = filterVoices(args[0], voices)
		}

		for _, v := range voices {
			fmt.Fprintf(os.Stdout, "%s %s %s\n",
				keyword(fmt.Sprintf("%-24s", v.ID)),
				offsetStyle.Render(fmt.Sprintf("%-8s", v.Language)),
				v.Name)
		}
		fmt.Fprintf(os.Stderr, "%s from %s\n", humanize.Comma(int64(len(voices)))+" voices", engine.Name())
		return nil
	},
}

// voiceKeys are the strings a voice is matched on.
type voiceKeys []tts.Voice

func (v voiceKeys) String(i int) string {
	return v[i].ID + " " + v[i].Name + " " + v[i].Language
}

func (v voiceKeys) Len() int { return len(v) }

// filterVoices returns the voices matching pattern, best first.
func filterVoices(pattern string, voices []tts.Voice) []tts.Voice {
	matches := fuzzy.FindFrom(pattern, voiceKeys(voices))
	out := make([]tts.Voice, 0, len(matches))
	for _, m := range matches {
		out = append(out, voices[m.Index])
	}
	return out
}

// matchVoice resolves name against the engine's voices. An exact ID or name
// wins, then the best fuzzy match. Without any match name is returned as is.
func matchVoice(name string, voices []tts.Voice) string {
	if name == "" || name == tts.DefaultVoice {
		return name
	}
	for _, v := range voices {
		if strings.EqualFold(v.ID, name) || strings.EqualFold(v.Name, name) {
			return v.ID
		}
	}
	if m := filterVoices(name, voices); len(m) > 0 {
		return m[0].ID
	}
	return name
}
