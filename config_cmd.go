package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# speech engine: espeak, piper or mock
engine: "espeak"

# voice settings, applied from the next frame when changed under --watch
# pitch, 0 to 99
pitch: 50
# rate in words per minute, 80 to 450
rate: 170
# voice name as listed by "spin voices"
voice: "default"
# pause between words in units of 10ms
gap: 0
# report boundaries while speaking: whole, word, sentence or mark
track: "whole"

# maximum bytes of text per synthesis pass
frame_size: 128
# synthesis slots buffered per session
slots: 2
# treat all input as markdown
markdown: false

espeak:
  # command line, parsed like a shell would
  command: "espeak-ng"
  timeout: "30s"

piper:
  command: "piper"
  # path to an .onnx voice model; other models in the same directory are
  # offered as voices
  model: ""
  sample_rate: 22050
  timeout: "30s"

mock:
  delay: "0s"
  failure_rate: 0.0

# cache synthesized frames across runs
cache:
  enabled: false
  # dir: "~/.cache/spin/frames"
  memory_bytes: 67108864
  disk_bytes: 536870912
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the spin config file",
	Long:    paragraph(fmt.Sprintf("\n%s the spin config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("spin config\nspin config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Spin", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
