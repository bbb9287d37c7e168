// Package main provides the entry point for the spin CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/atotto/clipboard"
	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/spin/internal/cache"
	"github.com/dgnsrekt/spin/internal/markdown"
	"github.com/dgnsrekt/spin/tts"
	"github.com/dgnsrekt/spin/tts/audio"
	"github.com/dgnsrekt/spin/tts/engines"
	"github.com/dgnsrekt/spin/tts/engines/cached"
	"github.com/dgnsrekt/spin/tts/engines/espeak"
	"github.com/dgnsrekt/spin/tts/engines/mock"
	"github.com/dgnsrekt/spin/tts/engines/piper"
	"github.com/dgnsrekt/spin/tts/spin"
	"github.com/dgnsrekt/spin/tts/text"
	"github.com/dustin/go-humanize"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile   string
	output       string
	realtime     bool
	useClipboard bool
	speakCode    bool
	watch        bool
	debug        bool
	volume       float64

	rootCmd = &cobra.Command{
		Use:   "spin [FILE|-]...",
		Short: "Speak text on the CLI, one frame at a time",
		Long: paragraph(
			fmt.Sprintf("\nSpeak text on the CLI, %s.", keyword("one frame at a time")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return nil, cobra.ShellCompDirectiveDefault
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := setupLog(debug); err != nil {
				return err
			}
			return useConfigFlag(cmd)
		},
		RunE: execute,
	}
)

// loadConfig builds the effective configuration: environment defaults first,
// then everything viper knows about (config file, bound flags, SPIN_* env).
func loadConfig(v *viper.Viper) (tts.Config, error) {
	base, err := env.ParseAs[tts.Config]()
	if err != nil {
		return tts.Config{}, fmt.Errorf("error parsing environment: %w", err)
	}
	cfg, err := tts.LoadConfigFromViper(v, base)
	if err != nil {
		return cfg, err
	}
	if cfg.Cache.Dir != "" {
		cfg.Cache.Dir = expandPath(cfg.Cache.Dir)
	}
	return cfg, nil
}

// newEngine creates the engine named in cfg. espeak-ng falls back to the
// legacy espeak binary when it keeps failing.
func newEngine(cfg tts.Config) (engines.Engine, error) {
	var e engines.Engine
	switch cfg.Engine {
	case "mock":
		e = mock.New(mock.WithDelay(cfg.Mock.Delay), mock.WithFailureRate(cfg.Mock.FailureRate))
	case "espeak":
		primary, err := espeak.New(cfg.Espeak)
		if err != nil {
			return nil, err
		}
		e = primary
		if err := primary.Available(); err != nil {
			log.Debug("primary engine unavailable", "err", err)
		}
		legacy := cfg.Espeak
		legacy.Command = "espeak"
		if primary.Name() != legacy.Command {
			if fb, err := espeak.New(legacy); err == nil && fb.Available() == nil {
				if f, err := engines.NewFallbackEngine(primary, fb, 2); err == nil {
					e = f
				}
			}
		}
	case "piper":
		p, err := piper.New(cfg.Piper)
		if err != nil {
			return nil, err
		}
		if err := p.Available(); err != nil {
			return nil, err
		}
		e = p
	default:
		return nil, fmt.Errorf("%w: %q", tts.ErrInvalidEngine, cfg.Engine)
	}
	return e, nil
}

// newCache opens the synthesis cache described by cfg, or returns nil when
// caching is disabled.
func newCache(cfg tts.CacheConfig) (*cache.Manager, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dir := cfg.Dir
	if dir == "" {
		d, err := gap.NewScope(gap.User, "spin").CacheDir()
		if err != nil {
			return nil, fmt.Errorf("unable to find cache directory: %w", err)
		}
		dir = filepath.Join(d, "frames")
	}
	cc := cache.DefaultConfig()
	cc.MemoryCapacity = cfg.MemoryBytes
	cc.DiskCapacity = cfg.DiskBytes
	cc.DiskPath = dir
	return cache.NewManager(cc)
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to open file: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

// readInput gathers the text to speak from the clipboard, the files named in
// args or stdin, in that order of preference.
func readInput(args []string, fromClipboard bool) (string, error) {
	if fromClipboard {
		s, err := clipboard.ReadAll()
		if err != nil {
			return "", fmt.Errorf("unable to read clipboard: %w", err)
		}
		return s, nil
	}

	if len(args) == 0 {
		pipe, err := stdinIsPipe()
		if err != nil {
			return "", err
		}
		if !pipe {
			return "", errors.New("nothing to speak: pass a file, - or pipe text on stdin")
		}
		args = []string{"-"}
	}

	var b strings.Builder
	for _, arg := range args {
		s, err := readArg(arg)
		if err != nil {
			return "", err
		}
		if b.Len() > 0 && s != "" {
			b.WriteString("\n\n")
		}
		b.WriteString(s)
	}
	return b.String(), nil
}

func readArg(arg string) (string, error) {
	var r io.Reader
	if arg == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(expandPath(arg))
		if err != nil {
			return "", fmt.Errorf("unable to open file: %w", err)
		}
		defer f.Close() //nolint:errcheck
		r = f
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("unable to read from reader: %w", err)
	}
	return string(b), nil
}

// isMarkdown reports whether input should go through the markdown
// converter.
func isMarkdown(args []string, forced bool) bool {
	if forced {
		return true
	}
	for _, a := range args {
		switch strings.ToLower(filepath.Ext(a)) {
		case ".md", ".mdown", ".mkdn", ".mkd", ".markdown":
			return true
		}
	}
	return false
}

// prepare turns raw input into the text handed to the session.
func prepare(input string, md bool) string {
	if md {
		input = markdown.Plain(input, markdown.Options{SpeakCode: speakCode})
	}
	return text.Normalize(input)
}

func expandPath(path string) string {
	if p, err := homedir.Expand(path); err == nil {
		return p
	}
	return path
}

func execute(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	input, err := readInput(args, useClipboard)
	if err != nil {
		return err
	}
	input = prepare(input, isMarkdown(args, cfg.Markdown))
	if strings.TrimSpace(input) == "" {
		log.Debug("no speakable text")
		return nil
	}

	// Raw PCM on a terminal is never what anyone wants.
	if output == "-" && term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("refusing to write raw audio to a terminal: redirect stdout or use --output FILE.wav")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := newEngine(cfg)
	if err != nil {
		return err
	}
	defer engine.Close() //nolint:errcheck

	store, err := newCache(cfg.Cache)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close() //nolint:errcheck
		engine = cached.New(engine, store)
	}

	params := cfg.Params()
	if voices, err := engine.Voices(ctx); err == nil && len(voices) > 0 {
		params.Voice = matchVoice(params.Voice, voices)
	}

	d := spin.NewDispatcher(engine,
		spin.WithSlots(cfg.Slots),
		spin.WithFrameSize(cfg.FrameSize),
		spin.WithLogger(log.Default().WithPrefix("spin")),
	)
	defer d.Close() //nolint:errcheck

	s := d.Open(params, notifier(os.Stderr, params.Track))
	defer s.Close()

	if watch {
		if path := viper.ConfigFileUsed(); path != "" {
			stopWatch, err := watchConfig(path, func(c tts.Config) {
				p := c.Params()
				p.Track = s.Params().Track
				s.SetParams(p)
				log.Info("voice updated", "pitch", p.Pitch, "rate", p.Rate, "voice", p.Voice, "gap", p.Gap)
			})
			if err != nil {
				log.Warn("unable to watch config file", "err", err)
			} else {
				defer stopWatch()
			}
		} else {
			log.Warn("no configuration file to watch")
		}
	}

	// Closing the session unblocks Pull, which ends playback.
	go func() {
		<-ctx.Done()
		s.Close()
	}()

	if err := s.SetText(input); err != nil {
		return err
	}

	n, err := play(ctx, s, d.Format())
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	stats := d.Stats()
	log.Debug("finished", "audio", humanize.IBytes(uint64(n)), "passes", stats.Passes, "failures", stats.Failures)
	return err
}

// play sends session audio to the configured output and returns the number
// of bytes written.
func play(ctx context.Context, s *spin.Session, f tts.Format) (int64, error) {
	r := audio.NewReader(s)

	switch {
	case output == "-":
		var w io.Writer = os.Stdout
		if realtime {
			w = audio.NewPacer(ctx, os.Stdout, f)
		}
		n, err := io.Copy(w, r)
		if err != nil {
			return n, fmt.Errorf("unable to write audio: %w", err)
		}
		return n, nil

	case output != "":
		path := expandPath(output)
		file, err := os.Create(path)
		if err != nil {
			return 0, fmt.Errorf("unable to create output file: %w", err)
		}
		n, err := audio.WriteWAV(file, r, f)
		if cerr := file.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return n, fmt.Errorf("unable to write %s: %w", path, err)
		}
		log.Debug("wrote wav file", "path", path, "size", humanize.IBytes(uint64(n)))
		return n, nil

	default:
		p, err := audio.NewPlayer(f)
		if err != nil {
			return 0, err
		}
		defer p.Close() //nolint:errcheck
		p.SetVolume(volume)
		if err := p.Play(ctx, r); err != nil {
			return r.BytesRead(), err
		}
		return r.BytesRead(), nil
	}
}

func main() {
	err := rootCmd.Execute()
	closeLog()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	defaults := tts.DefaultConfig()
	flags := rootCmd.Flags()
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "write a debug log to the data directory")
	flags.StringP("engine", "e", defaults.Engine, "speech engine: espeak, piper or mock")
	flags.IntP("pitch", "p", defaults.Pitch, "pitch, 0 to 99")
	flags.IntP("rate", "r", defaults.Rate, "rate in words per minute, 80 to 450")
	flags.StringP("voice", "v", defaults.Voice, "voice name, matched loosely against the engine's voices")
	flags.IntP("gap", "g", defaults.Gap, "pause between words in units of 10ms")
	flags.StringP("track", "t", defaults.Track, "report boundaries: whole, word, sentence or mark")
	flags.Int("frame-size", defaults.FrameSize, "maximum bytes of text per synthesis pass")
	flags.Int("slots", defaults.Slots, "synthesis slots buffered per session")
	flags.BoolP("markdown", "m", defaults.Markdown, "treat input as markdown")
	flags.BoolVar(&speakCode, "speak-code", false, "read code blocks aloud (markdown only)")
	flags.BoolVarP(&useClipboard, "clipboard", "c", false, "speak the clipboard contents")
	flags.StringVarP(&output, "output", "o", "", "write a WAV file instead of playing, or - for raw PCM on stdout")
	flags.BoolVar(&realtime, "realtime", false, "pace raw output at playback speed")
	flags.Float64Var(&volume, "volume", 1, "playback volume, 0 to 1")
	flags.BoolVarP(&watch, "watch", "w", false, "apply voice changes from the config file while speaking")

	// Config bindings
	_ = viper.BindPFlag("engine", flags.Lookup("engine"))
	_ = viper.BindPFlag("pitch", flags.Lookup("pitch"))
	_ = viper.BindPFlag("rate", flags.Lookup("rate"))
	_ = viper.BindPFlag("voice", flags.Lookup("voice"))
	_ = viper.BindPFlag("gap", flags.Lookup("gap"))
	_ = viper.BindPFlag("track", flags.Lookup("track"))
	_ = viper.BindPFlag("frame_size", flags.Lookup("frame-size"))
	_ = viper.BindPFlag("slots", flags.Lookup("slots"))
	_ = viper.BindPFlag("markdown", flags.Lookup("markdown"))

	tts.SetDefaults(viper.GetViper())

	rootCmd.AddCommand(configCmd, manCmd, voicesCmd)
}

func configDirs() ([]string, error) {
	dirs, err := gap.NewScope(gap.User, "spin").ConfigDirs()
	if err != nil {
		return nil, err
	}
	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "spin")}, dirs...)
	}
	if c := os.Getenv("SPIN_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}
	return dirs, nil
}

func tryLoadConfigFromDefaultPlaces() {
	dirs, err := configDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("spin")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("spin")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	configFile = filepath.Join(dirs[0], "spin.yml")
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}

// useConfigFlag switches to the file named by --config.
func useConfigFlag(cmd *cobra.Command) error {
	if !cmd.Flags().Changed("config") {
		return nil
	}
	configFile = expandPath(configFile)
	viper.SetConfigFile(configFile)
	if err := viper.ReadInConfig(); err != nil {
		if errors.Is(err, os.ErrNotExist) && cmd.Name() == configCmd.Name() {
			return nil
		}
		return fmt.Errorf("unable to read config file: %w", err)
	}
	log.Debug("Using configuration file", "path", configFile)
	return nil
}
