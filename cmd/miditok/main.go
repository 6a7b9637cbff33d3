package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/WhiteFu/miditok"
	"github.com/WhiteFu/miditok/gomidi"
	"github.com/WhiteFu/miditok/version"
)

// tokenFile is the on-disk form of a tokenized piece: enough to rebuild the
// MIDI without the original file at hand.
type tokenFile struct {
	Scheme       string           `json:"scheme" yaml:"scheme"`
	TimeDivision int              `json:"timeDivision" yaml:"timedivision"`
	Programs     []programEntry   `json:"programs,omitempty" yaml:"programs,omitempty"`
	Sequences    [][][]string     `json:"sequences" yaml:"sequences"`
}

type programEntry struct {
	Program int  `json:"program" yaml:"program"`
	IsDrum  bool `json:"isDrum,omitempty" yaml:"isdrum,omitempty"`
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] [path ...]\nTokenizes MIDI files into token sequence files, and back.\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	scheme := flag.String("m", "cpword", "Tokenization scheme. Possible values: cpword, mumidi.")
	configFile := flag.String("c", "", "Tokenizer configuration .yml file. Defaults are used when not given.")
	yamlOut := flag.Bool("y", false, "Write the tokens as a .yml file instead of .json.")
	detokenize := flag.Bool("d", false, "Detokenize: inputs are token files, outputs are .mid files.")
	checkOnly := flag.Bool("e", false, "Do not write files; only report vocabulary sizes and grammar error counts.")
	outPath := flag.String("o", "", "Directory or filename where to write the output. By default, next to the input file.")
	versionFlag := flag.Bool("v", false, "Print version.")
	help := flag.Bool("h", false, "Show help.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	if flag.NArg() == 0 || *help {
		flag.Usage()
		os.Exit(0)
	}

	cfg := miditok.NewTokenizerConfig()
	if *configFile != "" {
		var err error
		if cfg, err = miditok.ReadConfig(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	for _, w := range cfg.Warnings() {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}

	output := func(filename, extension string, contents []byte) error {
		_, name := filepath.Split(filename)
		var dir string
		if *outPath != "" {
			if info, err := os.Stat(*outPath); err == nil && info.IsDir() {
				dir = *outPath
			} else {
				outdir, outname := filepath.Split(*outPath)
				if outdir != "" {
					dir = outdir
				}
				if outname != "" {
					name = outname
				}
			}
		} else {
			dir = filepath.Dir(filename)
		}
		name = strings.TrimSuffix(name, filepath.Ext(name)) + extension
		f := filepath.Join(dir, name)
		if dir != "" {
			if err := os.MkdirAll(dir, os.ModePerm); err != nil {
				return fmt.Errorf("could not create output directory %v: %v", dir, err)
			}
		}
		if err := os.WriteFile(f, contents, 0644); err != nil {
			return fmt.Errorf("could not write file %v: %v", f, err)
		}
		return nil
	}

	newTokenizer := func(c miditok.TokenizerConfig) (miditok.Tokenizer, error) {
		switch *scheme {
		case "cpword":
			return miditok.NewCPWord(c)
		case "mumidi":
			return miditok.NewMuMIDI(c)
		}
		return nil, fmt.Errorf("unknown scheme %q", *scheme)
	}

	tokenize := func(filename string) error {
		score, err := gomidi.ReadScore(filename)
		if err != nil {
			return err
		}
		c := cfg
		c.TimeDivision = score.TimeDivision
		tok, err := newTokenizer(c)
		if err != nil {
			return err
		}
		seqs, err := tok.Encode(&score)
		if err != nil {
			return fmt.Errorf("tokenizing %v failed: %v", filename, err)
		}
		if *checkOnly {
			errs := 0
			for _, s := range seqs {
				errs += tok.TokensErrors(s)
			}
			fmt.Printf("%v: %v sequences, vocabulary sizes %v, %v grammar errors\n",
				filename, len(seqs), tok.Vocabulary().Sizes(), errs)
			return nil
		}
		tf := tokenFile{Scheme: *scheme, TimeDivision: score.TimeDivision}
		for _, track := range score.Tracks {
			tf.Programs = append(tf.Programs, programEntry{Program: track.Program, IsDrum: track.IsDrum})
		}
		for _, s := range seqs {
			tf.Sequences = append(tf.Sequences, s.Strings())
		}
		if *yamlOut {
			contents, err := yaml.Marshal(tf)
			if err != nil {
				return fmt.Errorf("could not marshal the tokens as yaml: %v", err)
			}
			return output(filename, ".yml", contents)
		}
		contents, err := json.MarshalIndent(tf, "", " ")
		if err != nil {
			return fmt.Errorf("could not marshal the tokens as json: %v", err)
		}
		return output(filename, ".json", contents)
	}

	detok := func(filename string) error {
		inputBytes, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("could not read file %v: %v", filename, err)
		}
		var tf tokenFile
		if errJSON := json.Unmarshal(inputBytes, &tf); errJSON != nil {
			if errYaml := yaml.Unmarshal(inputBytes, &tf); errYaml != nil {
				return fmt.Errorf("tokens could not be unmarshaled as .json (%v) or .yml (%v)", errJSON, errYaml)
			}
		}
		c := cfg
		if tf.TimeDivision != 0 {
			c.TimeDivision = tf.TimeDivision
		}
		if tf.Scheme != "" {
			*scheme = tf.Scheme
		}
		tok, err := newTokenizer(c)
		if err != nil {
			return err
		}
		seqs := make([]miditok.TokSequence, 0, len(tf.Sequences))
		for i, steps := range tf.Sequences {
			seq, err := miditok.ParseTokSequence(steps)
			if err != nil {
				return fmt.Errorf("sequence %v of %v: %v", i, filename, err)
			}
			seqs = append(seqs, seq)
		}
		programs := make([]miditok.TrackProgram, 0, len(tf.Programs))
		for _, p := range tf.Programs {
			programs = append(programs, miditok.TrackProgram{Program: p.Program, IsDrum: p.IsDrum})
		}
		score := tok.Decode(seqs, programs)
		out := strings.TrimSuffix(filename, filepath.Ext(filename)) + ".mid"
		if *outPath != "" {
			out = *outPath
		}
		return gomidi.WriteScore(score, out)
	}

	retval := 0
	for _, param := range flag.Args() {
		var err error
		if *detokenize {
			err = detok(param)
		} else {
			err = tokenize(param)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			retval = 1
		}
	}
	os.Exit(retval)
}
