// generate_config renders the Fluent Bit configuration for a relation
// payload without touching the installed service.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/omnivector-solutions/charm-fluentbit/confgenerator/fluentbit"
	"github.com/omnivector-solutions/charm-fluentbit/internal/config"
	"github.com/omnivector-solutions/charm-fluentbit/relation"
)

var (
	input      = flag.String("in", "", "path to a configuration payload (JSON or YAML list of entries); empty renders no entries")
	outDir     = flag.String("out", ".", "directory to write configuration files to")
	configFile = flag.String("config", "", "path to the charm config; defaults apply when empty")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load(*configFile, "")
	if err != nil {
		return err
	}
	var payload []byte
	if *input != "" {
		if payload, err = os.ReadFile(*input); err != nil {
			return err
		}
	}
	entries, err := relation.Decode(string(payload))
	if err != nil {
		return fmt.Errorf("can't parse configuration: %w", err)
	}
	rc, unrecognized := fluentbit.Classify(entries)
	for _, e := range unrecognized {
		log.Printf("ignoring configuration entry of unknown kind %q", e.Kind)
	}
	r := fluentbit.Renderer{
		MainPath:   cfg.Files.MainConfig,
		ParserPath: cfg.Files.ParserConfig,
		Service: fluentbit.Service{
			Flush:        cfg.Service.Flush,
			LogLevel:     cfg.Service.LogLevel,
			ParsersFiles: cfg.Service.ParsersFiles,
		},
	}
	mainConfig, parserConfig, err := r.Generate(rc)
	if err != nil {
		return err
	}
	for name, content := range map[string]string{
		filepath.Base(cfg.Files.MainConfig):   mainConfig,
		filepath.Base(cfg.Files.ParserConfig): parserConfig,
	} {
		path := filepath.Join(*outDir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return fmt.Errorf("can't write %q: %w", path, err)
		}
	}
	return nil
}
