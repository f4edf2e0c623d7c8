package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridq/internal/app"
	"github.com/kailas-cloud/hybridq/internal/config"
	"github.com/kailas-cloud/hybridq/internal/domain"
	logpkg "github.com/kailas-cloud/hybridq/internal/logger"
	chiTransport "github.com/kailas-cloud/hybridq/internal/transport/chi"
	compileuc "github.com/kailas-cloud/hybridq/internal/usecase/compile"
	"github.com/kailas-cloud/hybridq/internal/version"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(out io.Writer) *cli.App {
	configFlag := &cli.StringFlag{
		Name:     "config",
		Aliases:  []string{"c"},
		Usage:    "Path to the hybridq YAML config",
		Required: true,
	}

	return &cli.App{
		Name:    "hybridqctl",
		Usage:   "Compile hybrid search queries offline",
		Version: version.String(),
		Writer:  out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "compile",
				Usage:     "Compile a request JSON into engine queries",
				ArgsUsage: "[request.json]",
				Action:    compileCommand,
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:    "request",
						Aliases: []string{"r"},
						Usage:   "Path to the request JSON (\"-\" reads stdin)",
						Value:   "-",
					},
					&cli.BoolFlag{
						Name:  "score-breakdown",
						Usage: "Attach the score breakdown to every query",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Indent the output",
					},
				},
			},
			{
				Name:   "mapping",
				Usage:  "Print the index mapping of the configured schema",
				Action: mappingCommand,
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:  "index",
						Usage: "Index name (defaults to schema.index_name)",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Indent the output",
					},
				},
			},
		},
	}
}

func loadConfig(c *cli.Context) (config.Config, *zap.Logger, error) {
	cfg, err := config.LoadFile(c.String("config"))
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logpkg.NewLogger("cli", c.String("log-level"))
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, logger, nil
}

func compileCommand(c *cli.Context) error {
	cfg, logger, err := loadConfig(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	var in io.Reader = c.App.Reader
	if in == nil {
		in = os.Stdin
	}
	if path := c.String("request"); path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open request: %w", err)
		}
		defer f.Close()
		in = f
	}

	var body chiTransport.CompileRequest
	dec := json.NewDecoder(in)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	req, err := body.ToDomain(c.Bool("score-breakdown"))
	if err != nil {
		return err
	}

	ctx := logpkg.ContextWithLogger(context.Background(), logger)
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, usage := domain.NewContextWithUsage(ctx)
	compiled, err := a.Compiler.Compile(ctx, &req)
	if err != nil {
		return err
	}
	if usage.Used() {
		logger.Info("Query encoding used tokens", zap.Int("tokens", usage.TotalTokens()))
	}

	return write(c, chiTransport.NewCompileResponse(compiled))
}

func mappingCommand(c *cli.Context) error {
	cfg, logger, err := loadConfig(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	set, err := cfg.Schema.MappingSet()
	if err != nil {
		return err
	}
	compiler, err := compileuc.New(set, cfg.Query.CompileOptions(), nil)
	if err != nil {
		return err
	}

	name := cfg.Schema.IndexName
	if idx := c.String("index"); idx != "" {
		name = idx
	}
	def, err := compiler.IndexMapping(name, cfg.Schema.CompileTags())
	if err != nil {
		return err
	}
	return write(c, chiTransport.MappingResponse{Index: def.Name, Body: def.Body()})
}

func write(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	if c.Bool("pretty") {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
