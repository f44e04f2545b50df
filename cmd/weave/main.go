// Command weave runs the whole pipeline over a local .txt file: split and
// embed, extract characters and optionally write a story about them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	_ "github.com/joho/godotenv/autoload"

	"taleweaver/pkg/app"
	"taleweaver/pkg/config"
	"taleweaver/pkg/diff"
	"taleweaver/pkg/entities"
	"taleweaver/pkg/index"
	"taleweaver/pkg/pipeline"
	"taleweaver/pkg/utils"
	"taleweaver/pkg/workflow"
)

var heading = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))

func main() {
	var (
		configPath   = flag.String("config", os.Getenv("TALEWEAVER_CONFIG"), "path to a YAML config file")
		chunkSize    = flag.Int("chunk-size", index.DefaultChunkSize, "split window size in tokens")
		chunkOverlap = flag.Int("chunk-overlap", index.DefaultChunkOverlap, "tokens shared by consecutive windows")
		temperature  = flag.Float64("temperature", 0, "sampling temperature (0 = stage default)")
		topP         = flag.Float64("top-p", 0, "nucleus sampling (0 = stage default)")
		withStory    = flag.Bool("story", false, "generate a story from the extracted characters")
		out          = flag.String("out", "", "write the results as JSON to this file")
		from         = flag.String("from", "", "skip extraction and write a story from a saved -out file")
		compare      = flag.String("compare", "", "show how the characters changed since a saved -out file")
		passages     = flag.Int("passages", 0, "show the n passages most similar to each character")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: weave [flags] <file.txt>\n       weave -from results.json [flags]\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	ctx, done := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer done()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("failed to load config", "error", err)
	}
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal("failed to initialize", "error", err)
	}
	params := entities.DecodingParams{Temperature: *temperature, TopP: *topP}

	if *from != "" {
		if err := storyFrom(ctx, a, *from, params, *out); err != nil {
			log.Fatal("story generation failed", "error", err)
		}
		return
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)
	if !strings.EqualFold(filepath.Ext(path), ".txt") {
		log.Fatal("only .txt files are supported", "file", path)
	}
	text, err := os.ReadFile(path)
	if err != nil {
		log.Fatal("failed to read input", "error", err)
	}

	if err := run(ctx, a, string(text), *chunkSize, *chunkOverlap, params, *withStory, *out, *compare, *passages); err != nil {
		log.Fatal("weave failed", "error", err)
	}
}

func run(ctx context.Context, a *app.App, text string, size, overlap int, params entities.DecodingParams, withStory bool, out, compare string, passages int) error {
	session := workflow.NewSession(a.Builder, a.Extractor, a.Storyteller)
	if err := session.SetText(text); err != nil {
		return err
	}
	if err := session.SetChunkSettings(size, overlap); err != nil {
		return err
	}

	indexID, err := session.BuildIndex(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Store.Delete(indexID); err != nil {
			log.Warn("failed to release index", "index", indexID, "error", err)
		}
	}()
	nodes, err := a.Store.Nodes(ctx, indexID)
	if err != nil {
		return err
	}
	log.Info("index built", "index", indexID, "nodes", len(nodes))

	bar := utils.NewProgress()
	bar.Start(a.Extractor.Chunks(pipeline.JoinNodes(nodes)), "extracting characters")
	a.Analyzer.Progress = bar.Increment
	res, err := session.Extract(ctx, params)
	bar.Finish()
	a.Analyzer.Progress = nil
	if err != nil {
		return err
	}

	fmt.Println(heading.Render("Characters"))
	fmt.Println(entities.MarkdownTable(res.Characters))
	if len(res.FailedChunks) > 0 {
		log.Warn("some chunks failed", "chunks", res.FailedChunks)
	}
	if passages > 0 {
		if err := showPassages(ctx, a, indexID, res.Characters, passages); err != nil {
			return err
		}
	}
	if compare != "" {
		prev, err := utils.Load[workflow.Snapshot](compare)
		if err != nil {
			return fmt.Errorf("load %s: %w", compare, err)
		}
		changes := diff.Characters(prev.Characters, res.Characters)
		fmt.Println(heading.Render("Changes since " + filepath.Base(compare)))
		if diff.Changed(changes) {
			diff.Print(os.Stdout, changes)
		} else {
			fmt.Println("  no changes")
		}
	}

	if withStory && session.StoryAvailable() {
		story, err := session.GenerateStory(ctx, params)
		if err != nil {
			return err
		}
		fmt.Println()
		fmt.Println(heading.Render("Story"))
		fmt.Println(story)
	}

	if out != "" {
		if err := utils.Save(out, session.Snapshot()); err != nil {
			return fmt.Errorf("save %s: %w", out, err)
		}
		log.Info("results saved", "file", out)
	}
	return nil
}

// showPassages prints, for each character, the indexed passages closest to
// its name and description.
func showPassages(ctx context.Context, a *app.App, indexID string, characters []entities.Character, n int) error {
	fmt.Println(heading.Render("Passages"))
	for _, c := range characters {
		query, err := a.Embedder.Embed(ctx, c.Name+": "+c.Description)
		if err != nil {
			return fmt.Errorf("embed %s: %w", c.Name, err)
		}
		matches, err := a.Store.Query(ctx, indexID, query, n)
		if err != nil {
			return err
		}
		fmt.Printf("  %s\n", c.Name)
		for _, m := range matches {
			fmt.Printf("    %.2f  %s\n", m.Similarity, utils.LimitStr(strings.Join(strings.Fields(m.Node.Text), " "), 120))
		}
	}
	return nil
}

func storyFrom(ctx context.Context, a *app.App, path string, params entities.DecodingParams, out string) error {
	snap, err := utils.Load[workflow.Snapshot](path)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	if snap.Characters == nil {
		return errors.New(path + " holds no characters")
	}

	story, err := a.Storyteller.Generate(ctx, snap.Characters, params)
	if err != nil {
		return err
	}
	fmt.Println(heading.Render("Story"))
	fmt.Println(story)

	if out != "" {
		snap.Story = story
		snap.State = workflow.Done.String()
		return utils.Save(out, snap)
	}
	return nil
}
