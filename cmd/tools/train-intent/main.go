// cmd/tools/train-intent/main.go
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"restaurant-receptionist/internal/models"
	"restaurant-receptionist/internal/nlu/classifier"
	"restaurant-receptionist/internal/nlu/features"
	"restaurant-receptionist/pkg/registry"
)

func main() {
	trainCmd := flag.NewFlagSet("train", flag.ExitOnError)
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	// Train command flags
	dataPath := trainCmd.String("data", "data/training/intents.jsonl", "Labeled utterances, one JSON object per line")
	trainRegistry := trainCmd.String("registry", "models/registry.json", "Path to model registry file")
	name := trainCmd.String("name", "intent", "Model name")
	version := trainCmd.String("version", "", "Model version (default: next patch)")
	method := trainCmd.String("features", string(features.MethodBagOfWords), "Feature method (bow, tfidf)")
	ngrams := trainCmd.Int("ngrams", 2, "Maximum n-gram length")
	holdout := trainCmd.Int("holdout", 5, "Send every k-th example to the holdout set (0 disables)")
	minAccuracy := trainCmd.Float64("min-accuracy", 0, "Refuse to register a model below this holdout accuracy")

	// List command flags
	listRegistry := listCmd.String("registry", "models/registry.json", "Path to model registry file")

	// Validate command flags
	validateRegistry := validateCmd.String("registry", "models/registry.json", "Path to model registry file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "train":
		trainCmd.Parse(os.Args[2:])
		err := train(trainOptions{
			dataPath:     *dataPath,
			registryPath: *trainRegistry,
			name:         *name,
			version:      *version,
			method:       features.Method(*method),
			ngrams:       *ngrams,
			holdout:      *holdout,
			minAccuracy:  *minAccuracy,
		})
		if err != nil {
			fmt.Printf("Training failed: %v\n", err)
			os.Exit(1)
		}

	case "list":
		listCmd.Parse(os.Args[2:])
		if err := list(*listRegistry); err != nil {
			fmt.Printf("Error listing models: %v\n", err)
			os.Exit(1)
		}

	case "validate":
		validateCmd.Parse(os.Args[2:])
		if err := validate(*validateRegistry); err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Registry validation passed.")

	case "help":
		fallthrough
	default:
		help()
	}
}

type trainOptions struct {
	dataPath     string
	registryPath string
	name         string
	version      string
	method       features.Method
	ngrams       int
	holdout      int
	minAccuracy  float64
}

func train(opts trainOptions) error {
	examples, err := readExamples(opts.dataPath)
	if err != nil {
		return err
	}

	reg, err := registry.LoadOrCreate(opts.registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if opts.version == "" {
		opts.version = reg.NextPatch(opts.name)
	}

	trainSet, holdoutSet := classifier.Split(examples, opts.holdout)
	featOpts := features.DefaultOptions()
	featOpts.Method = opts.method
	featOpts.NGramMax = opts.ngrams

	model, err := classifier.Train(trainSet, classifier.TrainOptions{
		Name:     opts.name,
		Version:  opts.version,
		Features: featOpts,
	})
	if err != nil {
		return err
	}

	metrics := classifier.Evaluate(model, holdoutSet)
	fmt.Printf("Trained %s %s on %d examples, holdout %d: accuracy %.3f, macro F1 %.3f\n",
		opts.name, opts.version, len(trainSet), metrics.Support, metrics.Accuracy, metrics.MacroF1)
	printPerLabel(metrics)

	if metrics.Support > 0 && metrics.Accuracy < opts.minAccuracy {
		return fmt.Errorf("holdout accuracy %.3f below required %.3f", metrics.Accuracy, opts.minAccuracy)
	}

	artifact := fmt.Sprintf("%s-%s.json", opts.name, opts.version)
	dir := filepath.Dir(opts.registryPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := model.Save(filepath.Join(dir, artifact)); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}

	entry := registry.ModelVersion{
		Version:       opts.version,
		Path:          artifact,
		Algorithm:     classifier.AlgorithmNaiveBayes,
		FeatureMethod: string(opts.method),
	}
	if metrics.Support > 0 {
		entry.Metrics = map[string]float64{"accuracy": metrics.Accuracy, "macro_f1": metrics.MacroF1}
	}
	if err := reg.Register(opts.name, entry); err != nil {
		return err
	}
	if err := reg.Save(opts.registryPath); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}

	fmt.Printf("Registered %s %s -> %s\n", opts.name, opts.version, artifact)
	return nil
}

// readExamples parses JSONL training data. Blank lines and lines starting
// with # are skipped.
func readExamples(path string) ([]classifier.Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open training data: %w", err)
	}
	defer f.Close()

	var examples []classifier.Example
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var ex classifier.Example
		if err := json.Unmarshal([]byte(text), &ex); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		if ex.Text == "" || models.ParseIntent(string(ex.Intent)) != ex.Intent {
			return nil, fmt.Errorf("%s:%d: invalid example", path, line)
		}
		examples = append(examples, ex)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return examples, nil
}

func printPerLabel(m classifier.Metrics) {
	labels := make([]string, 0, len(m.PerLabel))
	for l := range m.PerLabel {
		labels = append(labels, string(l))
	}
	sort.Strings(labels)
	for _, l := range labels {
		fmt.Printf("  %-12s F1 %.3f\n", l, m.PerLabel[models.Intent(l)])
	}
}

func list(path string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	names := make([]string, 0, len(reg.Models))
	for n := range reg.Models {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		latest, _ := reg.Latest(n)
		for _, v := range reg.Models[n] {
			marker := " "
			if v.Version == latest.Version {
				marker = "*"
			}
			fmt.Printf("%s %s %s %s acc=%.3f\n", marker, n, v.Version, v.Path, v.Metrics["accuracy"])
		}
	}
	return nil
}

func validate(path string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if len(reg.Models) == 0 {
		return fmt.Errorf("registry contains no models")
	}

	count := 0
	for name := range reg.Models {
		loader := classifier.NewLoader(path)
		if _, err := loader.LoadLatest(name); err != nil {
			return fmt.Errorf("model %s: %w", name, err)
		}
		count += len(reg.Models[name])
	}

	fmt.Printf("Found %d model versions.\n", count)
	return nil
}

func help() {
	fmt.Print(`
Usage: train-intent <command> [flags]

Commands:
  train     Train an intent classifier and register it
  list      List registered model versions
  validate  Check that the latest version of every model loads
  help      Show this help message

Examples:
  train-intent train -data data/training/intents.jsonl -registry models/registry.json
  train-intent train -features tfidf -min-accuracy 0.8
  train-intent list -registry models/registry.json

Use 'train-intent <command> -h' for more information about a command.
`)
}
