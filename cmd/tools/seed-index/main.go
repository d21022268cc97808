// cmd/tools/seed-index/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"restaurant-receptionist/internal/common/config"
	"restaurant-receptionist/internal/common/database"
	"restaurant-receptionist/internal/common/logger"
	"restaurant-receptionist/internal/facts"
	"restaurant-receptionist/internal/retrieval"
)

func main() {
	configPath := flag.String("config", "", "Config file (default: layered configs/config.yaml)")
	dataPath := flag.String("data", "", "Business data file (default: business.data_path)")
	index := flag.String("index", "", "Index name (default: database.elasticsearch.index)")
	dryRun := flag.Bool("dry-run", false, "Print passages instead of indexing them")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *dataPath == "" {
		*dataPath = cfg.Business.DataPath
	}
	if *index == "" {
		*index = cfg.Database.Elasticsearch.Index
	}

	data, err := facts.LoadFile(*dataPath)
	if err != nil {
		fmt.Printf("Error loading business data: %v\n", err)
		os.Exit(1)
	}
	passages := retrieval.Chunk(facts.NewSnapshot(*data))

	if *dryRun {
		for _, p := range passages {
			fmt.Printf("%-24s %s\n", p.ID, p.Text)
		}
		return
	}

	es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	if err != nil {
		fmt.Printf("Error creating elasticsearch client: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := es.Ping(ctx); err != nil {
		fmt.Printf("Error reaching elasticsearch: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewStructured(cfg.Logging.Level, "console")
	if err := retrieval.NewElasticIndex(es.Client, *index, log).Seed(ctx, passages); err != nil {
		fmt.Printf("Error seeding index: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Indexed %d passages into %s\n", len(passages), *index)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}
