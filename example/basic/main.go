package main

import (
	"context"
	"fmt"
	"log"

	"github.com/siherrmann/reportrag"
	"github.com/siherrmann/reportrag/core/pipeline"
	"github.com/siherrmann/reportrag/helper"
	"github.com/siherrmann/reportrag/model"
)

const henanReport = `2024年河南省政府工作报告

过去一年，全省生产总值增长4.1%，粮食总产量稳定在1300亿斤以上。
规模以上工业增加值增长5.0%，新能源汽车产量翻番。

今年主要目标是：生产总值增长5.5%左右，城镇新增就业110万人以上。
我们将坚持把制造业高质量发展作为主攻方向，加快建设现代化产业体系。`

const guangdongReport = `2024年广东省政府工作报告

过去一年，全省地区生产总值突破13万亿元，增长4.8%。
外贸进出口总额8.3万亿元，新能源汽车、锂电池、光伏产品出口快速增长。

今年主要预期目标是：地区生产总值增长5%左右，研发经费支出占比提高到3.5%左右。
我们将坚持制造业当家，推动产业科技互促双强。`

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	service, err := reportrag.NewWithPostgres(dbConfig, pipeline.DefaultEmbeddingDim, model.DefaultConfig(), nil)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	// Size chunking plus the multilingual embedding model
	if err := service.UseDefaultPipeline(); err != nil {
		log.Fatalf("Failed to set up pipeline: %v", err)
	}

	ctx := context.Background()
	reports := []*model.Document{
		{Title: "2024年河南省政府工作报告", Source: "basic_example", Region: model.RegionHenan, Content: henanReport},
		{Title: "2024年广东省政府工作报告", Source: "basic_example", Content: guangdongReport},
	}
	fmt.Println("Ingesting reports...")
	for _, doc := range reports {
		numChunks, err := service.IngestDocument(ctx, doc)
		if err != nil {
			log.Fatalf("Failed to ingest %s: %v", doc.Title, err)
		}
		fmt.Printf("%s (%s): %d chunks\n", doc.Title, doc.Region, numChunks)
	}

	queries := []string{
		"河南省今年的经济增长目标是多少？",
		"对比河南和广东的制造业发展",
	}
	for _, query := range queries {
		fmt.Printf("\nQuerying: %s\n", query)
		response, err := service.Query(ctx, model.QueryRequest{Query: query})
		if err != nil {
			log.Fatalf("Failed to query: %v", err)
		}

		d := response.Diagnostics
		fmt.Printf("Intent: %s %v, budget: %d, fairness: %s\n", d.Intent.Kind, d.Intent.Regions, d.Plan.MaxTotalChars, d.Plan.FairnessMode)
		fmt.Printf("Selected %d of %d candidates, %d characters\n", response.Result.SelectedCount, response.Result.CandidateCount, response.Result.TotalChars)
		for _, w := range d.Warnings {
			fmt.Printf("Warning: %s\n", w)
		}
		fmt.Printf("\n%s\n", response.Context)
	}

	fmt.Println("\nBasic example completed successfully!")
}
