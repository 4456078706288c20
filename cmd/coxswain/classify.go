package main

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/coxlabs/coxswain/internal/classify"
	"github.com/coxlabs/coxswain/internal/config"
)

var classifyForce bool

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify the backlog and show the pipeline policy",
	Long: `Run the complexity classifier over the run's backlog and print the
level, score, structural metrics, detected indicators, and the pipeline
policy the run will follow. The result is persisted with the backlog;
reruns reuse it unless --force is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := projectRoot()
		if err != nil {
			return err
		}
		_, st, err := resolveRun(root)
		if err != nil {
			return err
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		classifier := classify.New()
		if cfg.Classify.KeywordsFile != "" {
			weights, err := classify.LoadKeywordWeights(cfg.Classify.KeywordsFile)
			if err != nil {
				return fmt.Errorf("load keyword weights: %w", err)
			}
			classifier = classify.NewWithWeights(weights)
		}

		result, err := classifier.ClassifyAndPersist(st, classifyForce)
		if err != nil {
			return err
		}

		fmt.Printf("level: %s (score %.1f)\n", color.New(color.Bold).Sprint(result.Level), result.Score)
		fmt.Printf("metrics: %d item(s), %d file(s), %d dependency(ies), %d criteria\n",
			result.Metrics.ItemCount, result.Metrics.FileCount,
			result.Metrics.DependencyCount, result.Metrics.CriteriaCount)

		if len(result.Indicators) > 0 {
			keywords := make([]string, 0, len(result.Indicators))
			for kw := range result.Indicators {
				keywords = append(keywords, kw)
			}
			sort.Strings(keywords)
			fmt.Print("indicators:")
			for _, kw := range keywords {
				fmt.Printf(" %s(+%.0f)", kw, result.Indicators[kw])
			}
			fmt.Println()
		}

		policy := result.Recommendation
		fmt.Println("policy:")
		fmt.Printf("  planner: %v\n", policy.UsePlanner)
		fmt.Printf("  qa depth: %s\n", policy.QADepth)
		fmt.Printf("  parallel agents: %v\n", policy.ParallelAgents)
		fmt.Printf("  research phase: %v\n", policy.ResearchPhase)
		fmt.Printf("  self critique: %v\n", policy.SelfCritique)
		return nil
	},
}

func init() {
	classifyCmd.Flags().BoolVar(&classifyForce, "force", false, "Reclassify even if a result is stored")
}
