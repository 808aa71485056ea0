// Package main provides a performance benchmarking tool for the Coronacaster CLI.
// It measures execution times of the forecasting commands with and without the
// dataset cache, running each test multiple times, treating the first successful
// run as cold and averaging the rest as warm, generating CSV output for analysis.
//
// Prerequisites:
// - coronacaster binary installed and available in PATH
// - Network access to the default source, or a local CSV passed as argument
//
// Usage: go run benchmark/main.go [source]
//
//	source: Optional HTTP(S) URL or CSV path of case data
package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// BenchmarkResult holds the result of a benchmark run (no-cache average, cold run and average of warm runs).
type BenchmarkResult struct {
	Scenario    string
	Command     string
	NoCacheTime string
	ColdTime    string
	WarmTime    string
}

// BenchmarkScenario is one command line to time.
type BenchmarkScenario struct {
	Name    string
	Command string
	Args    []string
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	Source      string
	Timeout     time.Duration
	Workers     int
	NoCacheRuns int
	CacheRuns   int
	Scenarios   []BenchmarkScenario
}

func main() {
	if len(os.Args) > 2 {
		fmt.Printf("Usage: %s [source]\n", os.Args[0])
		os.Exit(1)
	}
	source := ""
	if len(os.Args) == 2 {
		source = os.Args[1]
	}

	config := BenchmarkConfig{
		Source:      source,
		Timeout:     10 * time.Minute,
		Workers:     8,
		NoCacheRuns: 3,
		CacheRuns:   4,
		Scenarios: []BenchmarkScenario{
			{Name: "italy-series", Command: "series", Args: []string{"--country", "Italy"}},
			{Name: "italy-poly2", Command: "forecast", Args: []string{"--country", "Italy", "--model", "poly2", "--target", "+7"}},
			{Name: "italy-logis", Command: "forecast", Args: []string{"--country", "Italy", "--model", "logis", "--target", "+7"}},
			{Name: "world-exp", Command: "forecast", Args: []string{"--country", "World", "--model", "exp", "--target", "+7"}},
			{Name: "g7-experiment", Command: "experiment", Args: []string{
				"--countries", "Canada,France,Germany,Italy,Japan,United_Kingdom,United_States_of_America",
				"--models", "poly2,exp,logis", "--target", "+7",
			}},
		},
	}

	if err := checkPrerequisites(); err != nil {
		fmt.Printf("Prerequisites check failed: %v\n", err)
		os.Exit(1)
	}

	// Clear the cache using coronacaster cache clear
	fmt.Printf("Clearing cache...\n")
	clearCmd := exec.Command("coronacaster", "cache", "clear")
	if output, err := clearCmd.CombinedOutput(); err != nil {
		fmt.Printf("Warning: failed to clear cache: %v\nOutput: %s\n", err, string(output))
	} else {
		fmt.Printf("Cache cleared successfully\n")
	}

	results := runBenchmarks(config)

	if err := saveResults(results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}

	printSummary(results)
}

// checkPrerequisites verifies that the coronacaster binary exists
func checkPrerequisites() error {
	if _, err := exec.LookPath("coronacaster"); err != nil {
		return fmt.Errorf("coronacaster binary not found in PATH")
	}
	return nil
}

// runBenchmarks executes every scenario with and without the cache
func runBenchmarks(config BenchmarkConfig) []BenchmarkResult {
	var results []BenchmarkResult

	fmt.Printf("Starting benchmark: %d scenarios, %v timeout, %d workers, no-cache: %d runs, cache: %d runs\n",
		len(config.Scenarios), config.Timeout, config.Workers, config.NoCacheRuns, config.CacheRuns)

	for _, scenario := range config.Scenarios {
		results = append(results, runBenchmarkSuite(config, scenario))
	}
	return results
}

// runBenchmarkSuite runs both no-cache and cache benchmarks for a scenario
func runBenchmarkSuite(config BenchmarkConfig, scenario BenchmarkScenario) BenchmarkResult {
	fmt.Printf("Running %s (%s)\n", scenario.Name, scenario.Command)

	// Helper to run a benchmark phase
	runPhase := func(cacheBackend string, numRuns int, phaseName string) (coldTime float64, avgTime string) {
		fmt.Printf("  %s phase (%d runs)\n", phaseName, numRuns)
		cold, times := runBenchmark(config, scenario, cacheBackend, numRuns)
		if len(times) == 0 {
			avgTime = "TIMEOUT"
		} else {
			var sum float64
			for _, t := range times {
				sum += t
			}
			avg := sum / float64(len(times))
			avgTime = fmt.Sprintf("%.3fs", avg)
		}
		return cold, avgTime
	}

	// Phase 1: No-cache runs
	_, noCacheAvg := runPhase("none", config.NoCacheRuns, "No-cache")

	// Phase 2: Cache runs
	coldTime, warmAvg := runPhase("sqlite", config.CacheRuns, "Cache")

	coldTimeStr := "TIMEOUT"
	if coldTime > 0 {
		coldTimeStr = fmt.Sprintf("%.3fs", coldTime)
	}

	fmt.Printf("  No-cache average: %s, Cold time: %s, Warm average: %s\n", noCacheAvg, coldTimeStr, warmAvg)

	return BenchmarkResult{
		Scenario:    scenario.Name,
		Command:     scenario.Command,
		NoCacheTime: noCacheAvg,
		ColdTime:    coldTimeStr,
		WarmTime:    warmAvg,
	}
}

// runBenchmark executes a scenario multiple times with the given cache backend and returns cold time and warm times
func runBenchmark(config BenchmarkConfig, scenario BenchmarkScenario, cacheBackend string, numRuns int) (coldTime float64, warmTimes []float64) {
	args := []string{scenario.Command, "--cache-backend", cacheBackend, "--workers", fmt.Sprint(config.Workers)}
	if config.Source != "" {
		args = append(args, "--source", config.Source)
	}
	args = append(args, scenario.Args...)

	var times []float64
	for run := 1; run <= numRuns; run++ {
		start := time.Now()

		cmd := exec.Command("coronacaster", args...)

		done := make(chan bool)
		var output []byte
		var cmdErr error

		go func() {
			output, cmdErr = cmd.CombinedOutput()
			done <- true
		}()

		select {
		case <-done:
			if cmdErr == nil && isSuccess(output) {
				times = append(times, time.Since(start).Seconds())
			}
		case <-time.After(config.Timeout):
			_ = cmd.Process.Kill()
			<-done
		}
	}

	if len(times) > 0 {
		coldTime = times[0]
		warmTimes = times[1:]
	}
	return
}

// isSuccess checks if command output carries the completion footer
func isSuccess(output []byte) bool {
	outputStr := string(output)
	return strings.Contains(outputStr, "completed in") &&
		strings.Contains(outputStr, "workers")
}

// saveResults writes benchmark results to a timestamped CSV file
func saveResults(results []BenchmarkResult) error {
	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("/tmp/coronacaster_benchmark_%s.csv", timestamp)

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close file %s: %v\n", filename, closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	if err := writer.Write([]string{"scenario", "cmd", "no_cache_avg", "cold_time", "warm_avg"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	// Write results
	for _, result := range results {
		if err := writer.Write([]string{result.Scenario, result.Command, result.NoCacheTime, result.ColdTime, result.WarmTime}); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

// printSummary displays the final benchmark results summary
func printSummary(results []BenchmarkResult) {
	fmt.Printf("Benchmark complete\n")

	printCommandSummary(results, "series", "Series:")
	printCommandSummary(results, "forecast", "Forecast:")
	printCommandSummary(results, "experiment", "Experiment:")

	fmt.Printf("Benchmark script completed successfully\n")
}

// printCommandSummary displays results for a specific command type
func printCommandSummary(results []BenchmarkResult, command, title string) {
	fmt.Printf("%s\n", title)
	for _, result := range results {
		if result.Command == command {
			fmt.Printf("  %-14s: No-cache: %s, Cold: %s, Warm: %s\n", result.Scenario, result.NoCacheTime, result.ColdTime, result.WarmTime)
		}
	}
}
