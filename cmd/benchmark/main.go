package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/samber/lo"
	flag "github.com/spf13/pflag"
)

type modelInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

type correctRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

type scores struct {
	BLEU   float64 `json:"bleu"`
	ROUGE1 float64 `json:"rouge_1"`
	ROUGE2 float64 `json:"rouge_2"`
	ROUGEL float64 `json:"rouge_l"`
}

type correctResponse struct {
	ID        string `json:"id"`
	Corrected string `json:"corrected"`
	Model     string `json:"model"`
	ElapsedMs int64  `json:"elapsed_ms"`
	Scores    scores `json:"scores"`
}

type result struct {
	Sample    string  `json:"sample"`
	Chars     int     `json:"chars"`
	Model     string  `json:"model"`
	Run       int     `json:"run"`
	ElapsedMs int64   `json:"elapsed_ms"`
	WallMs    int64   `json:"wall_ms"`
	OutChars  int     `json:"out_chars"`
	Corrected string  `json:"corrected,omitempty"`
	Scores    *scores `json:"scores,omitempty"`
	Error     string  `json:"error,omitempty"`
}

func main() {
	url := flag.String("url", "http://localhost:8090", "API base URL")
	apiKey := flag.String("api-key", "", "API key (optional)")
	runs := flag.IntP("runs", "n", 3, "Number of runs per sample")
	model := flag.StringP("model", "m", "", "Model ID to use (default: first available)")
	quality := flag.Bool("quality", false, "Quality mode: show input, correction and scores for each sample (1 run, no timing table)")
	jsonOut := flag.String("json", "", "Write results to JSON file (e.g. results.json)")
	warmup := flag.Bool("warmup", false, "Run one warmup request per sample before measuring")
	flag.Parse()

	baseURL := strings.TrimRight(*url, "/")
	client := &http.Client{Timeout: 180 * time.Second}

	// Discover models
	modelID := *model
	if modelID == "" {
		modelID = discoverModel(client, baseURL, *apiKey)
	}

	if *quality {
		runQualityMode(client, baseURL, *apiKey, modelID)
		return
	}

	fmt.Printf("Benchmarking against %s using model: %s (%d runs per sample", baseURL, modelID, *runs)
	if *warmup {
		fmt.Print(", warmup enabled")
	}
	fmt.Println(")")

	// Run benchmarks
	var results []result
	var failures int
	for _, sample := range Samples {
		if *warmup {
			fmt.Printf("  Warming up %s...", sample.Name)
			w := benchmark(client, baseURL, *apiKey, modelID, sample, 0)
			if w.Error != "" {
				fmt.Printf(" FAILED (%s)\n", w.Error)
			} else {
				fmt.Printf(" %dms (discarded)\n", w.ElapsedMs)
			}
		}
		for run := 1; run <= *runs; run++ {
			fmt.Printf("  Running %s (run %d/%d)...", sample.Name, run, *runs)
			r := benchmark(client, baseURL, *apiKey, modelID, sample, run)
			results = append(results, r)
			if r.Error != "" {
				fmt.Printf(" FAILED (%s)\n", r.Error)
				failures++
			} else {
				fmt.Printf(" %dms\n", r.ElapsedMs)
			}
		}
	}

	// Print results table
	fmt.Println()
	printTable(results)
	printSummary(results)

	// Write JSON output
	if *jsonOut != "" {
		if err := writeJSON(*jsonOut, results, baseURL, modelID); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing JSON: %v\n", err)
		} else {
			fmt.Printf("\nResults written to %s\n", *jsonOut)
		}
	}

	if failures > 0 {
		os.Exit(1)
	}
}

func discoverModel(client *http.Client, baseURL, apiKey string) string {
	req, err := http.NewRequest("GET", baseURL+"/api/models", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating request: %v\n", err)
		os.Exit(1)
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error fetching models: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Models endpoint returned %d: %s\n", resp.StatusCode, body)
		os.Exit(1)
	}

	var models []modelInfo
	if err := json.NewDecoder(resp.Body).Decode(&models); err != nil {
		fmt.Fprintf(os.Stderr, "Error decoding models: %v\n", err)
		os.Exit(1)
	}

	if len(models) == 0 {
		fmt.Fprintln(os.Stderr, "No models available")
		os.Exit(1)
	}

	return models[0].ID
}

func benchmark(client *http.Client, baseURL, apiKey, modelID string, sample Sample, run int) result {
	fail := func(err string) result {
		return result{Sample: sample.Name, Chars: len(sample.Text), Run: run, Error: err}
	}

	start := time.Now()
	cr, err := correct(client, baseURL, apiKey, modelID, sample.Text)
	wallMs := time.Since(start).Milliseconds()
	if err != nil {
		return fail(err.Error())
	}

	return result{
		Sample:    sample.Name,
		Chars:     len(sample.Text),
		Model:     cr.Model,
		Run:       run,
		ElapsedMs: cr.ElapsedMs,
		WallMs:    wallMs,
		OutChars:  len(cr.Corrected),
		Corrected: cr.Corrected,
		Scores:    &cr.Scores,
	}
}

func correct(client *http.Client, baseURL, apiKey, modelID, text string) (correctResponse, error) {
	payload, _ := json.Marshal(correctRequest{Text: text, ModelID: modelID})

	req, err := http.NewRequest("POST", baseURL+"/api/correct", strings.NewReader(string(payload)))
	if err != nil {
		return correctResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return correctResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return correctResponse{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var cr correctResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return correctResponse{}, err
	}
	return cr, nil
}

func printTable(results []result) {
	fmt.Println("| Sample | Chars | Model | Run | Elapsed (ms) | Wall (ms) | Out Chars | BLEU | ROUGE-L |")
	fmt.Println("|--------|-------|-------|-----|--------------|-----------|-----------|------|---------|")
	for _, r := range results {
		if r.Error != "" {
			fmt.Printf("| %-15s | %5d | %-20s | %d | %12s | %9s | %9s | %6s | %7s |\n",
				r.Sample, r.Chars, "-", r.Run, "FAIL", "-", "-", "-", "-")
			continue
		}
		fmt.Printf("| %-15s | %5d | %-20s | %d | %12d | %9d | %9d | %.4f | %.4f |\n",
			r.Sample, r.Chars, r.Model, r.Run, r.ElapsedMs, r.WallMs, r.OutChars, r.Scores.BLEU, r.Scores.ROUGEL)
	}
}

func runQualityMode(client *http.Client, baseURL, apiKey, modelID string) {
	fmt.Printf("Quality test against %s using model: %s\n", baseURL, modelID)
	fmt.Println(strings.Repeat("=", 72))

	var failures int
	for i, sample := range QualitySamples {
		fmt.Printf("\n--- %d/%d: %s (%d chars) ---\n", i+1, len(QualitySamples), sample.Name, len(sample.Text))
		fmt.Printf("IN:  %s\n", sample.Text)

		cr, err := correct(client, baseURL, apiKey, modelID, sample.Text)
		if err != nil {
			fmt.Printf("ERR: %s\n", err)
			failures++
			continue
		}

		fmt.Printf("OUT: %s\n", cr.Corrected)
		fmt.Printf("     [%dms, %d->%d chars]\n", cr.ElapsedMs, len(sample.Text), len(cr.Corrected))
		printScores(cr.Scores)
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 72))
	fmt.Printf("Done: %d/%d passed\n", len(QualitySamples)-failures, len(QualitySamples))
	if failures > 0 {
		os.Exit(1)
	}
}

func printScores(s scores) {
	fmt.Printf("     BLEU Score:    %.4f\n", s.BLEU)
	fmt.Printf("     ROUGE-1 Score: %.4f\n", s.ROUGE1)
	fmt.Printf("     ROUGE-2 Score: %.4f\n", s.ROUGE2)
	fmt.Printf("     ROUGE-L Score: %.4f\n", s.ROUGEL)
}

func printSummary(results []result) {
	ok := lo.Filter(results, func(r result, _ int) bool { return r.Error == "" })

	failed := len(results) - len(ok)

	if len(ok) == 0 {
		fmt.Printf("\nSummary: all %d runs failed\n", len(results))
		return
	}

	var totalElapsed int64
	var totalChars int
	minElapsed := ok[0].ElapsedMs
	maxElapsed := ok[0].ElapsedMs
	minSample := ok[0].Sample
	maxSample := ok[0].Sample

	for _, r := range ok {
		totalElapsed += r.ElapsedMs
		totalChars += r.Chars
		if r.ElapsedMs < minElapsed {
			minElapsed = r.ElapsedMs
			minSample = r.Sample
		}
		if r.ElapsedMs > maxElapsed {
			maxElapsed = r.ElapsedMs
			maxSample = r.Sample
		}
	}

	avgMsPerChar := float64(totalElapsed) / float64(totalChars)
	n := float64(len(ok))
	meanBLEU := lo.SumBy(ok, func(r result) float64 { return r.Scores.BLEU }) / n
	meanRougeL := lo.SumBy(ok, func(r result) float64 { return r.Scores.ROUGEL }) / n

	fmt.Printf("\nSummary:\n")
	fmt.Printf("- Avg ms/char: %.2f\n", avgMsPerChar)
	fmt.Printf("- Mean BLEU: %.4f, mean ROUGE-L: %.4f\n", meanBLEU, meanRougeL)
	fmt.Printf("- Min elapsed: %dms (%s)\n", minElapsed, minSample)
	fmt.Printf("- Max elapsed: %dms (%s)\n", maxElapsed, maxSample)
	fmt.Printf("- Total runs: %d (%d ok, %d failed)\n", len(results), len(ok), failed)
}

type jsonReport struct {
	Timestamp string   `json:"timestamp"`
	URL       string   `json:"url"`
	Model     string   `json:"model"`
	Results   []result `json:"results"`
}

func writeJSON(path string, results []result, baseURL, modelID string) error {
	report := jsonReport{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		URL:       baseURL,
		Model:     modelID,
		Results:   results,
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
