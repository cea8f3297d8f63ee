package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL   string
	dataroomID  string
	documentIDs []string
	strategy    string
	sessionID   string
	timeoutMs   int
	showSources bool
)

func main() {
	root := &cobra.Command{
		Use:   "ragctl",
		Short: "Query a dataroom-rag server from the command line",
	}
	root.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:9020", "base URL of the dataroom-rag server")

	askCmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question and stream the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk,
	}
	askCmd.Flags().StringVar(&dataroomID, "dataroom", "", "dataroom id (required)")
	askCmd.Flags().StringSliceVar(&documentIDs, "documents", nil, "restrict to these document ids")
	askCmd.Flags().StringVar(&strategy, "strategy", "", "search strategy (fast_vector_search, standard_vector_search, expanded_search, page_query)")
	askCmd.Flags().StringVar(&sessionID, "session", "", "chat session id for multi-turn context")
	askCmd.Flags().IntVar(&timeoutMs, "timeout-ms", 0, "pipeline timeout override in milliseconds")
	askCmd.Flags().BoolVar(&showSources, "sources", false, "print cited sources after the answer")
	_ = askCmd.MarkFlagRequired("dataroom")

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE:  runHealth,
	}

	root.AddCommand(askCmd, healthCmd)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runHealth(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(serverURL + "/v1/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server unhealthy: %s", resp.Status)
	}
	fmt.Println("ok")
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	payload := map[string]any{
		"query":       strings.Join(args, " "),
		"dataroom_id": dataroomID,
	}
	if len(documentIDs) > 0 {
		payload["document_ids"] = documentIDs
	}
	if strategy != "" {
		payload["strategy"] = strategy
	}
	if sessionID != "" {
		payload["chat_session_id"] = sessionID
	}
	if timeoutMs > 0 {
		payload["timeout_ms"] = timeoutMs
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, serverURL+"/v1/query", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("request failed: %s", resp.Status)
	}

	return streamAnswer(resp)
}

type sseSource struct {
	Title   string  `json:"title"`
	Page    int     `json:"page"`
	Score   float32 `json:"score"`
	Excerpt string  `json:"excerpt"`
}

func streamAnswer(resp *http.Response) error {
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventName string
	var sources []sseSource

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			eventName = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data := strings.TrimPrefix(line, "data: ")
			switch eventName {
			case "meta":
				var meta struct {
					Strategy string      `json:"strategy"`
					Sources  []sseSource `json:"sources"`
				}
				if err := json.Unmarshal([]byte(data), &meta); err == nil {
					sources = meta.Sources
				}
			case "delta":
				var delta struct {
					Text string `json:"text"`
				}
				if err := json.Unmarshal([]byte(data), &delta); err == nil {
					fmt.Print(delta.Text)
				}
			case "fallback":
				var fb struct {
					Reason string `json:"reason"`
				}
				if err := json.Unmarshal([]byte(data), &fb); err == nil {
					fmt.Fprintf(os.Stderr, "(degraded: %s)\n", fb.Reason)
				}
			case "done":
				fmt.Println()
				if showSources {
					printSources(sources)
				}
				return nil
			case "error":
				var apiErr struct {
					Kind    string `json:"kind"`
					Message string `json:"message"`
				}
				if err := json.Unmarshal([]byte(data), &apiErr); err == nil {
					return fmt.Errorf("%s: %s", apiErr.Kind, apiErr.Message)
				}
				return fmt.Errorf("stream error: %s", data)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream interrupted: %w", err)
	}
	return nil
}

func printSources(sources []sseSource) {
	if len(sources) == 0 {
		return
	}
	fmt.Println("\nSources:")
	for i, src := range sources {
		if src.Page > 0 {
			fmt.Printf("  [%d] %s, p.%d (%.2f)\n", i+1, src.Title, src.Page, src.Score)
		} else {
			fmt.Printf("  [%d] %s (%.2f)\n", i+1, src.Title, src.Score)
		}
	}
}
