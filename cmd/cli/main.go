package main

import (
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"

	"shellpipe/internal/config"
	"shellpipe/internal/server"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  cli submit <pipeline.yaml>")
	fmt.Println("  cli get <run-id>")
	fmt.Println("  cli verify")
	os.Exit(2)
}

func newClient(baseURL string) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Minute).
		SetHeader("User-Agent", "shellpipe-cli/1.0")
}

// clientFromEnv builds a client for the SERVER_URL configured in the environment.
func clientFromEnv() (*resty.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return newClient(cfg.Server.URL), nil
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	client, err := clientFromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "cli:", err)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "submit":
		if len(os.Args) != 3 {
			usage()
		}
		err = submit(client, os.Args[2])
	case "get":
		if len(os.Args) != 3 {
			usage()
		}
		err = get(client, os.Args[2])
	case "verify":
		err = verifyLedger(client)
	default:
		usage()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "cli:", err)
		os.Exit(1)
	}
}

// submit posts a pipeline file and exits with the pipeline's exit code.
func submit(client *resty.Client, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read pipeline file: %w", err)
	}

	var run server.RunResponse
	resp, err := client.R().
		SetHeader("Content-Type", "application/x-yaml").
		SetBody(data).
		SetResult(&run).
		SetError(&apiError{}).
		Post("/pipelines")
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	if resp.IsError() {
		return responseError(resp)
	}

	printRun(run)
	if run.ExitCode != 0 {
		os.Exit(run.ExitCode)
	}
	return nil
}

func get(client *resty.Client, id string) error {
	var run server.RunResponse
	resp, err := client.R().
		SetPathParam("id", id).
		SetResult(&run).
		SetError(&apiError{}).
		Get("/pipelines/{id}")
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	if resp.IsError() {
		return responseError(resp)
	}
	printRun(run)
	return nil
}

func verifyLedger(client *resty.Client) error {
	resp, err := client.R().SetError(&apiError{}).Get("/ledger/verify")
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	if resp.IsError() {
		return responseError(resp)
	}
	fmt.Println(resp.String())
	return nil
}

type apiError struct {
	Error string `json:"error"`
}

func responseError(resp *resty.Response) error {
	if e, ok := resp.Error().(*apiError); ok && e.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode(), e.Error)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode(), resp.String())
}

func printRun(run server.RunResponse) {
	fmt.Fprintf(os.Stderr, "run %s (%s) exit=%d block=%d %dms\n",
		run.ID, run.Command, run.ExitCode, run.Block, run.DurationMs)
	_, _ = os.Stdout.Write(run.Stdout)
	_, _ = os.Stderr.Write(run.Stderr)
}
