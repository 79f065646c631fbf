// transcribeclient is a manual test client: it uploads a local audio file
// to a running service instance and prints the JSON response.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

func main() {
	server := flag.String("server", "http://localhost:5000", "Service base URL")
	audioFile := flag.String("audio", "sample.wav", "Path to the audio file to upload")
	token := flag.String("token", "", "Bearer token (omit in development mode)")
	language := flag.String("language", "english", "Language hint")
	timestamps := flag.Bool("timestamps", true, "Request timestamped chunks")
	textOnly := flag.Bool("text-only", false, "Use the /transcribe-text endpoint")
	flag.Parse()

	f, err := os.Open(*audioFile)
	if err != nil {
		log.Fatalf("Failed to open audio file: %v", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("language", *language); err != nil {
		log.Fatalf("Failed to build form: %v", err)
	}
	if err := mw.WriteField("timestamps", strconv.FormatBool(*timestamps)); err != nil {
		log.Fatalf("Failed to build form: %v", err)
	}
	fw, err := mw.CreateFormFile("audio", filepath.Base(*audioFile))
	if err != nil {
		log.Fatalf("Failed to build form: %v", err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		log.Fatalf("Failed to read audio: %v", err)
	}
	if err := mw.Close(); err != nil {
		log.Fatalf("Failed to finish form: %v", err)
	}

	endpoint := *server + "/transcribe"
	if *textOnly {
		endpoint = *server + "/transcribe-text"
	}

	req, err := http.NewRequest(http.MethodPost, endpoint, &body)
	if err != nil {
		log.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if *token != "" {
		req.Header.Set("Authorization", "Bearer "+*token)
	}

	client := &http.Client{Timeout: 10 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	fmt.Printf("HTTP %d (request id %s)\n", resp.StatusCode, resp.Header.Get("X-Request-Id"))
	io.Copy(os.Stdout, resp.Body)
	fmt.Println()
}
