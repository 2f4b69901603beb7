// Command initdata fills a running fido server with generated notes.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

// ----------------------------------------------------------------------------
// Config ---------------------------------------------------------------------
var (
	baseURL = flag.String("url", env("API_BASE_URL", "http://localhost:8080"), "Server base URL")
	nNotes  = flag.Int("n", envInt("COUNT", 50), "How many notes to create")
	order   = flag.String("order", env("ORDER", ""), "Optional list order to set afterwards, e.g. date:desc")
	seed    = flag.Int64("seed", 0, "Generator seed, 0 picks one from the clock")
)

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
	}
	return def
}

// ----------------------------------------------------------------------------
// HTTP helpers ---------------------------------------------------------------
var client = &http.Client{Timeout: 10 * time.Second}

func postJSON(path string, body any) (*http.Response, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, *baseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return client.Do(req)
}

func must(body io.ReadCloser) []byte {
	defer body.Close()
	data, _ := io.ReadAll(body)
	return data
}

// ----------------------------------------------------------------------------
// Main -----------------------------------------------------------------------
func main() {
	flag.Parse()
	s := *seed
	if s == 0 {
		s = time.Now().UnixNano()
	}
	gofakeit.Seed(s)

	fmt.Printf("Seeding %d notes on %s (seed=%d)\n", *nNotes, *baseURL, s)

	if err := createNotes(*nNotes); err != nil {
		fmt.Fprintln(os.Stderr, "FATAL:", err)
		os.Exit(1)
	}

	if *order != "" {
		if err := setOrder(*order); err != nil {
			fmt.Fprintln(os.Stderr, "FATAL:", err)
			os.Exit(1)
		}
		fmt.Printf("• list order set to %s\n", *order)
	}

	fmt.Println("✔ done")
}

// ----------------------------------------------------------------------------
// Step 1 – create notes -------------------------------------------------------

// noteColor packs a random opaque RGB colour the way notes store it.
func noteColor() int {
	rgb := gofakeit.RGBColor()
	return 0xff<<24 | rgb[0]<<16 | rgb[1]<<8 | rgb[2]
}

func fakeNote() map[string]any {
	return map[string]any{
		"title":      gofakeit.Sentence(3),
		"content":    gofakeit.Paragraph(1, 3, 40, " "),
		"color":      noteColor(),
		"is_pinned":  gofakeit.Number(1, 10) == 1,
		"is_checked": gofakeit.Bool(),
	}
}

func createNotes(total int) error {
	for i := 1; i <= total; i++ {
		resp, err := postJSON("/api/v1/notes", fakeNote())
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusCreated {
			return fmt.Errorf("create note %d failed (%d): %s", i, resp.StatusCode, must(resp.Body))
		}
		_ = must(resp.Body)

		if i%10 == 0 || i == total {
			fmt.Printf("  … %d/%d\n", i, total)
		}
	}
	return nil
}

// ----------------------------------------------------------------------------
// Step 2 – optional order -----------------------------------------------------
func setOrder(o string) error {
	resp, err := postJSON("/api/v1/events", map[string]string{"type": "set_order", "order": o})
	if err != nil {
		return err
	}
	body := must(resp.Body)
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("set order failed (%d): %s", resp.StatusCode, body)
	}
	return nil
}
