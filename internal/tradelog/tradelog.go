package tradelog

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var mu sync.Mutex

// Record is one order placement attempt. Records are append-only: a failed
// placement produces a REJECTED record and the next tick tries afresh with
// a new record, never an in-place retry.
type Record struct {
	Time            string `json:"time"`
	Symbol          string `json:"symbol"`
	Side            string `json:"side"`
	Type            string `json:"type"`
	Price           string `json:"price"`
	Qty             string `json:"qty"`
	Status          string `json:"status"`
	IsTest          bool   `json:"is_test"`
	ClientOrderID   string `json:"client_order_id,omitempty"`
	ExchangeOrderID string `json:"exchange_order_id,omitempty"`
	Error           string `json:"error,omitempty"`
}

func logDir() string {
	if v := os.Getenv("TRADER_LOG_DIR"); v != "" {
		return v
	}
	return "logs"
}

func dailyFilepath(t time.Time) string {
	d := t.UTC().Format("2006-01-02")
	return filepath.Join(logDir(), "orders", d+".jsonl")
}

// Append writes one record to the current daily file. Errors surface to the
// caller: a lost order record is a financial state change without an audit
// trail, so callers must not swallow them.
func Append(r Record) error {
	mu.Lock()
	defer mu.Unlock()
	now := time.Now().UTC()
	r.Time = now.Format("2006-01-02 15:04:05")
	p := dailyFilepath(now)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// CompressOlder gzips daily files older than retentionDays and removes the
// originals. A zero or negative retention disables compression.
func CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	root := logDir()
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ".jsonl" {
			return nil
		}
		info, er := os.Stat(p)
		if er != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		if _, e := os.Stat(gz); e == nil {
			_ = os.Remove(p)
			return nil
		}

		in, e := os.Open(p)
		if e != nil {
			return nil
		}
		defer in.Close()

		out, e := os.OpenFile(gz, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if e != nil {
			return nil
		}
		gw := gzip.NewWriter(out)
		if _, e := io.Copy(gw, in); e == nil {
			_ = gw.Close()
			_ = out.Close()
			_ = os.Remove(p)
		} else {
			_ = gw.Close()
			_ = out.Close()
		}
		return nil
	})
}
