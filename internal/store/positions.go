package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// PositionState is the per-symbol lifecycle stage.
type PositionState string

const (
	StateFlat    PositionState = "flat"
	StateOpening PositionState = "opening"
	StateLong    PositionState = "long"
	StateClosing PositionState = "closing"
)

// Position is the single source of truth for what the system believes it
// holds in one symbol. Decimal zero means absent for AvgPrice, TargetPrice
// and StopPrice. Invariant: Qty > 0 implies State is long or closing;
// State flat implies Qty == 0.
type Position struct {
	Symbol          string          `json:"symbol"`
	Qty             decimal.Decimal `json:"qty"`
	AvgPrice        decimal.Decimal `json:"avg_price"`
	State           PositionState   `json:"state"`
	TargetPrice     decimal.Decimal `json:"target_price"`
	StopPrice       decimal.Decimal `json:"stop_price"`
	LastBuyOrderID  string          `json:"last_buy_order_id,omitempty"`
	LastSellOrderID string          `json:"last_sell_order_id,omitempty"`
}

// PositionStore keeps one Position row per symbol with a JSON snapshot on
// disk. Rows are created flat on first sight of a symbol and never deleted.
// Mutation happens only through the trading loop (single writer per
// symbol); concurrent readers get copies.
type PositionStore struct {
	mu        sync.RWMutex
	path      string
	positions map[string]Position
}

// OpenPositions loads the snapshot under dir, creating the directory and an
// empty store when none exists yet.
func OpenPositions(dir string) (*PositionStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	s := &PositionStore{
		path:      filepath.Join(dir, "positions.json"),
		positions: map[string]Position{},
	}

	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	var rows []Position
	if err := json.Unmarshal(b, &rows); err != nil {
		return nil, fmt.Errorf("parse positions snapshot: %w", err)
	}
	for _, p := range rows {
		s.positions[p.Symbol] = p
	}
	return s, nil
}

// Ensure creates a flat row for symbol if none exists and returns the row.
func (s *PositionStore) Ensure(symbol string) Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[symbol]
	if !ok {
		p = Position{Symbol: symbol, State: StateFlat}
		s.positions[symbol] = p
	}
	return p
}

// Get returns a copy of the row and whether it exists.
func (s *PositionStore) Get(symbol string) (Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[symbol]
	return p, ok
}

// All returns copies of every row, sorted by symbol, for external readers.
func (s *PositionStore) All() []Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Put replaces the row and persists the snapshot. The write is atomic at
// the file level (temp file then rename) so a crash never leaves a torn
// snapshot.
func (s *PositionStore) Put(p Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[p.Symbol] = p
	return s.snapshotLocked()
}

func (s *PositionStore) snapshotLocked() error {
	rows := make([]Position, 0, len(s.positions))
	for _, p := range s.positions {
		rows = append(rows, p)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Symbol < rows[j].Symbol })

	b, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
