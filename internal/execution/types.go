package execution

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

type RunStatus string

type StepStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusSkipped   RunStatus = "skipped"
	RunStatusFailed    RunStatus = "failed"
)

const (
	StepStatusPending StepStatus = "pending"
	StepStatusDone    StepStatus = "done"
	StepStatusSkipped StepStatus = "skipped"
	StepStatusFailed  StepStatus = "failed"
)

const (
	StepPrice    = "price"
	StepApproval = "approval"
	StepQuote    = "quote"
	StepPermit   = "permit-sign"
	StepAssemble = "assemble"
	StepSubmit   = "submit"
)

// RunStep records the outcome of one workflow stage.
type RunStep struct {
	StepID string     `json:"step_id"`
	Status StepStatus `json:"status"`
	TxHash string     `json:"tx_hash,omitempty"`
	Detail string     `json:"detail,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// Run is the persisted journal of one swap execution.
type Run struct {
	RunID       string    `json:"run_id"`
	ChainID     int64     `json:"chain_id"`
	Taker       string    `json:"taker"`
	SellToken   string    `json:"sell_token"`
	BuyToken    string    `json:"buy_token"`
	SellAmount  string    `json:"sell_amount"`
	Status      RunStatus `json:"status"`
	CreatedAt   string    `json:"created_at"`
	UpdatedAt   string    `json:"updated_at"`
	Steps       []RunStep `json:"steps"`
	SwapTxHash  string    `json:"swap_tx_hash,omitempty"`
	ApproveHash string    `json:"approve_tx_hash,omitempty"`
}

func NewRun(chainID int64, taker, sellToken, buyToken, sellAmount string) Run {
	now := time.Now().UTC().Format(time.RFC3339)
	return Run{
		RunID:      NewRunID(),
		ChainID:    chainID,
		Taker:      taker,
		SellToken:  sellToken,
		BuyToken:   buyToken,
		SellAmount: sellAmount,
		Status:     RunStatusRunning,
		CreatedAt:  now,
		UpdatedAt:  now,
		Steps:      []RunStep{},
	}
}

func (r *Run) Touch() {
	r.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
}

// AddStep appends a step outcome and bumps the run's update time.
func (r *Run) AddStep(step RunStep) {
	r.Steps = append(r.Steps, step)
	r.Touch()
}

func NewRunID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "run-unknown"
	}
	return fmt.Sprintf("run_%s", hex.EncodeToString(b))
}
