package types

import "time"

// BlockType is the planned battery activity of a schedule block.
type BlockType string

const (
	BlockCharge BlockType = "Charge"
	BlockHold   BlockType = "Hold"
	BlockUse    BlockType = "Use"
)

// ScheduleBlock is one planned charge/hold/discharge interval produced by the
// external optimizer. Blocks are contiguous, non-overlapping and ordered by
// start time within one schedule; they are immutable once read.
type ScheduleBlock struct {
	Type      BlockType `json:"block_type"`
	Start     time.Time `json:"start_time"`
	End       time.Time `json:"end_time"`
	SocIn     int       `json:"soc_in"`
	SocOut    int       `json:"soc_out"`
	TrueSocIn *int      `json:"true_soc_in,omitempty"`
	Status    string    `json:"status"`
	Cost      float64   `json:"cost"`
}

// Contains reports whether the instant falls within the block's [start, end).
func (b ScheduleBlock) Contains(t time.Time) bool {
	return !b.Start.After(t) && b.End.After(t)
}
