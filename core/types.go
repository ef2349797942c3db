// Package core holds the domain types and error taxonomy shared across the
// Rage Bet client packages.
package core

import (
	"math/big"
	"time"
)

// Market is an on-chain record for a single bettable proposition: whether the
// AI prediction about a match will be correct. All stake amounts are in the
// token's base units (18 decimals).
type Market struct {
	ID                 *big.Int  `json:"id"`
	MatchID            string    `json:"match_id"`
	Team1              string    `json:"team1"`
	Team2              string    `json:"team2"`
	TrashTalk          string    `json:"trash_talk"`
	Prediction         string    `json:"prediction"`
	EndTime            time.Time `json:"end_time"`
	Resolved           bool      `json:"resolved"`
	AIWasRight         bool      `json:"ai_was_right"`
	TotalAgreeStake    *big.Int  `json:"total_agree_stake"`
	TotalDisagreeStake *big.Int  `json:"total_disagree_stake"`
}

// Open reports whether the market still accepts bets at the given time.
func (m *Market) Open(now time.Time) bool {
	return !m.Resolved && now.Before(m.EndTime)
}

// TotalStake returns the combined stake on both sides.
func (m *Market) TotalStake() *big.Int {
	total := new(big.Int)
	if m.TotalAgreeStake != nil {
		total.Add(total, m.TotalAgreeStake)
	}
	if m.TotalDisagreeStake != nil {
		total.Add(total, m.TotalDisagreeStake)
	}
	return total
}

// UserStats mirrors the on-chain per-user betting record.
type UserStats struct {
	CorrectBets   uint64   `json:"correct_bets"`
	TotalBets     uint64   `json:"total_bets"`
	Winnings      *big.Int `json:"winnings"`
	InHallOfFame  bool     `json:"in_hall_of_fame"`
	InHallOfShame bool     `json:"in_hall_of_shame"`
	Accuracy      uint64   `json:"accuracy"` // percentage, 0-100
}

// NFTReceipt is the bet-receipt NFT minted when a bet is placed.
type NFTReceipt struct {
	TokenID      *big.Int `json:"token_id"`
	Owner        string   `json:"owner"`
	MarketID     *big.Int `json:"market_id"`
	AgreedWithAI bool     `json:"agreed_with_ai"`
	Resolved     bool     `json:"resolved"`
	Won          bool     `json:"won"`
}

// BetSide names the side of a bet relative to the AI prediction.
type BetSide string

const (
	SideAgree    BetSide = "agree"
	SideDisagree BetSide = "disagree"
)

// Side returns the side for an agree/disagree flag.
func Side(agreeWithAI bool) BetSide {
	if agreeWithAI {
		return SideAgree
	}
	return SideDisagree
}
