package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Contract interfaces, reduced to the methods this client calls. The
// implementations live on-chain and are out of scope here.

const rageTokenABI = `[
  {"type":"function","name":"balanceOf","stateMutability":"view",
   "inputs":[{"name":"account","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"allowance","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"approve","stateMutability":"nonpayable",
   "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
   "outputs":[{"name":"","type":"bool"}]}
]`

const predictionMarketABI = `[
  {"type":"function","name":"getMarket","stateMutability":"view",
   "inputs":[{"name":"marketId","type":"uint256"}],
   "outputs":[
     {"name":"matchId","type":"string"},
     {"name":"team1","type":"string"},
     {"name":"team2","type":"string"},
     {"name":"aiTrashTalk","type":"string"},
     {"name":"aiPrediction","type":"string"},
     {"name":"endTime","type":"uint256"},
     {"name":"resolved","type":"bool"},
     {"name":"aiWasRight","type":"bool"},
     {"name":"totalAgreeStake","type":"uint256"},
     {"name":"totalDisagreeStake","type":"uint256"}]},
  {"type":"function","name":"marketCounter","stateMutability":"view",
   "inputs":[],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"placeBet","stateMutability":"nonpayable",
   "inputs":[
     {"name":"marketId","type":"uint256"},
     {"name":"agreeWithAI","type":"bool"},
     {"name":"amount","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"claimWinnings","stateMutability":"nonpayable",
   "inputs":[{"name":"marketId","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"resolveMarket","stateMutability":"nonpayable",
   "inputs":[{"name":"marketId","type":"uint256"},{"name":"aiWasRight","type":"bool"}],
   "outputs":[]},
  {"type":"function","name":"createMarket","stateMutability":"nonpayable",
   "inputs":[
     {"name":"matchId","type":"string"},
     {"name":"team1","type":"string"},
     {"name":"team2","type":"string"},
     {"name":"aiTrashTalk","type":"string"},
     {"name":"aiPrediction","type":"string"},
     {"name":"duration","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"getUserStats","stateMutability":"view",
   "inputs":[{"name":"user","type":"address"}],
   "outputs":[
     {"name":"correctBets","type":"uint256"},
     {"name":"totalBets","type":"uint256"},
     {"name":"winnings","type":"uint256"},
     {"name":"inHallOfFame","type":"bool"},
     {"name":"inHallOfShame","type":"bool"},
     {"name":"accuracy","type":"uint256"}]}
]`

const rageNFTABI = `[
  {"type":"function","name":"balanceOf","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"tokenOfOwnerByIndex","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"},{"name":"index","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getNFTData","stateMutability":"view",
   "inputs":[{"name":"tokenId","type":"uint256"}],
   "outputs":[
     {"name":"marketId","type":"uint256"},
     {"name":"agreedWithAI","type":"bool"},
     {"name":"resolved","type":"bool"},
     {"name":"won","type":"bool"}]}
]`

var (
	tokenABI  = mustParseABI(rageTokenABI)
	marketABI = mustParseABI(predictionMarketABI)
	nftABI    = mustParseABI(rageNFTABI)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
