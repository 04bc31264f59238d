package escrowchain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// escrowABIJSON is the fixed wire-level ABI binding from spec §6. The
// contract's own source is an external collaborator; only this
// signature surface is owned here.
const escrowABIJSON = `[
  {"type":"function","name":"computeHash","stateMutability":"pure","inputs":[{"name":"bountyId","type":"string"}],"outputs":[{"name":"","type":"bytes32"}]},
  {"type":"function","name":"createBounty","stateMutability":"nonpayable","inputs":[{"name":"bountyId","type":"string"},{"name":"amount","type":"uint256"},{"name":"deadline","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"claimBounty","stateMutability":"nonpayable","inputs":[{"name":"hash","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"submitBounty","stateMutability":"nonpayable","inputs":[{"name":"hash","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"approveBounty","stateMutability":"nonpayable","inputs":[{"name":"hash","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"disputeBounty","stateMutability":"nonpayable","inputs":[{"name":"hash","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"cancelBounty","stateMutability":"nonpayable","inputs":[{"name":"hash","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"autoRelease","stateMutability":"nonpayable","inputs":[{"name":"hash","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"bounties","stateMutability":"view","inputs":[{"name":"","type":"bytes32"}],"outputs":[
    {"name":"poster","type":"address"},
    {"name":"worker","type":"address"},
    {"name":"amount","type":"uint256"},
    {"name":"workerStake","type":"uint256"},
    {"name":"deadline","type":"uint256"},
    {"name":"submittedAt","type":"uint256"},
    {"name":"status","type":"uint8"},
    {"name":"bountyId","type":"string"}
  ]},
  {"type":"function","name":"platformFeeBps","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"workerStakeBps","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"autoReleaseSeconds","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

// erc20ABIJSON covers only the allowance/approve surface the gateway
// needs to keep the escrow contract's spending allowance topped up.
const erc20ABIJSON = `[
  {"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

var (
	escrowABI abi.ABI
	erc20ABI  abi.ABI
)

func init() {
	var err error
	escrowABI, err = abi.JSON(strings.NewReader(escrowABIJSON))
	if err != nil {
		panic("escrowchain: invalid escrow ABI: " + err.Error())
	}
	erc20ABI, err = abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		panic("escrowchain: invalid erc20 ABI: " + err.Error())
	}
}
